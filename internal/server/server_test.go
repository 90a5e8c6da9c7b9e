package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/support-tools/fortisync/internal/app"
	"github.com/support-tools/fortisync/internal/model"
)

func testApp(t *testing.T) *app.App {
	t.Helper()

	dir := t.TempDir()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &app.App{
		Logger: logger,
		Config: &app.Configuration{
			ListenAddress: "127.0.0.1:0",
			SyncSchedule:  "0 */6 * * *",
			FilterDaysMin: 1,
			FilterDaysMax: 15,
			Technicians: []app.TechnicianOptions{
				{ID: 100, Name: "Mario"},
			},
			Zoho: &app.ZohoOptions{
				DC:               "eu",
				ClientID:         "client-id",
				ClientSecret:     "hunter2",
				Owner:            "owner",
				App:              "planner",
				Form:             "Calendario",
				Report:           "CalendarioPianificazione",
				TokenFile:        filepath.Join(dir, "tokens.json"),
				RefreshTokenFile: filepath.Join(dir, "refresh.txt"),
			},
			FortiCare: &app.FortiCareOptions{
				APIID:    "api-user",
				Password: "s3cret",
			},
			Event: &app.EventOptions{
				StartTime:    "08:00",
				EndTime:      "09:00",
				PlannedHours: 1,
			},
		},
	}
}

func noopSync(context.Context) (model.SyncResult, error) {
	return model.SyncResult{RunID: uuid.New()}, nil
}

func noopDevices(context.Context) ([]*model.ExpiringDevice, error) {
	return nil, nil
}

func doRequest(t *testing.T, s *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}

	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))

	return body
}

func Test_Health(t *testing.T) {
	s := New(testApp(t), noopSync, noopDevices)

	w := doRequest(t, s, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func Test_Status(t *testing.T) {
	a := testApp(t)
	s := New(a, noopSync, noopDevices)

	w := doRequest(t, s, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	// configured Zoho but no stored refresh token yet
	assert.Equal(t, false, decodeBody(t, w)["configured"])

	require.NoError(t, os.WriteFile(a.Config.Zoho.RefreshTokenFile, []byte("rt-123"), 0o600))

	w = doRequest(t, s, http.MethodGet, "/api/status", nil)
	assert.Equal(t, true, decodeBody(t, w)["configured"])
}

func Test_Config_MasksSecrets(t *testing.T) {
	s := New(testApp(t), noopSync, noopDevices)

	w := doRequest(t, s, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)

	zoho, ok := body["zoho"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "", zoho["client_secret"])
	assert.Equal(t, true, zoho["has_client_secret"])
	assert.Equal(t, "client-id", zoho["client_id"])

	forticare, ok := body["forticare"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "", forticare["password"])
	assert.Equal(t, true, forticare["has_password"])
}

func Test_Devices(t *testing.T) {
	devicesFn := func(context.Context) ([]*model.ExpiringDevice, error) {
		return []*model.ExpiringDevice{
			{Serial: "FGT60F0000000001", EarliestDays: 7},
			{Serial: "FGT60F0000000002", EarliestDays: 12},
		}, nil
	}

	s := New(testApp(t), noopSync, devicesFn)

	w := doRequest(t, s, http.MethodGet, "/api/devices", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
}

func Test_Devices_Error(t *testing.T) {
	devicesFn := func(context.Context) ([]*model.ExpiringDevice, error) {
		return nil, errors.New("asset download failed")
	}

	s := New(testApp(t), noopSync, devicesFn)

	w := doRequest(t, s, http.MethodGet, "/api/devices", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "asset download failed")
}

func Test_Sync(t *testing.T) {
	synced := false
	syncFn := func(context.Context) (model.SyncResult, error) {
		synced = true

		return model.SyncResult{RunID: uuid.New(), DevicesFound: 3, EventsCreated: 2, EventsSkipped: 1}, nil
	}

	s := New(testApp(t), syncFn, noopDevices)

	// only POST triggers a run
	w := doRequest(t, s, http.MethodGet, "/api/sync", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.False(t, synced)

	w = doRequest(t, s, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, synced)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])

	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), result["devices_found"])
	assert.Equal(t, float64(2), result["events_created"])
}

func Test_Sync_Error(t *testing.T) {
	syncFn := func(context.Context) (model.SyncResult, error) {
		return model.SyncResult{}, errors.New("zoho unreachable")
	}

	s := New(testApp(t), syncFn, noopDevices)

	w := doRequest(t, s, http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["success"])
}

func Test_ZohoAuthStatus(t *testing.T) {
	a := testApp(t)
	s := New(a, noopSync, noopDevices)

	w := doRequest(t, s, http.MethodGet, "/api/zoho/auth-status", nil)
	assert.Equal(t, false, decodeBody(t, w)["authorized"])

	require.NoError(t, os.WriteFile(a.Config.Zoho.RefreshTokenFile, []byte("rt-123"), 0o600))

	w = doRequest(t, s, http.MethodGet, "/api/zoho/auth-status", nil)
	assert.Equal(t, true, decodeBody(t, w)["authorized"])
}

func Test_ZohoExchangeCode_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		prepare func(a *app.App)
		body    string
	}{
		{
			"missing code",
			func(a *app.App) {},
			`{}`,
		},
		{
			"client secret not saved",
			func(a *app.App) { a.Config.Zoho.ClientSecret = "" },
			`{"code": "1000.abcd"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := testApp(t)
			tc.prepare(a)

			s := New(a, noopSync, noopDevices)

			w := doRequest(t, s, http.MethodPost, "/api/zoho/exchange-code", bytes.NewBufferString(tc.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, decodeBody(t, w)["success"])
		})
	}
}

func Test_ZohoLogout(t *testing.T) {
	a := testApp(t)
	require.NoError(t, os.WriteFile(a.Config.Zoho.RefreshTokenFile, []byte("rt-123"), 0o600))

	s := New(a, noopSync, noopDevices)

	w := doRequest(t, s, http.MethodPost, "/api/zoho/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["success"])

	w = doRequest(t, s, http.MethodGet, "/api/zoho/auth-status", nil)
	assert.Equal(t, false, decodeBody(t, w)["authorized"])
}
