package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/support-tools/fortisync/internal/app"
)

func Test_Refreshing_APIDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"assets": [{"serialNumber": "FGT60F0000000001"}]}`), 0o600))

	api := NewFortiCareClient(&app.FortiCareOptions{}, testLogger())
	source := NewRefreshingSource(api, NewSnapshotSource(path, testLogger()), testLogger())

	assets, err := source.Assets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "FGT60F0000000001", assets[0].SerialNumber)
}

func Test_Refreshing_DownloadPersistsSnapshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "fc-token", "expires_in": 3600})
	})
	mux.HandleFunc("/products", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"assets": []map[string]interface{}{{"serialNumber": "FGT100F000000009"}},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"assets": []}`), 0o600))

	api := NewFortiCareClient(testFortiCareOptions(srv.URL+"/auth", srv.URL+"/products"), testLogger())
	snapshot := NewSnapshotSource(path, testLogger())
	source := NewRefreshingSource(api, snapshot, testLogger())

	assets, err := source.Assets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "FGT100F000000009", assets[0].SerialNumber)

	// the snapshot now holds the refreshed listing
	persisted, err := snapshot.Assets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, assets, persisted)
}

func Test_Refreshing_FallsBackToSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"assets": [{"serialNumber": "FGT60F0000000002"}]}`), 0o600))

	api := NewFortiCareClient(testFortiCareOptions(srv.URL, srv.URL), testLogger())
	source := NewRefreshingSource(api, NewSnapshotSource(path, testLogger()), testLogger())

	assets, err := source.Assets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "FGT60F0000000002", assets[0].SerialNumber)
}
