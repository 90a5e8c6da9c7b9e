package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_AccessToken_RefreshGrant(t *testing.T) {
	var gotGrantType, gotRefreshToken, gotClientID string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/v2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())

		gotGrantType = r.Form.Get("grant_type")
		gotRefreshToken = r.Form.Get("refresh_token")
		gotClientID = r.Form.Get("client_id")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fresh-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	z := newTestZoho(t, srv.URL)
	require.NoError(t, os.WriteFile(z.opts.RefreshTokenFile, []byte("rt-123\n"), 0o600))

	token, err := z.tokens.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)

	assert.Equal(t, "refresh_token", gotGrantType)
	assert.Equal(t, "rt-123", gotRefreshToken)
	assert.Equal(t, "client-id", gotClientID)

	// the fresh token is cached on disk for later calls
	cached, ok := z.tokens.readCache()
	assert.True(t, ok)
	assert.Equal(t, "fresh-token", cached)
}

func Test_AccessToken_CacheHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no refresh call expected on a cache hit")
	}))
	defer srv.Close()

	z := newTestZoho(t, srv.URL)
	seedAccessToken(t, z, "cached-token")

	token, err := z.tokens.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", token)
}

func Test_AccessToken_ExpiredCacheRefreshes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fresh-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	z := newTestZoho(t, srv.URL)
	require.NoError(t, os.WriteFile(z.opts.RefreshTokenFile, []byte("rt-123"), 0o600))

	stale, err := json.Marshal(cachedToken{
		AccessToken: "stale-token",
		ExpiresAt:   time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(z.opts.TokenFile, stale, 0o600))

	token, err := z.tokens.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func Test_AccessToken_NotAuthorized(t *testing.T) {
	z := newTestZoho(t, "http://127.0.0.1:0")

	_, err := z.tokens.accessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func Test_ExchangeCode(t *testing.T) {
	var gotGrantType, gotCode string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		gotGrantType = r.Form.Get("grant_type")
		gotCode = r.Form.Get("code")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-123",
			"refresh_token": "refresh-123",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	z := newTestZoho(t, srv.URL)

	require.NoError(t, z.ExchangeCode(context.Background(), "1000.code"))

	assert.Equal(t, "authorization_code", gotGrantType)
	assert.Equal(t, "1000.code", gotCode)

	rt, err := os.ReadFile(z.opts.RefreshTokenFile)
	require.NoError(t, err)
	assert.Equal(t, "refresh-123", string(rt))

	assert.True(t, z.Authorized())
}

func Test_ExchangeCode_NoRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	z := newTestZoho(t, srv.URL)

	err := z.ExchangeCode(context.Background(), "1000.reused")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToken)
	assert.False(t, z.Authorized())
}

func Test_Logout(t *testing.T) {
	z := newTestZoho(t, "http://127.0.0.1:0")
	seedAccessToken(t, z, "tok-123")
	require.NoError(t, os.WriteFile(z.opts.RefreshTokenFile, []byte("rt-123"), 0o600))

	require.True(t, z.Authorized())
	require.NoError(t, z.Logout())
	assert.False(t, z.Authorized())

	// a second logout with nothing stored is fine
	assert.NoError(t, z.Logout())
}
