package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/support-tools/fortisync/internal/app"
)

// tokenExpiryMargin is subtracted from the reported token lifetime so a
// token is refreshed before it actually lapses mid-call.
const tokenExpiryMargin = 60 * time.Second

var (
	// ErrToken is returned when a Zoho access token cannot be obtained.
	ErrToken = errors.New("zoho token error")

	// ErrNotAuthorized is returned when no refresh token has been stored yet.
	ErrNotAuthorized = errors.New("zoho refresh token not found, configure authentication first")
)

// tokenStore obtains Zoho access tokens, caching them in a file between
// process restarts. The long lived refresh token lives in its own file,
// written once by the setup flow.
type tokenStore struct {
	opts       *app.ZohoOptions
	httpClient *http.Client
}

// cachedToken is the on-disk access token cache format.
type cachedToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func newTokenStore(opts *app.ZohoOptions, httpClient *http.Client) *tokenStore {
	return &tokenStore{opts: opts, httpClient: httpClient}
}

func (s *tokenStore) accountsBase() string {
	if s.opts.AccountsBaseURL != "" {
		return s.opts.AccountsBaseURL
	}

	return "https://accounts.zoho." + s.opts.DC
}

func (s *tokenStore) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.opts.ClientID,
		ClientSecret: s.opts.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.accountsBase() + "/oauth/v2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// httpContext routes oauth2 calls through the store's HTTP client.
func (s *tokenStore) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// authorized reports whether a non-empty refresh token is stored.
func (s *tokenStore) authorized() bool {
	rt, err := s.refreshToken()

	return err == nil && rt != ""
}

func (s *tokenStore) refreshToken() (string, error) {
	data, err := os.ReadFile(s.opts.RefreshTokenFile)
	if err != nil {
		return "", errors.Wrap(ErrNotAuthorized, s.opts.RefreshTokenFile)
	}

	rt := strings.TrimSpace(string(data))
	if rt == "" {
		return "", errors.Wrap(ErrNotAuthorized, s.opts.RefreshTokenFile)
	}

	return rt, nil
}

// accessToken returns a valid access token, from the cache file when still
// fresh, refreshed through the Zoho refresh-token grant otherwise.
func (s *tokenStore) accessToken(ctx context.Context) (string, error) {
	if cached, ok := s.readCache(); ok {
		return cached, nil
	}

	rt, err := s.refreshToken()
	if err != nil {
		return "", err
	}

	source := s.oauthConfig().TokenSource(
		s.httpContext(ctx),
		&oauth2.Token{RefreshToken: rt},
	)

	token, err := source.Token()
	if err != nil {
		return "", errors.Wrap(ErrToken, err.Error())
	}

	s.writeCache(token)

	return token.AccessToken, nil
}

// exchangeCode exchanges a self-client authorization code for tokens,
// persisting the refresh token and caching the access token.
func (s *tokenStore) exchangeCode(ctx context.Context, code string) error {
	token, err := s.oauthConfig().Exchange(s.httpContext(ctx), code)
	if err != nil {
		return errors.Wrap(ErrToken, err.Error())
	}

	if token.RefreshToken == "" {
		return errors.Wrap(ErrToken, "no refresh token received, the code may be expired or already used")
	}

	if err := os.WriteFile(s.opts.RefreshTokenFile, []byte(token.RefreshToken), 0600); err != nil {
		return errors.Wrap(ErrToken, err.Error())
	}

	s.writeCache(token)

	return nil
}

// clear removes the persisted tokens.
func (s *tokenStore) clear() error {
	for _, path := range []string{s.opts.RefreshTokenFile, s.opts.TokenFile} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

func (s *tokenStore) readCache() (string, bool) {
	data, err := os.ReadFile(s.opts.TokenFile)
	if err != nil {
		return "", false
	}

	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		return "", false
	}

	if cached.AccessToken == "" || time.Now().Unix() >= cached.ExpiresAt {
		return "", false
	}

	return cached.AccessToken, true
}

func (s *tokenStore) writeCache(token *oauth2.Token) {
	expiresAt := token.Expiry.Add(-tokenExpiryMargin).Unix()
	if token.Expiry.IsZero() {
		expiresAt = time.Now().Add(time.Hour - tokenExpiryMargin).Unix()
	}

	cached := cachedToken{
		AccessToken: token.AccessToken,
		ExpiresAt:   expiresAt,
	}

	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return
	}

	// cache write failures are not fatal, the token is refreshed again next call
	_ = os.WriteFile(s.opts.TokenFile, data, 0600)
}
