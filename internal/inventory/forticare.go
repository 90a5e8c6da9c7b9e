package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/support-tools/fortisync/internal/app"
	"github.com/support-tools/fortisync/internal/metrics"
	"github.com/support-tools/fortisync/internal/model"
)

const (
	// authTimeout bounds the FortiCare token call, downloadTimeout the
	// products listing which can be large.
	authTimeout     = 30 * time.Second
	downloadTimeout = 60 * time.Second

	// expireBefore is the fixed upper bound sent on the products listing;
	// the day-range filtering happens locally.
	expireBefore = "2099-12-31"
)

var (
	ErrAuth     = errors.New("forticare authentication error")
	ErrDownload = errors.New("error downloading assets from the forticare API")
)

// FortiCare downloads registered assets from the FortiCare registration API,
// authenticating through the OAuth2 resource-owner-password grant the vendor
// exposes.
type FortiCare struct {
	opts   *app.FortiCareOptions
	client *retryablehttp.Client
	logger *logrus.Logger

	// token is the in-memory bearer token, refreshed when expired.
	token *oauth2.Token
}

// NewFortiCareClient returns a FortiCare API client.
func NewFortiCareClient(opts *app.FortiCareOptions, logger *logrus.Logger) *FortiCare {
	retryableClient := retryablehttp.NewClient()
	retryableClient.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	if logger.Level < logrus.DebugLevel {
		retryableClient.Logger = nil
	} else {
		retryableClient.Logger = logger
	}

	return &FortiCare{
		opts:   opts,
		client: retryableClient,
		logger: logger,
	}
}

// Enabled reports whether API credentials are configured.
func (f *FortiCare) Enabled() bool {
	return f.opts.Enabled()
}

// authenticate obtains a bearer token. The FortiCare token endpoint takes the
// password grant as a JSON body rather than form encoding, so the request is
// built by hand and parsed into an oauth2 token.
func (f *FortiCare) authenticate(ctx context.Context) (string, error) {
	if f.token != nil && f.token.Valid() {
		return f.token.AccessToken, nil
	}

	payload := map[string]string{
		"username":   f.opts.APIID,
		"password":   f.opts.Password,
		"client_id":  f.opts.ClientID,
		"grant_type": "password",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(ErrAuth, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, f.opts.AuthEndpoint, body)
	if err != nil {
		return "", errors.Wrap(ErrAuth, err.Error())
	}

	req.Header.Set("Content-Type", "application/json")

	f.logger.Info("authenticating with the forticare API")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.CollaboratorErrCount.WithLabelValues("forticare").Inc()
		return "", errors.Wrap(ErrAuth, err.Error())
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrap(ErrAuth, "HTTP status "+resp.Status)
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", errors.Wrap(ErrAuth, err.Error())
	}

	if tokenResponse.AccessToken == "" {
		return "", errors.Wrap(ErrAuth, "response missing access_token")
	}

	f.token = &oauth2.Token{
		AccessToken: tokenResponse.AccessToken,
		Expiry:      time.Now().Add(time.Duration(tokenResponse.ExpiresIn) * time.Second),
	}

	f.logger.WithField("expiresIn", tokenResponse.ExpiresIn).Info("forticare authentication successful")

	return f.token.AccessToken, nil
}

// Download fetches the registered assets for the configured account,
// returning both the decoded assets and the raw response payload so the
// caller can persist a snapshot.
func (f *FortiCare) Download(ctx context.Context) ([]model.Asset, []byte, error) {
	token, err := f.authenticate(ctx)
	if err != nil {
		return nil, nil, err
	}

	payload := map[string]interface{}{
		"accountId":    f.opts.AccountID,
		"expireBefore": expireBefore,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, errors.Wrap(ErrDownload, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, f.opts.ProductsEndpoint, body)
	if err != nil {
		return nil, nil, errors.Wrap(ErrDownload, err.Error())
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	f.logger.WithField("accountID", f.opts.AccountID).Info("downloading assets from the forticare API")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.CollaboratorErrCount.WithLabelValues("forticare").Inc()
		return nil, nil, errors.Wrap(ErrDownload, err.Error())
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, errors.Wrap(ErrDownload, "HTTP status "+resp.Status)
	}

	raw := &bytes.Buffer{}

	var response struct {
		Assets []model.Asset `json:"assets"`
	}

	if err := json.NewDecoder(io.TeeReader(resp.Body, raw)).Decode(&response); err != nil {
		return nil, nil, errors.Wrap(ErrDownload, err.Error())
	}

	if response.Assets == nil {
		return nil, nil, errors.Wrap(ErrDownload, "invalid response structure, missing 'assets'")
	}

	f.logger.WithField("assets", len(response.Assets)).Info("downloaded assets from the forticare API")

	return response.Assets, raw.Bytes(), nil
}
