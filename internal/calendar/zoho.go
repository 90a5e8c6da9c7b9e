package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/support-tools/fortisync/internal/app"
	"github.com/support-tools/fortisync/internal/metrics"
	"github.com/support-tools/fortisync/internal/model"
)

const (
	// connectionTimeout is the maximum amount of time spent on each http
	// connection to the Zoho Creator API.
	connectionTimeout = 30 * time.Second

	// zohoSuccessCode is the application level success code Zoho Creator
	// returns alongside HTTP 200.
	zohoSuccessCode = 3000

	zohoDateLayout = "02/01/2006"
	isoDateLayout  = "2006-01-02"
)

var (
	// ErrQuery is returned when the Zoho Creator report query fails hard.
	ErrQuery = errors.New("zoho report query error")

	// ErrCreate is returned when the Zoho Creator form submission fails.
	ErrCreate = errors.New("zoho event create error")

	ErrEventDate = errors.New("bad event date")
)

// Zoho implements the Calendar interface against a Zoho Creator application
// holding the planning calendar.
type Zoho struct {
	opts     *app.ZohoOptions
	template model.EventTemplate
	client   *retryablehttp.Client
	tokens   *tokenStore
	logger   *logrus.Logger
}

// NewZohoClient returns a Zoho Creator client. The event template is used to
// verify candidate records during existence checks.
func NewZohoClient(opts *app.ZohoOptions, template model.EventTemplate, logger *logrus.Logger) *Zoho {
	// init retryable http client with the otel transport wrapped in
	retryableClient := retryablehttp.NewClient()
	retryableClient.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   connectionTimeout,
	}

	// disable default debug logging on the retryable client
	if logger.Level < logrus.DebugLevel {
		retryableClient.Logger = nil
	} else {
		retryableClient.Logger = logger
	}

	return &Zoho{
		opts:     opts,
		template: template,
		client:   retryableClient,
		tokens:   newTokenStore(opts, retryableClient.StandardClient()),
		logger:   logger,
	}
}

// Authorized reports whether a Zoho refresh token is present, which is the
// precondition for any calendar call.
func (z *Zoho) Authorized() bool {
	return z.tokens.authorized()
}

// ExchangeCode exchanges a Zoho self-client authorization code for tokens and
// persists them. Used by the setup flow.
func (z *Zoho) ExchangeCode(ctx context.Context, code string) error {
	return z.tokens.exchangeCode(ctx, code)
}

// Logout removes the persisted Zoho tokens.
func (z *Zoho) Logout() error {
	return z.tokens.clear()
}

func (z *Zoho) apiBase() string {
	base := z.opts.APIBaseURL
	if base == "" {
		base = fmt.Sprintf("https://creator.zoho.%s/api/v2.1", z.opts.DC)
	}

	return base + "/" + z.opts.Owner + "/" + z.opts.App
}

// reportRecord is the subset of a calendar report row the existence check
// inspects. LkpTecnico arrives either as an object reference or as a plain
// display string, resolved here at the collaborator boundary.
type reportRecord struct {
	LkpTecnico         json.RawMessage `json:"LkpTecnico"`
	LkpTecnicoCalField string          `json:"LkpTecnico_calfield"`
	DataInizio         string          `json:"DataInizio"`
	DataFine           string          `json:"DataFine"`
}

// technicianRef resolves the dict-or-string technician reference to a plain
// identifier string.
func (r *reportRecord) technicianRef() string {
	trimmed := bytes.TrimSpace(r.LkpTecnico)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var ref map[string]interface{}
		if err := json.Unmarshal(trimmed, &ref); err == nil {
			if id, ok := ref["ID"]; ok {
				return fmt.Sprint(id)
			}
		}

		return ""
	}

	return r.LkpTecnicoCalField
}

// Exists queries the calendar report for a reminder event matching the
// (serial, event date, technician) triple. Lookup failures are reported as
// "not found" so the caller proceeds to attempt creation.
func (z *Zoho) Exists(ctx context.Context, serial, eventDate string, technicianID int64) (bool, error) {
	token, err := z.tokens.accessToken(ctx)
	if err != nil {
		return false, err
	}

	zohoDate, err := toZohoDate(eventDate)
	if err != nil {
		return false, err
	}

	criteria := fmt.Sprintf(
		`Data = '%s' && Titolo.contains("Scadenza") && Titolo.contains("%s")`,
		zohoDate,
		serial,
	)

	endpoint := z.apiBase() + "/report/" + z.opts.Report + "?criteria=" + url.QueryEscape(criteria)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, errors.Wrap(ErrQuery, err.Error())
	}

	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := z.client.Do(req)
	if err != nil {
		// transient lookup failure, favor retry-by-recreation over silent loss
		z.logger.WithFields(logrus.Fields{
			"serial":    serial,
			"eventDate": eventDate,
			"err":       err.Error(),
		}).Warn("zoho event lookup failed, treating as not found")

		metrics.CollaboratorErrCount.WithLabelValues("zoho").Inc()

		return false, nil
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var result struct {
		Code int            `json:"code"`
		Data []reportRecord `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		z.logger.WithField("err", err.Error()).Warn("zoho report response decode failed")
		return false, nil
	}

	if result.Code != zohoSuccessCode {
		return false, nil
	}

	wantTechnician := strconv.FormatInt(technicianID, 10)

	for i := range result.Data {
		record := &result.Data[i]

		if record.technicianRef() == wantTechnician &&
			record.DataInizio == z.template.StartTime &&
			record.DataFine == z.template.EndTime {
			return true, nil
		}
	}

	return false, nil
}

// Create books a reminder event for the device through the Zoho Creator form.
func (z *Zoho) Create(ctx context.Context, device *model.ExpiringDevice, eventDate string, technicianID int64, template model.EventTemplate) error {
	token, err := z.tokens.accessToken(ctx)
	if err != nil {
		return err
	}

	zohoDate, err := toZohoDate(eventDate)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"Data":                zohoDate,
			"DataInizio":          zohoDate + " " + template.StartTime,
			"DataFine":            zohoDate + " " + template.EndTime,
			"Titolo":              eventTitle(device),
			"DescrizioneAttivita": eventDescription(device),
			"Tipologia":           template.Tipologia,
			"OrePianificate":      template.PlannedHours,
			"LkpTecnico":          technicianID,
			"LkpAttivitaInterna":  template.InternalActivityID,
			"Reparto":             template.Reparto,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(ErrCreate, err.Error())
	}

	endpoint := z.apiBase() + "/form/" + z.opts.Form

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return errors.Wrap(ErrCreate, err.Error())
	}

	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := z.client.Do(req)
	if err != nil {
		metrics.CollaboratorErrCount.WithLabelValues("zoho").Inc()
		return errors.Wrap(ErrCreate, err.Error())
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrap(ErrCreate, "HTTP status "+resp.Status)
	}

	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.Wrap(ErrCreate, err.Error())
	}

	if result.Code != zohoSuccessCode {
		return errors.Wrap(ErrCreate, fmt.Sprintf("code %d: %s", result.Code, result.Message))
	}

	return nil
}

func eventTitle(device *model.ExpiringDevice) string {
	return fmt.Sprintf("Scadenza %s - %s", device.Model, device.Serial)
}

func eventDescription(device *model.ExpiringDevice) string {
	lines := make([]string, 0, len(device.Services))
	for _, svc := range device.Services {
		lines = append(lines, fmt.Sprintf(
			"- %s (%s) - Scade il %s (%d giorni)",
			svc.Service, svc.Level, svc.ExpirationDate, svc.DaysRemaining,
		))
	}

	return fmt.Sprintf(
		"Dispositivo in scadenza:\n\nModello: %s\nSeriale: %s\nDescrizione: %s\n\nServizi in scadenza (%d):\n%s\n\nATTENZIONE: Verificare rinnovo contratto!",
		device.Model,
		device.Serial,
		device.Description,
		len(device.Services),
		strings.Join(lines, "\n"),
	)
}

// toZohoDate converts a canonical YYYY-MM-DD date to the DD/MM/YYYY form the
// Creator application stores.
func toZohoDate(eventDate string) (string, error) {
	t, err := time.Parse(isoDateLayout, eventDate)
	if err != nil {
		return "", errors.Wrap(ErrEventDate, eventDate)
	}

	return t.Format(zohoDateLayout), nil
}
