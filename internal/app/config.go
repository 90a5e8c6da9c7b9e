package app

import (
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jeremywohl/flatten"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/support-tools/fortisync/internal/model"
)

const (
	defaultListenAddress = "0.0.0.0:8099"
	defaultSyncSchedule  = "0 */6 * * *"
	defaultSnapshotFile  = "/config/fortinet_devices.json"

	defaultFilterDaysMin = 1
	defaultFilterDaysMax = 15

	defaultEventStartTime   = "08:00"
	defaultEventEndTime     = "09:00"
	defaultEventPlannedHrs  = 1.0
	defaultZohoDataCenter   = "eu"
	defaultZohoReport       = "CalendarioPianificazione"
	defaultTokenFile        = "/config/zoho_tokens.json"
	defaultRefreshTokenFile = "/config/zoho_refresh_token.txt"

	timeOfDayLayout = "15:04"
)

var (
	ErrConfig = errors.New("configuration error")
)

// Configuration holds application configuration read from a YAML file or set
// by env variables.
//
// nolint:govet // prefer readability over field alignment optimization for this case.
type Configuration struct {
	// LogLevel is the app verbose logging level.
	// one of - info, debug, trace
	LogLevel string `mapstructure:"log_level"`

	// ListenAddress is the address the dashboard API listens on.
	ListenAddress string `mapstructure:"listen_address"`

	// SyncSchedule is the cron expression for scheduled reconciliation runs.
	SyncSchedule string `mapstructure:"sync_schedule"`

	// SnapshotFile is the local JSON file the FortiCare asset data is cached in.
	SnapshotFile string `mapstructure:"snapshot_file"`

	// FilterDaysMin, FilterDaysMax bound the days-remaining window an
	// entitlement must fall in to qualify for a reminder, both inclusive.
	FilterDaysMin int `mapstructure:"filter_days_min"`
	FilterDaysMax int `mapstructure:"filter_days_max"`

	// Technicians is the ordered roster reminder events are fanned out to.
	Technicians []TechnicianOptions `mapstructure:"technicians"`

	// Zoho defines the Zoho Creator client configuration parameters.
	Zoho *ZohoOptions `mapstructure:"zoho"`

	// FortiCare defines the FortiCare asset API client configuration parameters.
	//
	// The API integration is considered enabled when APIID, Password and
	// AccountID are all set; otherwise runs read the snapshot file only.
	FortiCare *FortiCareOptions `mapstructure:"forticare"`

	// Event holds the fixed calendar-event template fields.
	Event *EventOptions `mapstructure:"event"`
}

type TechnicianOptions struct {
	ID   int64  `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// ZohoOptions defines configuration for the Zoho Creator client.
type ZohoOptions struct {
	// DC is the Zoho data center suffix - eu, com, in ...
	DC           string `mapstructure:"dc"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Owner        string `mapstructure:"owner"`
	App          string `mapstructure:"app"`
	Form         string `mapstructure:"form"`
	Report       string `mapstructure:"report"`

	// TokenFile caches the short lived access token, RefreshTokenFile holds
	// the long lived refresh token obtained during setup.
	TokenFile        string `mapstructure:"token_file"`
	RefreshTokenFile string `mapstructure:"refresh_token_file"`

	// AccountsBaseURL and APIBaseURL override the data-center derived
	// endpoints, used in tests.
	AccountsBaseURL string `mapstructure:"accounts_base_url"`
	APIBaseURL      string `mapstructure:"api_base_url"`
}

// FortiCareOptions defines configuration for the FortiCare registration API client.
type FortiCareOptions struct {
	APIID            string `mapstructure:"api_id"`
	Password         string `mapstructure:"password"`
	AccountID        int64  `mapstructure:"account_id"`
	ClientID         string `mapstructure:"client_id"`
	AuthEndpoint     string `mapstructure:"auth_endpoint"`
	ProductsEndpoint string `mapstructure:"products_endpoint"`
}

// Enabled reports whether the FortiCare API integration is configured.
func (o *FortiCareOptions) Enabled() bool {
	return o != nil && o.APIID != "" && o.Password != "" && o.AccountID != 0
}

type EventOptions struct {
	StartTime          string  `mapstructure:"start_time"`
	EndTime            string  `mapstructure:"end_time"`
	Tipologia          string  `mapstructure:"tipologia"`
	Reparto            string  `mapstructure:"reparto"`
	PlannedHours       float64 `mapstructure:"ore_pianificate"`
	InternalActivityID int64   `mapstructure:"attivita_interna_id"`
}

// LoadConfiguration loads application configuration
//
// Reads in the cfgFile when available and overrides from environment variables.
func (a *App) LoadConfiguration(cfgFile string) error {
	a.v.SetConfigType("yaml")
	a.v.SetEnvPrefix(model.AppName)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	// these are initialized here so viper can read in configuration from env vars
	a.Config.Zoho = &ZohoOptions{}
	a.Config.FortiCare = &FortiCareOptions{}
	a.Config.Event = &EventOptions{}

	if cfgFile != "" {
		fh, err := os.Open(cfgFile)
		if err != nil {
			return errors.Wrap(ErrConfig, err.Error())
		}

		defer fh.Close()

		if err = a.v.ReadConfig(fh); err != nil {
			return errors.Wrap(ErrConfig, "ReadConfig error:"+err.Error())
		}
	}

	a.setDefaults()

	if err := a.envBindVars(); err != nil {
		return errors.Wrap(ErrConfig, "env var bind error:"+err.Error())
	}

	if err := a.v.Unmarshal(a.Config); err != nil {
		return errors.Wrap(ErrConfig, "Unmarshal error: "+err.Error())
	}

	return a.Config.validate()
}

func (a *App) setDefaults() {
	a.v.SetDefault("log_level", model.LogLevelInfo)
	a.v.SetDefault("listen_address", defaultListenAddress)
	a.v.SetDefault("sync_schedule", defaultSyncSchedule)
	a.v.SetDefault("snapshot_file", defaultSnapshotFile)
	a.v.SetDefault("filter_days_min", defaultFilterDaysMin)
	a.v.SetDefault("filter_days_max", defaultFilterDaysMax)
	a.v.SetDefault("zoho.dc", defaultZohoDataCenter)
	a.v.SetDefault("zoho.report", defaultZohoReport)
	a.v.SetDefault("zoho.token_file", defaultTokenFile)
	a.v.SetDefault("zoho.refresh_token_file", defaultRefreshTokenFile)
	a.v.SetDefault("event.start_time", defaultEventStartTime)
	a.v.SetDefault("event.end_time", defaultEventEndTime)
	a.v.SetDefault("event.ore_pianificate", defaultEventPlannedHrs)
}

// envBindVars binds environment variables to the struct
// without a configuration file being unmarshalled,
// this is a workaround for a viper bug,
//
// This can be replaced by the solution in https://github.com/spf13/viper/pull/1429
// once that PR is merged.
func (a *App) envBindVars() error {
	envKeysMap := map[string]interface{}{}
	if err := mapstructure.Decode(a.Config, &envKeysMap); err != nil {
		return err
	}

	// Flatten nested conf map
	flat, err := flatten.Flatten(envKeysMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "Unable to flatten config")
	}

	for k := range flat {
		if err := a.v.BindEnv(k); err != nil {
			return errors.Wrap(ErrConfig, "env var bind error: "+err.Error())
		}
	}

	return nil
}

// validate checks the configuration invariants, collecting every violation so
// a misconfigured install surfaces all problems at once, before any external
// call is made.
func (c *Configuration) validate() error {
	var result *multierror.Error

	if c.FilterDaysMin > c.FilterDaysMax {
		result = multierror.Append(result,
			errors.Wrap(ErrConfig, "filter_days_min must be <= filter_days_max"))
	}

	if _, err := cron.ParseStandard(c.SyncSchedule); err != nil {
		result = multierror.Append(result,
			errors.Wrap(ErrConfig, "sync_schedule: "+err.Error()))
	}

	if c.Event != nil {
		if _, err := time.Parse(timeOfDayLayout, c.Event.StartTime); err != nil {
			result = multierror.Append(result,
				errors.Wrap(ErrConfig, "event.start_time must be HH:MM: "+c.Event.StartTime))
		}

		if _, err := time.Parse(timeOfDayLayout, c.Event.EndTime); err != nil {
			result = multierror.Append(result,
				errors.Wrap(ErrConfig, "event.end_time must be HH:MM: "+c.Event.EndTime))
		}

		if c.Event.PlannedHours <= 0 {
			result = multierror.Append(result,
				errors.Wrap(ErrConfig, "event.ore_pianificate must be > 0"))
		}
	}

	return result.ErrorOrNil()
}

// ZohoConfigured reports whether the Zoho Creator identifiers required for a
// reconciliation run are all present.
func (c *Configuration) ZohoConfigured() bool {
	z := c.Zoho
	if z == nil {
		return false
	}

	required := []string{z.DC, z.ClientID, z.ClientSecret, z.Owner, z.App, z.Form, z.Report}
	for _, v := range required {
		if v == "" {
			return false
		}
	}

	return true
}

// TechnicianRoster converts the configured roster to model form, in
// configured order.
func (c *Configuration) TechnicianRoster() []model.Technician {
	roster := make([]model.Technician, 0, len(c.Technicians))
	for _, t := range c.Technicians {
		roster = append(roster, model.Technician{ID: t.ID, Name: t.Name})
	}

	return roster
}

// EventTemplate converts the configured event fields to model form.
func (c *Configuration) EventTemplate() model.EventTemplate {
	if c.Event == nil {
		return model.EventTemplate{}
	}

	return model.EventTemplate{
		StartTime:          c.Event.StartTime,
		EndTime:            c.Event.EndTime,
		Tipologia:          c.Event.Tipologia,
		Reparto:            c.Event.Reparto,
		PlannedHours:       c.Event.PlannedHours,
		InternalActivityID: c.Event.InternalActivityID,
	}
}
