package app

import (
	"os"
	"os/signal"
	"syscall"

	runtime "github.com/banzaicloud/logrus-runtime-formatter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/support-tools/fortisync/internal/model"
)

// App holds attributes for the fortisync application
type App struct {
	// Viper loads configuration parameters.
	v *viper.Viper
	// fortisync configuration.
	Config *Configuration
	// Logger is the app logger
	Logger *logrus.Logger
	// Kind is the type of application - service / client
	Kind model.AppKind
}

// New returns a new fortisync application object with the configuration loaded
// and validated, along with a channel receiving SIGINT/SIGTERM.
func New(appKind model.AppKind, cfgFile, loglevel string) (*App, <-chan os.Signal, error) {
	app := &App{
		v:      viper.New(),
		Kind:   appKind,
		Config: &Configuration{},
		Logger: logrus.New(),
	}

	if err := app.LoadConfiguration(cfgFile); err != nil {
		return nil, nil, err
	}

	// the CLI flag takes precedence over the configuration file value
	if loglevel != "" {
		app.Config.LogLevel = loglevel
	}

	switch app.Config.LogLevel {
	case model.LogLevelDebug:
		app.Logger.Level = logrus.DebugLevel
	case model.LogLevelTrace:
		app.Logger.Level = logrus.TraceLevel
	default:
		app.Logger.Level = logrus.InfoLevel
	}

	app.Logger.SetFormatter(
		&runtime.Formatter{ChildFormatter: &logrus.JSONFormatter{}},
	)

	// register for SIGINT, SIGTERM
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, syscall.SIGINT, syscall.SIGTERM)

	return app, termCh, nil
}
