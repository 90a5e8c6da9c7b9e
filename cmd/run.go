package cmd

import (
	"context"
	"log"

	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/spf13/cobra"

	"github.com/support-tools/fortisync/internal/app"
	"github.com/support-tools/fortisync/internal/metrics"
	"github.com/support-tools/fortisync/internal/model"
	"github.com/support-tools/fortisync/internal/server"
	"github.com/support-tools/fortisync/internal/version"
	"github.com/support-tools/fortisync/internal/worker"
)

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run fortisync service with the dashboard API and scheduled reconciliation",
	Run: func(cmd *cobra.Command, _ []string) {
		runService(cmd.Context())
	},
}

func runService(ctx context.Context) {
	fortisync, termCh, err := app.New(model.AppKindService, cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	// serve metrics endpoint
	metrics.ListenAndServe()
	version.ExportBuildInfoMetric()

	ctx, otelShutdown := otelinit.InitOpenTelemetry(ctx, model.AppName)
	defer otelShutdown(ctx)

	// Setup cancel context with cancel func.
	ctx, cancelFunc := context.WithCancel(ctx)

	// routine listens for termination signal and cancels the context
	go func() {
		<-termCh
		fortisync.Logger.Info("got TERM signal, exiting...")
		cancelFunc()
	}()

	dashboard := server.New(
		fortisync,
		func(ctx context.Context) (model.SyncResult, error) {
			return worker.RunOnce(ctx, fortisync)
		},
		func(ctx context.Context) ([]*model.ExpiringDevice, error) {
			return worker.ExpiringDevices(ctx, fortisync)
		},
	)

	go func() {
		if err := dashboard.ListenAndServe(ctx); err != nil {
			fortisync.Logger.WithError(err).Error("dashboard API server returned an error")
			cancelFunc()
		}
	}()

	if err := worker.Run(ctx, fortisync); err != nil {
		fortisync.Logger.Fatal(err)
	}
}

func init() {
	rootCmd.AddCommand(cmdRun)
}
