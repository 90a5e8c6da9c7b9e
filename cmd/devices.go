package cmd

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/support-tools/fortisync/internal/app"
	"github.com/support-tools/fortisync/internal/model"
	"github.com/support-tools/fortisync/internal/worker"
)

var cmdDevices = &cobra.Command{
	Use:   "devices",
	Short: "List firewalls with support contracts expiring inside the reminder window",
	Run: func(cmd *cobra.Command, _ []string) {
		runDevices(cmd.Context())
	},
}

func runDevices(ctx context.Context) {
	fortisync, _, err := app.New(model.AppKindClient, cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	devices, err := worker.ExpiringDevices(ctx, fortisync)
	if err != nil {
		fortisync.Logger.Fatal(err)
	}

	out, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		fortisync.Logger.Fatal(err)
	}

	os.Stdout.Write(out)
	os.Stdout.WriteString("\n")
}

func init() {
	rootCmd.AddCommand(cmdDevices)
}
