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

var cmdSync = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass and print the result",
	Run: func(cmd *cobra.Command, _ []string) {
		runSync(cmd.Context())
	},
}

func runSync(ctx context.Context) {
	fortisync, _, err := app.New(model.AppKindClient, cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	result, err := worker.RunOnce(ctx, fortisync)
	if err != nil {
		fortisync.Logger.Fatal(err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fortisync.Logger.Fatal(err)
	}

	os.Stdout.Write(out)
	os.Stdout.WriteString("\n")
}

func init() {
	rootCmd.AddCommand(cmdSync)
}
