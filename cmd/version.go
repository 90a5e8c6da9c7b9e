package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/support-tools/fortisync/internal/version"
)

var cmdVersion = &cobra.Command{
	Use:   "version",
	Short: "Print fortisync version along with dependency information.",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf(
			"commit: %s\nbranch: %s\ngit summary: %s\nbuildDate: %s\nversion: %s\nGo version: %s\ncron version: %s\noauth2 version: %s\n",
			version.GitCommit, version.GitBranch, version.GitSummary, version.BuildDate, version.AppVersion, version.GoVersion, version.CronVersion, version.OAuthVersion)
	},
}

func init() {
	rootCmd.AddCommand(cmdVersion)
}
