package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set with -ldflags "-X github.com/spigell/scholarship-hunter/cmd.version=...".
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the effective search, model and store settings",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Fprintln(out, version)
			return
		}

		fmt.Fprintf(out, "%s version: %s (%s)\n", app, version, runtime.Version())
		fmt.Fprintf(out, "search provider: %s\n", viper.GetString("search.provider"))
		fmt.Fprintf(out, "gemini model: %s\n", viper.GetString("ai.gemini.model"))
		fmt.Fprintf(out, "store backend: %s\n", viper.GetString("store.backend"))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("short", false, "print only the version")
}
