// Command hemalyze analyzes CBC reports from the command line and answers
// follow-up questions about them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config  string
	session string
}

var rootCmd = &cobra.Command{
	Use:   "hemalyze",
	Short: "Analyze complete blood count reports",
	Long: `Hemalyze extracts CBC parameters from report text, interprets them
against reference ranges, scores risk, and writes a patient-facing summary.
Analyzed reports can be questioned with the chat command.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.config, "config", "config.toml", "Base config file")
	f.StringVar(&rootFlags.session, "session", "", "Session identifier (default: \"default\")")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
