package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	inspectURL string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// DefaultInspectURL is the inspect API base URL when neither the flag nor
// TAPD_INSPECT_URL is set.
const DefaultInspectURL = "http://localhost:4246"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tapd",
	Short: "tapd inspects HTTP traffic captured by an instrumented application",
	Long: `tapd talks to the inspect API embedded in an application instrumented
with the tapd capture engine: view captured requests, stream them live,
export them as curl/HAR/OpenAPI, and toggle capture at runtime.

The inspect API address comes from --inspect-url or TAPD_INSPECT_URL
(default http://localhost:4246).`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultInspectURL() string {
	if v := os.Getenv("TAPD_INSPECT_URL"); v != "" {
		return v
	}
	return DefaultInspectURL
}

func init() {
	rootCmd.PersistentFlags().StringVar(&inspectURL, "inspect-url", defaultInspectURL(), "Inspect API base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}
