package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gettapd/tapd/pkg/export"
)

var exportFlags struct {
	format string
	out    string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export captured requests as curl, HAR, or an OpenAPI skeleton",
	Example: `  # Replay commands for everything in the buffer
  tapd export --format curl

  # HAR archive for a DevTools-compatible viewer
  tapd export --format har --out traffic.har

  # OpenAPI 3 skeleton derived from observed endpoints
  tapd export --format openapi --out api.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewInspectClient(inspectURL)
		data, err := client.Export(exportFlags.format)
		if err != nil {
			return err
		}

		if exportFlags.out == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(exportFlags.out, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportFlags.out, err)
		}
		fmt.Printf("Exported %d bytes to %s\n", len(data), exportFlags.out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.format, "format", export.FormatHAR, "Export format: curl, har, or openapi")
	exportCmd.Flags().StringVar(&exportFlags.out, "out", "", "Write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
