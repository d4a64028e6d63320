package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gettapd/tapd/pkg/inspect"
)

var captureCmd = &cobra.Command{
	Use:   "capture [on|off|status]",
	Short: "Toggle or show request capture",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewInspectClient(inspectURL)

		action := "status"
		if len(args) == 1 {
			action = args[0]
		}

		var status *inspect.CaptureStatus
		var err error
		switch action {
		case "on":
			status, err = client.SetCapture(true)
		case "off":
			status, err = client.SetCapture(false)
		case "status":
			status, err = client.CaptureStatus()
		default:
			return fmt.Errorf("unknown action %q (expected on, off, or status)", action)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}
		state := "disabled"
		if status.Enabled {
			state = "enabled"
		}
		fmt.Printf("Capture %s, %d request(s) stored\n", state, status.Count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
}
