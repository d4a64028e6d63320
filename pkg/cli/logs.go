package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/gettapd/tapd/pkg/tracelog"
)

var logsFlags struct {
	method      string
	status      int
	search      string
	transport   string
	where       string
	limit       int
	verbose     bool
	follow      bool
	ws          bool
	clear       bool
	interactive bool
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View captured requests",
	Example: `  # Show the 20 most recent requests
  tapd logs

  # Failed POSTs only
  tapd logs -m POST --status 500

  # Expression filter
  tapd logs --where 'duration_ms > 200 && !has_error'

  # Stream new requests as they happen
  tapd logs -f

  # Build the filter interactively
  tapd logs --interactive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if logsFlags.clear {
			client := NewInspectClient(inspectURL)
			if err := client.ClearRequests(); err != nil {
				return err
			}
			fmt.Println("Cleared captured requests")
			return nil
		}

		if logsFlags.interactive {
			if err := promptLogFilter(); err != nil {
				return err
			}
		}

		if logsFlags.ws {
			return streamLogsWS(cmd.Context())
		}
		if logsFlags.follow {
			return streamLogsSSE(cmd.Context())
		}

		client := NewInspectClient(inspectURL)
		result, err := client.ListRequests(&LogQuery{
			Method:    logsFlags.method,
			Status:    logsFlags.status,
			Search:    logsFlags.search,
			Transport: logsFlags.transport,
			Where:     logsFlags.where,
			Limit:     logsFlags.limit,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Requests)
		}
		if len(result.Requests) == 0 {
			fmt.Println("No captured requests")
			return nil
		}
		if logsFlags.verbose {
			for _, rec := range result.Requests {
				printVerboseRecord(rec)
			}
			return nil
		}
		return printRecordTable(result.Requests)
	},
}

// promptLogFilter fills the logs flags from an interactive form.
func promptLogFilter() error {
	limit := strconv.Itoa(logsFlags.limit)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Method").
				Options(
					huh.NewOption("Any", ""),
					huh.NewOption("GET", "GET"),
					huh.NewOption("POST", "POST"),
					huh.NewOption("PUT", "PUT"),
					huh.NewOption("PATCH", "PATCH"),
					huh.NewOption("DELETE", "DELETE"),
				).
				Value(&logsFlags.method),
			huh.NewSelect[int]().
				Title("Status class").
				Options(
					huh.NewOption("Any", 0),
					huh.NewOption("2xx", 200),
					huh.NewOption("3xx", 300),
					huh.NewOption("4xx", 400),
					huh.NewOption("5xx", 500),
				).
				Value(&logsFlags.status),
			huh.NewInput().
				Title("URL contains").
				Placeholder("/api/users").
				Value(&logsFlags.search),
			huh.NewInput().
				Title("Where expression (optional)").
				Placeholder(`duration_ms > 200 && !has_error`).
				Value(&logsFlags.where),
			huh.NewInput().
				Title("Limit").
				Value(&limit).
				Validate(func(s string) error {
					if _, err := strconv.Atoi(s); err != nil {
						return fmt.Errorf("not a number: %s", s)
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	logsFlags.limit, _ = strconv.Atoi(limit)
	return nil
}

func printRecordTable(records []*tracelog.Record) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tTRANSPORT\tMETHOD\tURL\tSTATUS\tDURATION")
	for _, rec := range records {
		fmt.Fprintln(w, recordTableRow(rec))
	}
	return w.Flush()
}

func recordTableRow(rec *tracelog.Record) string {
	u := rec.URL
	if len(u) > 48 {
		u = u[:45] + "..."
	}
	status := "-"
	if rec.ResponseStatus != 0 {
		status = strconv.Itoa(rec.ResponseStatus)
	} else if rec.Error != "" {
		status = "ERR"
	}
	duration := "-"
	if rec.DurationMs >= 0 {
		duration = fmt.Sprintf("%dms", rec.DurationMs)
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s",
		rec.Timestamp.Format("2006-01-02 15:04:05"),
		rec.Transport, rec.Method, u, status, duration)
}

func printVerboseRecord(rec *tracelog.Record) {
	fmt.Printf("──── %s\n", rec.ID)
	fmt.Printf("%s %s (%s)\n", rec.Method, rec.URL, rec.Transport)
	fmt.Printf("  time: %s", rec.Timestamp.Format(time.RFC3339))
	if rec.DurationMs >= 0 {
		fmt.Printf("  duration: %dms", rec.DurationMs)
	}
	fmt.Println()

	if rec.Error != "" {
		fmt.Printf("  error: %s\n", rec.Error)
	} else if rec.ResponseStatus != 0 {
		fmt.Printf("  status: %d\n", rec.ResponseStatus)
	}

	printHeaderBlock("  request headers:", rec.RequestHeaders)
	printBodyBlock("  request body:", rec.RequestBody)
	printHeaderBlock("  response headers:", rec.ResponseHeaders)
	printBodyBlock("  response body:", rec.ResponseBody)

	if len(rec.Annotations) > 0 {
		fmt.Println("  annotations:")
		for _, key := range sortedKeys(rec.Annotations) {
			fmt.Printf("    %s: %s\n", key, rec.Annotations[key])
		}
	}
	if rec.Truncated {
		fmt.Println("  (bodies truncated)")
	}
	fmt.Println()
}

func printHeaderBlock(title string, headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	fmt.Println(title)
	for _, key := range sortedKeys(headers) {
		fmt.Printf("    %s: %s\n", key, headers[key])
	}
}

func printBodyBlock(title string, body any) {
	if body == nil {
		return
	}
	fmt.Println(title)
	switch v := body.(type) {
	case string:
		fmt.Printf("    %s\n", strings.ReplaceAll(v, "\n", "\n    "))
	default:
		data, err := json.MarshalIndent(v, "    ", "  ")
		if err != nil {
			fmt.Printf("    %v\n", v)
			return
		}
		fmt.Printf("    %s\n", data)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// streamLogsSSE follows the SSE stream until interrupted.
func streamLogsSSE(parent context.Context) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inspectURL+"/requests/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return connectionError(inspectURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	fmt.Println("Streaming captured requests (press Ctrl+C to stop)...")
	fmt.Println()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.Contains(data, "Connected to request stream") {
			continue
		}
		emitStreamedRecord([]byte(data))
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// streamLogsWS follows the WebSocket stream until interrupted.
func streamLogsWS(parent context.Context) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	wsURL := strings.Replace(inspectURL, "http", "ws", 1) + "/requests/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return connectionError(inspectURL, err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	fmt.Println("Streaming captured requests (press Ctrl+C to stop)...")
	fmt.Println()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		emitStreamedRecord(data)
	}
}

func emitStreamedRecord(data []byte) {
	var rec tracelog.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return
	}
	switch {
	case jsonOutput:
		fmt.Println(string(data))
	case logsFlags.verbose:
		printVerboseRecord(&rec)
	default:
		fmt.Println(strings.ReplaceAll(recordTableRow(&rec), "\t", "  "))
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func init() {
	logsCmd.Flags().StringVarP(&logsFlags.method, "method", "m", "", "Filter by HTTP method")
	logsCmd.Flags().IntVar(&logsFlags.status, "status", 0, "Filter by status class (200, 400, 500, ...)")
	logsCmd.Flags().StringVarP(&logsFlags.search, "search", "s", "", "Filter by URL substring")
	logsCmd.Flags().StringVar(&logsFlags.transport, "transport", "", "Filter by transport (http, eventhttp, grpc)")
	logsCmd.Flags().StringVar(&logsFlags.where, "where", "", "Filter by expression, e.g. 'status >= 500'")
	logsCmd.Flags().IntVarP(&logsFlags.limit, "limit", "n", 20, "Number of entries to show")
	logsCmd.Flags().BoolVar(&logsFlags.verbose, "verbose", false, "Show headers, bodies, and annotations")
	logsCmd.Flags().BoolVarP(&logsFlags.follow, "follow", "f", false, "Stream new requests in real-time (SSE)")
	logsCmd.Flags().BoolVar(&logsFlags.ws, "ws", false, "Stream over WebSocket instead of SSE")
	logsCmd.Flags().BoolVar(&logsFlags.clear, "clear", false, "Clear all captured requests")
	logsCmd.Flags().BoolVar(&logsFlags.interactive, "interactive", false, "Build the filter interactively")
	rootCmd.AddCommand(logsCmd)
}
