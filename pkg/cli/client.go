package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gettapd/tapd/pkg/inspect"
	"github.com/gettapd/tapd/pkg/tracelog"
)

// APIError is a structured error from the inspect API.
type APIError struct {
	StatusCode int
	ErrorCode  string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("inspect API returned status %d", e.StatusCode)
}

// LogQuery specifies filtering criteria for listing captured requests.
type LogQuery struct {
	Method    string
	Status    int
	Search    string
	Transport string
	Where     string
	Limit     int
	Offset    int
}

// InspectClient talks to a running inspect API.
type InspectClient struct {
	baseURL string
	http    *http.Client
}

// NewInspectClient creates a client for the given base URL.
func NewInspectClient(baseURL string) *InspectClient {
	return &InspectClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ListRequests fetches captured requests matching the query.
func (c *InspectClient) ListRequests(query *LogQuery) (*inspect.ListResponse, error) {
	params := url.Values{}
	if query != nil {
		if query.Method != "" {
			params.Set("method", query.Method)
		}
		if query.Status != 0 {
			params.Set("status", strconv.Itoa(query.Status))
		}
		if query.Search != "" {
			params.Set("search", query.Search)
		}
		if query.Transport != "" {
			params.Set("transport", query.Transport)
		}
		if query.Where != "" {
			params.Set("where", query.Where)
		}
		if query.Limit > 0 {
			params.Set("limit", strconv.Itoa(query.Limit))
		}
		if query.Offset > 0 {
			params.Set("offset", strconv.Itoa(query.Offset))
		}
	}

	endpoint := c.baseURL + "/requests"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var out inspect.ListResponse
	if err := c.getJSON(endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRequest fetches a single captured request by ID.
func (c *InspectClient) GetRequest(id string) (*tracelog.Record, error) {
	var rec tracelog.Record
	if err := c.getJSON(c.baseURL+"/requests/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ClearRequests empties the trace buffer.
func (c *InspectClient) ClearRequests() error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/requests", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return connectionError(c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}
	return nil
}

// Export fetches the trace buffer in the given format.
func (c *InspectClient) Export(format string) ([]byte, error) {
	resp, err := c.http.Get(c.baseURL + "/requests/export?format=" + url.QueryEscape(format))
	if err != nil {
		return nil, connectionError(c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

// CaptureStatus reports whether capture is enabled and how many records
// are stored.
func (c *InspectClient) CaptureStatus() (*inspect.CaptureStatus, error) {
	var out inspect.CaptureStatus
	if err := c.getJSON(c.baseURL+"/capture", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetCapture enables or disables capture.
func (c *InspectClient) SetCapture(enabled bool) (*inspect.CaptureStatus, error) {
	action := "disable"
	if enabled {
		action = "enable"
	}
	resp, err := c.http.Post(c.baseURL+"/capture/"+action, "", nil)
	if err != nil {
		return nil, connectionError(c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var out inspect.CaptureStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the inspect API is reachable.
func (c *InspectClient) Health() error {
	var out inspect.HealthResponse
	return c.getJSON(c.baseURL+"/health", &out)
}

func (c *InspectClient) getJSON(endpoint string, out any) error {
	resp, err := c.http.Get(endpoint)
	if err != nil {
		return connectionError(c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	_ = json.NewDecoder(resp.Body).Decode(apiErr)
	return apiErr
}

func connectionError(baseURL string, err error) error {
	return fmt.Errorf("cannot connect to inspect API at %s: %w (is the instrumented application running?)", baseURL, err)
}
