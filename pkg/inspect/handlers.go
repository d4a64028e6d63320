package inspect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gettapd/tapd/pkg/export"
	"github.com/gettapd/tapd/pkg/httputil"
	"github.com/gettapd/tapd/pkg/tracelog"
)

// ListResponse is the GET /requests payload.
type ListResponse struct {
	Requests []*tracelog.Record `json:"requests"`
	Total    int                `json:"total"`
}

// CaptureStatus is the GET /capture payload.
type CaptureStatus struct {
	Enabled bool `json:"enabled"`
	Count   int  `json:"count"`
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int    `json:"uptime"`
}

// handleListRequests handles GET /requests.
//
// Query parameters:
//   - method: filter by HTTP method ("ALL" matches everything)
//   - status: status class (200, 400, 500, ...)
//   - search: case-insensitive URL substring
//   - transport: filter by capture adapter (http, eventhttp, grpc)
//   - hasError: filter by transport-failure presence (true/false)
//   - where: expr predicate over the record
//   - limit, offset: pagination, applied after filtering
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	filter, whereExpr, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_filter", err.Error())
		return
	}

	// Pagination applies after the where clause, so run it separately.
	limit, offset := filter.Limit, filter.Offset
	filter.Limit, filter.Offset = 0, 0

	records := s.cap.FilteredLogs(filter)
	if whereExpr != "" {
		records, err = s.where.Select(whereExpr, records)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "bad_where", err.Error())
			return
		}
	}
	total := len(records)
	records = (&tracelog.Filter{Limit: limit, Offset: offset}).Apply(records)

	httputil.WriteOK(w, ListResponse{Requests: records, Total: total})
}

// handleGetRequest handles GET /requests/{id}.
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing_id", "Request ID is required")
		return
	}
	rec := s.cap.Get(id)
	if rec == nil {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "No such request")
		return
	}
	httputil.WriteOK(w, rec)
}

// handleClearRequests handles DELETE /requests.
func (s *Server) handleClearRequests(w http.ResponseWriter, r *http.Request) {
	s.cap.ClearLogs()
	httputil.WriteNoContent(w)
}

// handleExportRequests handles GET /requests/export?format=curl|har|openapi.
func (s *Server) handleExportRequests(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatHAR
	}
	out, err := export.Render(format, s.cap.Logs())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_format", err.Error())
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleStreamRequests handles GET /requests/stream, an SSE feed of newly
// captured records.
func (s *Server) handleStreamRequests(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "sse_error", "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.cap.SubscribeChan()
	defer unsubscribe()

	_, _ = fmt.Fprintf(w, "event: connected\ndata: {\"message\": \"Connected to request stream\"}\n\n")
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case rec, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: request\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Loopback development surface; cross-origin tooling is expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocketRequests handles GET /requests/ws, the WebSocket
// equivalent of the SSE stream. Each new record arrives as one JSON text
// message.
func (s *Server) handleWebSocketRequests(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, unsubscribe := s.cap.SubscribeChan()
	defer unsubscribe()

	// Drain client frames so close handshakes and pings are processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-clientGone:
			return
		case rec, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		}
	}
}

// handleCaptureEnable handles POST /capture/enable.
func (s *Server) handleCaptureEnable(w http.ResponseWriter, r *http.Request) {
	s.cap.Enable()
	s.writeCaptureStatus(w)
}

// handleCaptureDisable handles POST /capture/disable.
func (s *Server) handleCaptureDisable(w http.ResponseWriter, r *http.Request) {
	s.cap.Disable()
	s.writeCaptureStatus(w)
}

// handleCaptureStatus handles GET /capture.
func (s *Server) handleCaptureStatus(w http.ResponseWriter, r *http.Request) {
	s.writeCaptureStatus(w)
}

func (s *Server) writeCaptureStatus(w http.ResponseWriter) {
	httputil.WriteOK(w, CaptureStatus{Enabled: s.cap.Enabled(), Count: s.cap.Count()})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, HealthResponse{Status: "ok", Uptime: s.Uptime()})
}

func filterFromQuery(r *http.Request) (*tracelog.Filter, string, error) {
	q := r.URL.Query()
	filter := &tracelog.Filter{
		Method:     q.Get("method"),
		SearchText: q.Get("search"),
		Transport:  q.Get("transport"),
	}
	if status := q.Get("status"); status != "" {
		class, err := strconv.Atoi(status)
		if err != nil {
			return nil, "", fmt.Errorf("status: %q is not a number", status)
		}
		filter.StatusClass = class
	}
	if hasError := q.Get("hasError"); hasError != "" {
		v, err := strconv.ParseBool(hasError)
		if err != nil {
			return nil, "", fmt.Errorf("hasError: %q is not a boolean", hasError)
		}
		filter.HasError = &v
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("limit: %q is not a valid count", limit)
		}
		filter.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("offset: %q is not a valid offset", offset)
		}
		filter.Offset = n
	}
	return filter, q.Get("where"), nil
}
