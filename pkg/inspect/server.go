package inspect

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gettapd/tapd/pkg/capture"
	"github.com/gettapd/tapd/pkg/capture/exprfilter"
	"github.com/gettapd/tapd/pkg/logging"
	"github.com/gettapd/tapd/pkg/metrics"
)

// DefaultPort is the inspect API's default listen port.
const DefaultPort = 4246

// Options configures a Server.
type Options struct {
	// Port to listen on (default 4246).
	Port int

	// Host to bind (default 127.0.0.1).
	Host string

	// Logger for server diagnostics (default no-op).
	Logger *slog.Logger
}

// Server is the embedded inspection API.
type Server struct {
	cap        *capture.Capture
	where      *exprfilter.Engine
	httpServer *http.Server
	addr       string
	log        *slog.Logger
	startTime  time.Time
}

// NewServer creates an inspect server over the given capture engine.
func NewServer(cap *capture.Capture, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	s := &Server{
		cap:   cap,
		where: exprfilter.NewEngine(),
		addr:  net.JoinHostPort(opts.Host, fmt.Sprint(opts.Port)),
		log:   log,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /requests", s.handleListRequests)
	mux.HandleFunc("GET /requests/stream", s.handleStreamRequests)
	mux.HandleFunc("GET /requests/ws", s.handleWebSocketRequests)
	mux.HandleFunc("GET /requests/export", s.handleExportRequests)
	mux.HandleFunc("GET /requests/{id}", s.handleGetRequest)
	mux.HandleFunc("DELETE /requests", s.handleClearRequests)

	mux.HandleFunc("POST /capture/enable", s.handleCaptureEnable)
	mux.HandleFunc("POST /capture/disable", s.handleCaptureDisable)
	mux.HandleFunc("GET /capture", s.handleCaptureStatus)

	mux.Handle("GET /metrics", metrics.Default.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the route handler, for embedding in an existing server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.startTime = time.Now()
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("inspect listen on %s: %w", s.addr, err)
	}
	s.addr = ln.Addr().String()

	s.log.Info("starting inspect API", "addr", s.addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("inspect API error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns seconds since Start.
func (s *Server) Uptime() int {
	return int(time.Since(s.startTime).Seconds())
}
