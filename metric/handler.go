package metric

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/canvaskit/errors"
)

const shutdownGrace = 5 * time.Second

// Server exposes the metrics registry over HTTP for Prometheus
// scrapes, alongside a plain /health probe.
type Server struct {
	port     int
	path     string
	registry *MetricsRegistry

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a metrics server. A zero port defaults to 9090 and
// an empty path to /metrics.
func NewServer(port int, path string, registry *MetricsRegistry) *Server {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}
	return &Server{port: port, path: path, registry: registry}
}

// Start binds the listen port and serves until Stop is called. The
// bind happens before Start blocks, so a port conflict reaches the
// caller even when Start runs on its own goroutine. A clean Stop
// returns nil.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(fmt.Errorf("server already running"), "Server", "Start", "start")
	}
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(fmt.Errorf("nil registry"), "Server", "Start", "configure scrape handler")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.mu.Unlock()
		return errors.WrapFatal(err, "Server", "Start", fmt.Sprintf("listen on port %d", s.port))
	}

	server := &http.Server{Handler: s.routes()}
	s.server = server
	s.mu.Unlock()

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Server", "Start", "serve metrics")
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, indexPage, s.path)
	})
	return mux
}

const indexPage = `<html>
<head><title>CanvasKit Metrics</title></head>
<body>
<h1>CanvasKit Metrics Server</h1>
<p><a href="%s">Metrics</a></p>
<p><a href="/health">Health</a></p>
</body>
</html>`

// Stop shuts the server down gracefully, waiting up to five seconds
// for in-flight scrapes. The server may be started again afterwards.
func (s *Server) Stop() error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shutdown HTTP server")
	}
	return nil
}

// Address returns the URL where metrics are served.
func (s *Server) Address() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, s.path)
}
