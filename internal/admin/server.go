// Package admin serves the operator HTTP surface for a running
// supervisor: worker status, scaling state, and a health probe.
//
// The server is read only. It renders the supervisor's snapshot types
// as JSON and never mutates supervisor state.
package admin

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Iron-Ham/maestro/internal/logging"
	"github.com/Iron-Ham/maestro/internal/supervisor"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for server lifecycle messages.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server exposes supervisor state over HTTP.
type Server struct {
	sup  *supervisor.Supervisor
	log  *logging.Logger
	http *http.Server
	ln   net.Listener
}

// New creates a Server bound to addr. The listener is not opened until
// Start.
func New(sup *supervisor.Supervisor, addr string, opts ...Option) *Server {
	s := &Server{
		sup: sup,
		log: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.routes(router)

	s.http = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

func (s *Server) routes(router *gin.Engine) {
	router.GET("/status", s.getStatus)
	router.GET("/scaling", s.getScaling)
	router.GET("/healthz", s.healthz)
}

// Handler returns the HTTP handler serving the admin routes.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start opens the listener and begins serving in the background. The
// bound address is available from Addr once Start returns.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("admin server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("admin server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address, or the configured address
// before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.http.Addr
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// getStatus handles GET /status.
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.sup.Status())
}

// getScaling handles GET /scaling.
func (s *Server) getScaling(c *gin.Context) {
	c.JSON(http.StatusOK, s.sup.ScalingStatus())
}

// healthz handles GET /healthz. It reports 200 while the supervisor is
// running and 503 once a shutdown has begun, so load balancers and
// probes stop routing to a draining host.
func (s *Server) healthz(c *gin.Context) {
	state := s.sup.State()
	code := http.StatusOK
	status := "ok"
	if state != supervisor.StateRunning {
		code = http.StatusServiceUnavailable
		status = "shutting_down"
	}
	c.JSON(code, gin.H{
		"status": status,
		"state":  state.String(),
	})
}
