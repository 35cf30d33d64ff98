// Package readiness exposes the bootstrap state over HTTP for orchestrators
// and operators.
//
//	GET  /healthz  liveness, always 200 while the process serves
//	GET  /readyz   200 once every subsystem is initialized, 503 before
//	GET  /report   the last InitializeAll report
//	GET  /metrics  bootstrap metrics in Prometheus text format
//	POST /probe    live connection check of every subsystem
package readiness

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/pkg/observability/metrics"
	"github.com/kart-io/legalstudy/pkg/utils/json"
)

// Health values used in responses.
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// Source is the part of the bootstrap manager the server reads.
type Source interface {
	IsFullyInitialized() bool
	Running() bool
	Statuses() map[string]bootstrap.StatusSnapshot
	LastReport() *bootstrap.Report
	ProbeAll(ctx context.Context) map[string]bootstrap.ProbeResult
}

// CheckResult is one subsystem in a /readyz response.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version,omitempty"`
	Running bool                   `json:"running,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// ProbeResponse is the body of /probe.
type ProbeResponse struct {
	Status  string                           `json:"status"`
	Results map[string]bootstrap.ProbeResult `json:"results"`
}

// Server serves the readiness endpoints.
type Server struct {
	opts     *Options
	src      Source
	registry *metrics.Registry
	version  string
	engine   *gin.Engine
	server   *http.Server
}

// NewServer builds the gin engine. A nil registry serves the default one.
func NewServer(src Source, registry *metrics.Registry, opts *Options, version string) *Server {
	if opts == nil {
		opts = NewOptions()
	}
	_ = opts.Complete()
	if registry == nil {
		registry = metrics.DefaultRegistry
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog())

	s := &Server{
		opts:     opts,
		src:      src,
		registry: registry,
		version:  version,
		engine:   engine,
	}
	engine.GET("/healthz", s.healthz)
	engine.GET("/readyz", s.readyz)
	engine.GET("/report", s.report)
	engine.GET("/metrics", s.serveMetrics)
	engine.POST("/probe", s.probe)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully. ln may be
// nil, in which case Options.Addr is used.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if ln != nil {
			err = s.server.Serve(ln)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infow("readiness server listening", "addr", s.opts.Addr)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// 使用独立的 context，调用方的 ctx 已取消
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("readiness server stopped")
	return nil
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: StatusUp, Version: s.version})
}

func (s *Server) readyz(c *gin.Context) {
	resp := HealthResponse{
		Status:  StatusUp,
		Version: s.version,
		Running: s.src.Running(),
		Checks:  make(map[string]CheckResult),
	}
	for name, st := range s.src.Statuses() {
		check := CheckResult{Status: StatusUp}
		if !st.Ready() {
			check.Status = StatusDown
			check.Code = st.Code
			if len(st.Errors) > 0 {
				check.Message = st.Errors[len(st.Errors)-1]
			} else {
				check.Message = "not initialized"
			}
		}
		resp.Checks[name] = check
	}

	code := http.StatusOK
	if !s.src.IsFullyInitialized() {
		resp.Status = StatusDown
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (s *Server) report(c *gin.Context) {
	r := s.src.LastReport()
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no bootstrap run has completed"})
		return
	}
	body, err := json.Marshal(r)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) serveMetrics(c *gin.Context) {
	c.Header("Content-Type", metrics.ContentType)
	c.Status(http.StatusOK)
	if _, err := s.registry.WriteTo(c.Writer); err != nil {
		logger.Warnw("Writing metrics failed", "error", err)
	}
}

func (s *Server) probe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.ProbeTimeout)
	defer cancel()

	results := s.src.ProbeAll(ctx)
	resp := ProbeResponse{Status: StatusUp, Results: results}
	code := http.StatusOK

	var down []string
	for name, r := range results {
		if !r.OK {
			down = append(down, name)
		}
	}
	if len(down) > 0 {
		sort.Strings(down)
		resp.Status = StatusDown
		code = http.StatusServiceUnavailable
		logger.Warnw("probe found unhealthy subsystems", "subsystems", down)
	}
	c.JSON(code, resp)
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugw("readiness request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
