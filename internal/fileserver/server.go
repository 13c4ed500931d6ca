// Package fileserver implements the static file server the session spawns:
// a gin engine serving a set of root paths beneath a common base directory,
// with an in-memory content cache and operational endpoints.
package fileserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/webvisor/webvisor/internal/metrics"
	"github.com/webvisor/webvisor/internal/pathutil"
	"github.com/webvisor/webvisor/pkg/logger"
)

// Config holds file server configuration
type Config struct {
	Host         string
	Port         int // 0 binds an ephemeral port
	Roots        []string
	CacheBytes   int64
	DisableCORS  bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the configured roots over HTTP until shut down.
type Server struct {
	cfg     Config
	log     *logger.Logger
	reg     *metrics.Registry
	cache   *Cache
	engine  *gin.Engine
	server  *http.Server
	baseDir string
	roots   []string
	started time.Time

	mu       sync.Mutex
	listener net.Listener
	running  bool
}

// New creates a server for the given roots. Roots are canonicalized and the
// base directory is derived from them with the same rules the session uses,
// so both sides agree on relative URLs.
func New(cfg Config, log *logger.Logger) (*Server, error) {
	roots, err := pathutil.Canonicalize(cfg.Roots)
	if err != nil {
		return nil, err
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	reg := metrics.NewRegistry()
	cache, err := NewCache(cfg.CacheBytes, reg, log)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		cache:   cache,
		baseDir: pathutil.CommonBaseDir(roots),
		roots:   roots,
		started: time.Now(),
	}
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())

	if !s.cfg.DisableCORS {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "HEAD", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Range"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	engine.GET("/metrics", gin.WrapH(s.reg.Handler(s.log)))
	engine.GET("/statusz", s.statusHandler)

	// Everything else is file space.
	engine.NoRoute(s.serveHandler)

	s.engine = engine
}

// requestLogger logs each request and feeds the request counters.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		s.reg.RequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(status)).Inc()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// BaseDir returns the directory URLs are resolved beneath.
func (s *Server) BaseDir() string { return s.baseDir }

// Start binds the listener and begins serving in the background. It returns
// the port actually bound, which differs from the configured one when that
// was zero.
func (s *Server) Start() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.port(), nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.running = true

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("file server stopped", zap.Error(err))
		}
	}()

	s.log.Info("file server started",
		zap.Int("port", s.port()),
		zap.String("base_dir", s.baseDir),
		zap.Strings("roots", s.roots))

	return s.port(), nil
}

func (s *Server) port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Port returns the bound port, or zero before Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port()
}

// Shutdown stops serving and releases the cache watcher. Used by direct
// library consumers and tests; the session never calls it, it kills the
// whole process instead.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	err := s.server.Shutdown(ctx)
	if cerr := s.cache.Close(); err == nil {
		err = cerr
	}
	return err
}
