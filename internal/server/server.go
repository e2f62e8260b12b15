// Package server exposes an authoritative store over HTTP.
//
// A single endpoint is dispatched by its action query parameter:
//
//	POST /api?action=sync     apply a full payload (action=import is an alias)
//	GET  /api?action=export   return the whole store as a payload
//
// Every response is a JSON envelope {"success", "data", "message"}. Requests are
// logged one entry each and tagged with an X-Request-ID.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/upsert"
)

// Store is the authoritative store the server fronts.
type Store interface {
	Apply(ctx context.Context, p *schema.Payload) (upsert.Summary, error)
	Export(ctx context.Context) (*schema.Payload, error)
}

// Config holds server configuration
type Config struct {
	// Addr to listen on (default: :8080)
	Addr string

	// Path of the sync endpoint (default: /api)
	Path string

	// CORSOrigins lists allowed origins; "*" or empty allows any
	CORSOrigins []string

	// MaxBodyBytes caps a sync body (default: 32 MiB)
	MaxBodyBytes int64

	// Logger for request logs (default: logrus standard logger)
	Logger logrus.FieldLogger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		Path:         "/api",
		CORSOrigins:  []string{"*"},
		MaxBodyBytes: 32 << 20,
	}
}

// Server serves the sync endpoint.
type Server struct {
	store    Store
	cfg      Config
	log      logrus.FieldLogger
	engine   *gin.Engine
	listener net.Listener
	server   *http.Server
	errCh    chan error
}

// New builds a server over store. Zero fields of cfg take their defaults.
func New(store Store, cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	s := &Server{
		store: store,
		cfg:   cfg,
		log:   cfg.Logger.WithField("component", "server"),
		errCh: make(chan error, 1),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID())
	r.Use(requestLogger(s.log))
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(s.cfg.CORSOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.OPTIONS(s.cfg.Path, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET(s.cfg.Path, s.handleAction)
	r.POST(s.cfg.Path, s.handleAction)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, fail("Invalid action"))
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type"}
	cfg.ExposeHeaders = []string{"X-Request-ID"}

	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowed = nil
			break
		}
		if o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowed
	}
	return cfg
}

// Handler returns the HTTP handler, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("sync server listening")
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("sync server failed")
			s.errCh <- err
		}
		close(s.errCh)
	}()
	return nil
}

// Err reports a fatal serve error once the server stops on its own.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("sync server stopped")
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}
