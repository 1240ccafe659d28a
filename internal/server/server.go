// Package server provides the backdrop Gin-based HTTP planes.
// Routes are split into two engines:
//   - Control plane (port 6677): JWT-protected; serves the panel UI and the write API.
//   - Viewer plane  (port 1616): public and read-only; serves displays and the live stream.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/klauspost/compress/gzhttp"

	"github.com/vesaa/backdrop/internal/hub"
	"github.com/vesaa/backdrop/internal/models"
)

// ConfigStore is the part of the store bridge the planes need.
type ConfigStore interface {
	ReadConfig(ctx context.Context) (*models.BackgroundConfig, error)
	WriteConfig(ctx context.Context, cfg models.BackgroundConfig) error
}

// Options configures a Server.
type Options struct {
	Logger    log.Logger
	Store     ConfigStore
	Hub       *hub.Hub
	JWTSecret string
	AdminUser string
	AdminPass string
	// BcryptCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
	BcryptCost int
	// ViewerURL is encoded into /api/viewer/qr.png.
	ViewerURL string
	// StoreDriver is reported by /api/health.
	StoreDriver string
	// KeepAlive is the SSE comment interval; 0 means 15s.
	KeepAlive time.Duration
}

// Server holds the dependencies shared by both planes.
type Server struct {
	logger      log.Logger
	store       ConfigStore
	hub         *hub.Hub
	auth        *Authenticator
	viewerURL   string
	storeDriver string
	keepAlive   time.Duration
	started     time.Time

	// writeMu keeps store writes and hub publishes in the same order.
	writeMu sync.Mutex
}

// New validates o and builds a Server.
func New(o Options) (*Server, error) {
	if o.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if o.Hub == nil {
		return nil, errors.New("server: hub is required")
	}
	logger := o.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	auth, err := NewAuthenticator(o.JWTSecret, o.AdminUser, o.AdminPass, o.BcryptCost)
	if err != nil {
		return nil, err
	}
	keepAlive := o.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &Server{
		logger:      log.With(logger, "component", "server"),
		store:       o.Store,
		hub:         o.Hub,
		auth:        auth,
		viewerURL:   o.ViewerURL,
		storeDriver: o.StoreDriver,
		keepAlive:   keepAlive,
		started:     time.Now(),
	}, nil
}

// ControlHandler builds the control-plane engine, gzip-compressed.
func (s *Server) ControlHandler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger("control"), corsMiddleware("GET, POST, PUT, OPTIONS"))
	s.RegisterControlRoutes(r)
	RegisterStaticFiles(r, PanelPage)
	return gzhttp.GzipHandler(r)
}

// ViewerHandler builds the viewer-plane engine. It is not compressed so
// the event stream reaches displays unbuffered.
func (s *Server) ViewerHandler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger("viewer"), corsMiddleware("GET, OPTIONS"))
	s.RegisterViewerRoutes(r)
	RegisterStaticFiles(r, ViewerPage)
	return r
}

func corsMiddleware(methods string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", methods)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestLogger logs each request at debug, and server errors at warn.
func (s *Server) requestLogger(plane string) gin.HandlerFunc {
	l := log.With(s.logger, "plane", plane)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		lvl := level.Debug
		if status >= http.StatusInternalServerError {
			lvl = level.Warn
		}
		lvl(l).Log("method", c.Request.Method, "path", c.Request.URL.Path,
			"status", status, "duration", time.Since(start))
	}
}
