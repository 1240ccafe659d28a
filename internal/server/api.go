package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"

	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/preview"
	"github.com/vesaa/backdrop/internal/render"
	"github.com/vesaa/backdrop/internal/store/common"
)

// PreviewSelector is the CSS selector used for rendered preview rules.
const PreviewSelector = ".backdrop"

// Default PNG preview size when w/h are omitted.
const (
	defaultPreviewWidth  = 640
	defaultPreviewHeight = 360
)

// Largest PNG the public viewer plane renders; bigger requests are clamped.
const (
	MaxPreviewWidth  = 1920
	MaxPreviewHeight = 1080
)

// ConfigResponse is the body of GET /api/config on both planes.
type ConfigResponse struct {
	Data   models.BackgroundConfig `json:"data"`
	Exists bool                    `json:"exists"`
	Error  string                  `json:"error,omitempty"`
}

// PreviewResponse carries a derived style and its stylesheet.
type PreviewResponse struct {
	Style preview.Style `json:"style"`
	CSS   string        `json:"css"`
}

// RegisterControlRoutes wires up the control-plane API on the given engine.
// Call this on the engine bound to port 6677.
//
//	Public:   POST /api/login, GET /api/health
//	Protected (JWT): every other /api/* route
func (s *Server) RegisterControlRoutes(r *gin.Engine) {
	api := r.Group("/api")

	// ── Public endpoints ──────────────────────────────────────────────────────
	api.POST("/login", s.handleLogin)
	api.GET("/health", s.handleHealth)

	// ── JWT-protected endpoints ───────────────────────────────────────────────
	auth := api.Group("/", s.auth.Middleware())
	{
		auth.GET("/config", s.handleGetConfig)
		auth.PUT("/config", s.handlePutConfig)
		auth.POST("/preview", s.handlePreviewDraft)
		auth.GET("/viewer/qr.png", s.handleViewerQR)
	}
}

// RegisterViewerRoutes wires up the viewer-plane API on the given engine.
// Call this on the engine bound to port 1616. Nothing here writes.
func (s *Server) RegisterViewerRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/config", s.handleGetConfig)
		api.GET("/preview", s.handleCurrentPreview)
		api.GET("/preview.png", s.handlePreviewPNG)
		api.GET("/stream", s.handleStream)
	}

	// Viewer-plane health (no auth, used by load-balancers / k8s probes)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": s.hub.Subscribers()})
	})
}

// ── Handlers ──────────────────────────────────────────────────────────────────

// handleLogin accepts username + password and returns a signed JWT.
//
//	POST /api/login
//	Body: { "username": "admin", "password": "admin" }
func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	if err := s.auth.Check(body.Username, body.Password); err != nil {
		level.Info(s.logger).Log("msg", "login rejected", "user", body.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	token, err := s.auth.GenerateJWT(body.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(TokenTTL.Seconds()),
		"type":       "Bearer",
	})
}

// readConfig returns the stored record, or the defaults with exists=false.
// err is non-nil only for failures other than an absent record.
func (s *Server) readConfig(ctx context.Context) (cfg models.BackgroundConfig, exists bool, err error) {
	stored, err := s.store.ReadConfig(ctx)
	switch {
	case err == nil:
		return stored.Normalize(), true, nil
	case errors.Is(err, common.ErrNotFound):
		return models.Default(), false, nil
	default:
		return models.Default(), false, err
	}
}

// current reads the store and republishes to the hub when the record
// changed behind this server. A failed read falls back to the latest event,
// then to the defaults.
func (s *Server) current(ctx context.Context) models.BackgroundConfig {
	ev, err := s.hub.Refresh(ctx, s.store)
	if err == nil {
		return ev.Config.Normalize()
	}
	level.Warn(s.logger).Log("msg", "read failed, using last known record", "err", err)
	if ev, ok := s.hub.Latest(); ok {
		return ev.Config.Normalize()
	}
	return models.Default()
}

// handleGetConfig returns the stored record. A failed read still answers
// 200 with the defaults so the panel and displays can render something.
//
//	GET /api/config
func (s *Server) handleGetConfig(c *gin.Context) {
	cfg, exists, err := s.readConfig(c.Request.Context())
	resp := ConfigResponse{Data: cfg, Exists: exists}
	if err != nil {
		level.Warn(s.logger).Log("msg", "read failed, serving defaults", "err", err)
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// handlePutConfig overwrites the record and notifies viewers.
//
//	PUT /api/config
//	Body: BackgroundConfig
func (s *Server) handlePutConfig(c *gin.Context) {
	var cfg models.BackgroundConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.writeMu.Lock()
	if err := s.store.WriteConfig(c.Request.Context(), cfg); err != nil {
		s.writeMu.Unlock()
		level.Error(s.logger).Log("msg", "write failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ev := s.hub.Publish(cfg)
	s.writeMu.Unlock()

	level.Info(s.logger).Log("msg", "config updated", "user", c.GetString("username"),
		"bgType", cfg.BgType, "event", ev.ID)
	c.JSON(http.StatusOK, gin.H{"data": cfg, "id": ev.ID})
}

// handlePreviewDraft derives the presentation of an unsaved draft.
//
//	POST /api/preview
func (s *Server) handlePreviewDraft(c *gin.Context) {
	var cfg models.BackgroundConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := cfg.Normalize().Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	style := preview.Derive(cfg)
	c.JSON(http.StatusOK, PreviewResponse{Style: style, CSS: style.CSS(PreviewSelector)})
}

// handleCurrentPreview derives the presentation of the current record.
//
//	GET /api/preview
func (s *Server) handleCurrentPreview(c *gin.Context) {
	style := preview.Derive(s.current(c.Request.Context()))
	c.JSON(http.StatusOK, PreviewResponse{Style: style, CSS: style.CSS(PreviewSelector)})
}

// handlePreviewPNG rasterizes the current record, at most
// MaxPreviewWidth x MaxPreviewHeight.
//
//	GET /api/preview.png?w=640&h=360
func (s *Server) handlePreviewPNG(c *gin.Context) {
	w, err := dimension(c.Query("w"), defaultPreviewWidth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "w: " + err.Error()})
		return
	}
	h, err := dimension(c.Query("h"), defaultPreviewHeight)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "h: " + err.Error()})
		return
	}
	w, h = min(w, MaxPreviewWidth), min(h, MaxPreviewHeight)

	var buf bytes.Buffer
	if err := render.PNG(&buf, s.current(c.Request.Context()), w, h); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// handleViewerQR returns a QR code pointing a display at the viewer page.
//
//	GET /api/viewer/qr.png?size=256
func (s *Server) handleViewerQR(c *gin.Context) {
	if s.viewerURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "viewer url not configured"})
		return
	}
	size, err := dimension(c.Query("size"), 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size: " + err.Error()})
		return
	}
	png, err := render.QRCode(s.viewerURL, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func dimension(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
