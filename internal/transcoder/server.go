package transcoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"preface-cli/internal/config"
	"preface-cli/internal/logger"
	"preface-cli/internal/stream"
)

const (
	requestIDHeader = "X-Request-ID"
	shutdownTimeout = 5 * time.Second
)

// Server exposes the transcoder and the collaborator passthrough over HTTP.
type Server struct {
	cfg        *config.ServerConfig
	transcoder *Transcoder
	collab     *Collaborator
	engine     *gin.Engine
}

func NewServer(cfg *config.ServerConfig, upstream Upstream, collab *Collaborator) *Server {
	s := &Server{
		cfg:        cfg,
		transcoder: New(upstream),
		collab:     collab,
	}
	s.engine = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(gin.LoggerWithWriter(logger.Writer()))
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(cors.New(corsConfig(s.cfg.CORS)))

	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"message": "Method not allowed"})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/stream", s.handleStream)
		api.GET("/favorites", s.handleGetFavorites)
		api.POST("/favorites", s.handlePostFavorite)
		api.POST("/history", s.handleHistory)
	}
	return router
}

func corsConfig(c config.CORSConfig) cors.Config {
	cfg := cors.Config{
		AllowMethods:     c.AllowedMethods,
		AllowHeaders:     c.AllowedHeaders,
		ExposeHeaders:    c.ExposedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           time.Duration(c.MaxAge) * time.Second,
	}
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = c.AllowedOrigins
	return cfg
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is done, then drains in-flight requests
// for up to five seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:           s.cfg.Addr(),
		Handler:        s.engine,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("server listening on %s (upstream: %s)", srv.Addr, s.cfg.Upstream.Provider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// --- Stream ---

type streamRequest struct {
	OpenID  string `json:"openid" form:"openid"`
	Content string `json:"content" form:"content"`
}

// responseSink delays the 200 and streaming headers until the first byte so
// that a failure before then can still be answered with a JSON error.
type responseSink struct {
	w         gin.ResponseWriter
	committed bool
}

func (s *responseSink) Write(p []byte) (int, error) {
	if !s.committed {
		h := s.w.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.committed = true
	}
	return s.w.Write(p)
}

func (s *responseSink) Flush() {
	s.w.Flush()
}

func (s *Server) handleStream(c *gin.Context) {
	var req streamRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "msg": "invalid request body"})
		return
	}
	if req.OpenID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "msg": "missing openid parameter"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "msg": "content is required"})
		return
	}

	sink := &responseSink{w: c.Writer}
	state, err := s.transcoder.Forward(c.Request.Context(), Request{
		ID:      c.GetString("request_id"),
		OpenID:  req.OpenID,
		Content: req.Content,
	}, sink)
	if state == stream.ErroredBeforeSend {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Error proxying request to external API",
			"error":   err.Error(),
		})
	}
}

// --- Collaborators ---

func collabError(c *gin.Context, msg string, err error) {
	logger.L().WithField("request_id", c.GetString("request_id")).WithError(err).Warn(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"code": 1, "msg": msg, "error": err.Error()})
}

func (s *Server) handleGetFavorites(c *gin.Context) {
	openid := c.Query("openid")
	if openid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "msg": "missing openid parameter"})
		return
	}
	data, err := s.collab.Favorites(c.Request.Context(), openid, c.Query("page"))
	if err != nil {
		collabError(c, "failed to fetch favorites", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

type favoriteRequest struct {
	OpenID   string          `json:"openid"`
	PromptID json.RawMessage `json:"promptId"`
	Action   string          `json:"action"`
}

func emptyJSON(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	return v == "" || v == "null" || v == `""` || v == "0"
}

func (s *Server) handlePostFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OpenID == "" || emptyJSON(req.PromptID) || req.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "msg": "missing required parameters"})
		return
	}
	if req.Action != "add" && req.Action != "remove" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "msg": "action must be add or remove"})
		return
	}
	data, err := s.collab.SetFavorite(c.Request.Context(), req.OpenID, req.PromptID, req.Action)
	if err != nil {
		collabError(c, "failed to update favorite", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

type historyRequest struct {
	OpenID string      `json:"openid"`
	Page   json.Number `json:"page"`
}

func (s *Server) handleHistory(c *gin.Context) {
	var req historyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OpenID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "msg": "missing openid parameter"})
		return
	}
	data, err := s.collab.History(c.Request.Context(), req.OpenID, req.Page.String())
	if err != nil {
		collabError(c, "failed to fetch history", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
