// Package server exposes the document store over HTTP for local
// development: JSON mutations plus a server-sent-events watch stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/james702283/ai-kitchen-health-suite/internal/auth"
	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/namespace"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store/memstore"
)

// Options configures a Server.
type Options struct {
	Store  *memstore.Store
	Auth   *auth.Service
	Tenant string
}

// Server routes HTTP requests onto the store and the auth service.
type Server struct {
	store  *memstore.Store
	auth   *auth.Service
	tenant string
	log    *slog.Logger
	router *gin.Engine
}

// New builds the router. Call Handler or Run to serve it.
func New(opts Options) *Server {
	s := &Server{
		store:  opts.Store,
		auth:   opts.Auth,
		tenant: opts.Tenant,
		log:    logger.Get(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin)

	docs := v1.Group("")
	docs.Use(s.authMiddleware())
	docs.POST("/documents", s.handleCreate)
	docs.DELETE("/documents", s.handleDelete)
	docs.GET("/watch", s.handleWatch)

	s.router = router
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: /v1/watch holds its response open.
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.New(apperrors.KindInvalidInput, "invalid request body", err))
		return
	}

	user, err := s.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.New(apperrors.KindInvalidInput, "invalid request body", err))
		return
	}

	token, user, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

const claimsKey = "authClaims"

// authMiddleware verifies the bearer token. EventSource cannot set headers,
// so /v1/watch also accepts the token as a query parameter.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			writeError(c, apperrors.PermissionDenied("missing bearer token"))
			c.Abort()
			return
		}

		claims, err := s.auth.Verify(tokenString)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// authorizePath checks that the path addresses the caller's own namespace.
func (s *Server) authorizePath(c *gin.Context, path string) error {
	tenant, principal, _, err := namespace.Split(path)
	if err != nil {
		return err
	}
	claims := c.MustGet(claimsKey).(auth.Claims)
	if tenant != s.tenant || claims.Tenant != s.tenant {
		return apperrors.PermissionDenied("path addresses a foreign tenant")
	}
	if principal != claims.Subject {
		return apperrors.PermissionDenied("path addresses another user's data")
	}
	return nil
}

func (s *Server) handleCreate(c *gin.Context) {
	path := c.Query("path")
	if err := s.authorizePath(c, path); err != nil {
		writeError(c, err)
		return
	}

	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		writeError(c, apperrors.New(apperrors.KindInvalidInput, "invalid request body", err))
		return
	}

	id, err := s.store.Create(c.Request.Context(), path, fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) handleDelete(c *gin.Context) {
	path := c.Query("path")
	if err := s.authorizePath(c, path); err != nil {
		writeError(c, err)
		return
	}

	if err := s.store.Delete(c.Request.Context(), path, c.Query("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// handleWatch streams full snapshots of a path as server-sent events.
// Events: "connected" once, then "snapshot" per change and "error" per
// stream fault. The connection stays open until the client goes away.
func (s *Server) handleWatch(c *gin.Context) {
	path := c.Query("path")
	if err := s.authorizePath(c, path); err != nil {
		writeError(c, err)
		return
	}
	filter, err := parseFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}

	sub, err := s.store.Subscribe(c.Request.Context(), path, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeError(c, apperrors.Unavailable("streaming unsupported", nil))
		return
	}

	writeEvent(c, flusher, "connected", gin.H{"path": path})

	snaps, errs := sub.Snapshots(), sub.Errors()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				writeEvent(c, flusher, "close", gin.H{})
				return
			}
			writeEvent(c, flusher, "snapshot", snap)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			writeEvent(c, flusher, "error", gin.H{
				"kind":    apperrors.KindOf(err).String(),
				"message": err.Error(),
			})
		}
	}
}

func writeEvent(c *gin.Context, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.Writer.WriteString("event: " + event + "\n")
	c.Writer.WriteString("data: " + string(data) + "\n\n")
	flusher.Flush()
}

// parseFilter reads an optional equality filter from the query string. The
// value arrives as text; JSON-decoding it lets numeric filters keep their
// type.
func parseFilter(c *gin.Context) (store.Filter, error) {
	field := c.Query("filter_field")
	raw := c.Query("filter_value")
	if field == "" && raw == "" {
		return store.Filter{}, nil
	}
	if field == "" {
		return store.Filter{}, apperrors.InvalidInput("filter_value without filter_field")
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	return store.Filter{Field: field, Value: value}, nil
}

func writeError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	c.JSON(statusFor(kind), gin.H{
		"error": gin.H{"kind": kind.String(), "message": err.Error()},
	})
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindInvalidInput:
		return http.StatusBadRequest
	case apperrors.KindPermissionDenied:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindBusy:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}
