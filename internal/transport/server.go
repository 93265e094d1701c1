package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codetutor/codetutor/internal/chat"
	"github.com/codetutor/codetutor/internal/store"
)

// Config holds HTTP server settings.
type Config struct {
	Addr string

	// ShutdownTimeout caps graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP front of the tutor.
type Server struct {
	router   *gin.Engine
	svc      *chat.Service
	sessions *store.SessionRepo
	auth     Authenticator
	cfg      Config
	logger   *slog.Logger

	httpSrv *http.Server
}

// NewServer builds the router and handlers.
func NewServer(svc *chat.Service, st *store.Store, auth Authenticator, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		svc:      svc,
		sessions: st.Sessions(),
		auth:     auth,
		cfg:      cfg,
		logger:   logger.With("component", "transport"),
	}

	s.router.Use(gin.Recovery(), s.requestLog())

	s.router.GET("/healthz", s.handleHealth)

	authed := s.router.Group("/", s.requireUser())
	authed.GET("/ws/chat", s.handleChatWS)
	authed.GET("/api/sessions", s.handleListSessions)
	authed.GET("/api/sessions/:id/messages", s.handleSessionMessages)
	authed.DELETE("/api/sessions/:id", s.handleDeleteSession)
	authed.GET("/api/usage", s.handleUsage)

	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{Addr: s.cfg.Addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

const userKey = "transport.user"

// requireUser authenticates the request and stashes the user in the
// gin context.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.auth.Authenticate(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *User {
	u, _ := c.Get(userKey)
	return u.(*User)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleListSessions(c *gin.Context) {
	u := currentUser(c)
	sessions, err := s.sessions.List(c.Request.Context(), u.ID, 50)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "list sessions failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list sessions"})
		return
	}

	type item struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	out := make([]item, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, item{ID: sess.ID, Title: sess.Title, UpdatedAt: sess.UpdatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) handleSessionMessages(c *gin.Context) {
	u := currentUser(c)
	id := c.Param("id")

	if _, err := s.sessions.Get(c.Request.Context(), id, u.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	msgs, err := s.sessions.Messages(c.Request.Context(), id)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "load messages failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}

	type item struct {
		Role       string    `json:"role"`
		Content    string    `json:"content"`
		HintLevel  int       `json:"hint_level,omitempty"`
		ErrorKind  string    `json:"error_kind,omitempty"`
		Incomplete bool      `json:"incomplete,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}
	out := make([]item, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, item{
			Role:       string(m.Role),
			Content:    m.Content,
			HintLevel:  m.HintLevel,
			ErrorKind:  m.ErrorKind,
			Incomplete: m.Incomplete,
			CreatedAt:  m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (s *Server) handleUsage(c *gin.Context) {
	u := currentUser(c)
	sum, err := s.svc.Usage(c.Request.Context(), u.ID)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "usage lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load usage"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	u := currentUser(c)
	if err := s.sessions.Delete(c.Request.Context(), c.Param("id"), u.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
