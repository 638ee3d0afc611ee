// Package server - HTML-оболочка форума: страницы, формы, websocket /live и /metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ButyrinIA/forum/internal/account"
	"github.com/ButyrinIA/forum/internal/cache"
	"github.com/ButyrinIA/forum/internal/config"
	"github.com/ButyrinIA/forum/internal/gateway"
	"github.com/ButyrinIA/forum/internal/live"
	"github.com/ButyrinIA/forum/internal/logging"
	"github.com/ButyrinIA/forum/internal/metrics"
	"github.com/ButyrinIA/forum/internal/mutation"
	"github.com/ButyrinIA/forum/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg     *config.Config
	logger  logrus.FieldLogger
	metrics *metrics.Metrics

	cache    *cache.Cache
	mutator  *mutation.Coordinator
	accounts *account.Service
	sessions *session.Store
	themes   *session.ThemeStore
	issuer   *session.Issuer
	hub      *live.Hub

	handler *gin.Engine
	now     func() time.Time
}

type Option func(*Server)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithStores подменяет хранилища сессий и тем
func WithStores(sessions *session.Store, themes *session.ThemeStore) Option {
	return func(s *Server) {
		s.sessions = sessions
		s.themes = themes
	}
}

// New собирает оболочку поверх шлюза: кэш, координатор мутаций, аккаунты и live-хаб
func New(cfg *config.Config, api gateway.API, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logrus.StandardLogger(),
		sessions: session.NewStore(),
		themes:   session.NewThemeStore(session.ModeLight),
		issuer:   session.NewIssuer(cfg.Session.Secret),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	s.cache = cache.New(cache.GatewayFetcher(api),
		cache.WithLogger(s.logger.WithField("component", "cache")),
		cache.WithMetrics(s.metrics))
	s.mutator = mutation.New(api, s.cache,
		mutation.WithLogger(s.logger.WithField("component", "mutation")),
		mutation.WithMetrics(s.metrics))
	s.accounts = account.NewService(api, s.logger.WithField("component", "account"))
	s.hub = live.NewHub(s.cache,
		live.WithLogger(s.logger.WithField("component", "live")),
		live.WithMetrics(s.metrics))

	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(s.logger))
	r.SetHTMLTemplate(templates)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/live", gin.WrapH(s.hub))

	pages := r.Group("/", s.identify)
	pages.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/feed") })
	pages.GET("/login", s.loginPage)
	pages.POST("/login", s.login)
	pages.GET("/register", s.registerPage)
	pages.POST("/register", s.register)
	pages.POST("/theme", s.toggleTheme)

	authed := pages.Group("/", s.requireSession)
	authed.GET("/feed", s.withCommentCounts, s.feed)
	authed.GET("/posts/:id", s.post)
	authed.POST("/posts/:id/like", s.likePost)
	authed.POST("/posts/:id/comments", s.addComment)
	authed.POST("/posts/:id/comments/:cid/like", s.likeComment)
	authed.POST("/posts/:id/comments/:cid/replies", s.reply)
	authed.GET("/new-post", s.newPostPage)
	authed.POST("/new-post", s.createPost)

	return r
}

// Run слушает порт из конфигурации до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close останавливает live-соединения и незавершенные запросы кэша
func (s *Server) Close() {
	s.hub.Close()
	s.cache.Close()
}
