// Package server exposes crawl submission, status and history over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/request"
	"github.com/loykin/crawlsend/internal/store"
	"github.com/loykin/crawlsend/internal/supervisor"
)

// Config is the server section of the config file.
type Config struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Metrics   bool   `mapstructure:"metrics" yaml:"metrics"`
}

// Sender submits a request as a crawl.
type Sender interface {
	Send(req *request.Request) (*supervisor.Run, error)
}

// StatusSource reports the supervisor slot.
type StatusSource interface {
	State() supervisor.State
	Current() (supervisor.RunResult, bool)
}

// History reads recorded runs.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
	GetRun(ctx context.Context, id string) (store.RunRecord, error)
}

// Deps are the collaborators of the API. History and Metrics may be nil.
type Deps struct {
	Sender  Sender
	Status  StatusSource
	History History
	Metrics *Metrics
}

// Server is the control API.
type Server struct {
	cfg    Config
	deps   Deps
	engine *gin.Engine
	logger *common.Logger
}

// New builds the gin engine and its routes.
func New(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = constants.DefaultServerAddr
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		engine: gin.New(),
		logger: common.GetLogger().WithComponent("server"),
	}
	s.engine.Use(gin.Recovery(), s.accessLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	if s.cfg.Metrics && s.deps.Metrics != nil {
		s.deps.Metrics.bindState(s.deps.Status)
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.engine.Group("/api/v1")
	if s.cfg.JWTSecret != "" {
		api.Use(JWTMiddleware(VerifyConfig{Secret: []byte(s.cfg.JWTSecret), ClockSkew: 2 * time.Second}))
	}
	api.POST("/runs", s.submitRun)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	api.GET("/status", s.status)
}

// Handler returns the http.Handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr is the listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control api listening", "addr", s.cfg.Addr, "auth", s.cfg.JWTSecret != "")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultCloseWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithRequest(c.Request.Method, c.Request.URL.Path).Debug("request",
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}
