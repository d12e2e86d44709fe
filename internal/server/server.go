// Package server is the browser shell: a gin JSON API over sessions and
// turns plus the embedded single-page UI.
package server

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/valpere/voxpair/internal/audio"
	"github.com/valpere/voxpair/internal/language"
	"github.com/valpere/voxpair/internal/pipeline"
	"github.com/valpere/voxpair/internal/session"
)

//go:embed web/index.html
var indexHTML []byte

// maxUploadBytes caps a recorded clip upload.
const maxUploadBytes = 10 << 20

// Runner executes one turn. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, s *session.Session, clip audio.Clip) (*pipeline.Outcome, error)
}

type Dependencies struct {
	Registry *language.Registry
	Sessions *session.Manager
	Pipeline Runner
	Logger   *logrus.Logger
}

type Server struct {
	deps   Dependencies
	engine *gin.Engine
}

// New builds the router. Set gin's mode before calling it.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	s := &Server{deps: deps, engine: r}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/", func(c *gin.Context) { c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML) })
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/pairs", s.listPairs)

	sessions := api.Group("/sessions")
	sessions.GET("", s.listSessions)
	sessions.POST("", s.createSession)
	sessions.GET("/:id", s.getSession)
	sessions.PATCH("/:id", s.updateSession)
	sessions.DELETE("/:id", s.closeSession)
	sessions.POST("/:id/turns", s.runTurn)
	sessions.GET("/:id/turns/:turn/audio", s.turnAudio)
	sessions.GET("/:id/history", s.getHistory)
	sessions.DELETE("/:id/history", s.clearHistory)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.WithField("addr", addr).Info("Starting HTTP server")
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

	s.deps.Logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
		} else {
			entry.Debug("HTTP request")
		}
	}
}
