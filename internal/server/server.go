package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/abhisek/predinator/internal/engine"
	"github.com/abhisek/predinator/internal/learning"
	"github.com/abhisek/predinator/internal/service"
)

// Sessions persists game state between requests. *store.SessionRepo
// implements it.
type Sessions interface {
	Save(ctx context.Context, id string, st engine.GameState) error
	Get(ctx context.Context, id string) (engine.GameState, error)
	SavePrepared(ctx context.Context, id string, p learning.PreparedLearn) error
	Prepared(ctx context.Context, id string) (*learning.PreparedLearn, error)
	Delete(ctx context.Context, id string) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options configures a Server.
type Options struct {
	Addr       string
	SessionTTL time.Duration // 0 keeps sessions forever
	Logger     zerolog.Logger
}

// Server is the JSON API over a Service.
type Server struct {
	svc      *service.Service
	sessions Sessions
	opts     Options
	log      zerolog.Logger
	router   *gin.Engine
}

// New builds a Server and its routes.
func New(svc *service.Service, sessions Sessions, opts Options) *Server {
	s := &Server{
		svc:      svc,
		sessions: sessions,
		opts:     opts,
		log:      opts.Logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.GET("/questions", s.listQuestions)

	games := v1.Group("/games")
	games.POST("", s.createGame)
	games.GET("/:id", s.getGame)
	games.POST("/:id/answers", s.answer)
	games.POST("/:id/guess", s.guess)
	games.POST("/:id/learn", s.learn)
	games.POST("/:id/questions", s.addQuestion)
	games.DELETE("/:id", s.deleteGame)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.opts.SessionTTL > 0 {
		go s.janitor(ctx, s.opts.SessionTTL)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// janitor prunes sessions idle for longer than ttl.
func (s *Server) janitor(ctx context.Context, ttl time.Duration) {
	every := min(ttl/2, time.Hour)
	if every <= 0 {
		every = ttl
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.sessions.PruneOlderThan(ctx, now.Add(-ttl))
			if err != nil {
				s.log.Warn().Err(err).Msg("prune sessions")
				continue
			}
			if n > 0 {
				s.log.Info().Int64("pruned", n).Msg("expired game sessions removed")
			}
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		ev := s.log.Debug()
		if status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
