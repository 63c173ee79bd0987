// Package server exposes the cutout provider and one-shot composition over
// HTTP: GET /health, POST /cutout and POST /compose.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"pfp-sticker/internal/config"
	"pfp-sticker/internal/cutout"
	"pfp-sticker/internal/logging"
)

// Server is the HTTP front end.
type Server struct {
	cfg      config.Config
	provider cutout.Provider
	log      *slog.Logger
	engine   *gin.Engine
}

// warmer is implemented by providers with a start-up cost.
type warmer interface {
	Warm(ctx context.Context)
}

// New builds the router. cfg must already be resolved.
func New(cfg config.Config, provider cutout.Provider, logger *slog.Logger) (*Server, error) {
	if provider == nil {
		return nil, errors.New("server: nil cutout provider")
	}
	s := &Server{
		cfg:      cfg,
		provider: provider,
		log:      logging.OrNop(logger),
	}

	policy, err := corsConfig(cfg)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(gin.Recovery(), s.requestLogger(), cors.New(policy), s.limitBody())

	r.GET("/health", s.health)
	r.POST("/cutout", s.cutout)
	r.POST("/compose", s.compose)

	s.engine = r
	return s, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Warm runs the provider's warm-up, if it has one. Failures are not fatal.
func (s *Server) Warm(ctx context.Context) {
	if w, ok := s.provider.(warmer); ok {
		w.Warm(ctx)
	}
}

// Run serves on cfg.ListenAddr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.ListenAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.log.Info("stopped")
	return nil
}

func corsConfig(cfg config.Config) (cors.Config, error) {
	policy := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.AllowedOriginPattern != "" {
		re, err := regexp.Compile(cfg.AllowedOriginPattern)
		if err != nil {
			return cors.Config{}, fmt.Errorf("server: compile origin pattern: %w", err)
		}
		policy.AllowOriginFunc = re.MatchString
	}
	if err := policy.Validate(); err != nil {
		return cors.Config{}, fmt.Errorf("server: cors: %w", err)
	}
	return policy, nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

// limitBody caps request bodies at cfg.MaxUploadBytes.
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.MaxUploadBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
		}
		c.Next()
	}
}

// requestContext bounds provider work by the configured timeout.
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeoutSec <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), time.Duration(s.cfg.RequestTimeoutSec)*time.Second)
}
