package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	contractx "github.com/ricmunrom/botAtencionClientes/agent/contract"
	"github.com/ricmunrom/botAtencionClientes/agent/tool"
)

type Config struct {
	Port            int           `split_words:"true" default:"8080"`
	RateLimit       float64       `split_words:"true" default:"20"`
	RateBurst       int           `split_words:"true" default:"40"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

// StartOpts holds what the HTTP surface needs.
type StartOpts struct {
	Config   Config
	Business contractx.Business
	// SweepMaxAge is used by POST /v1/sweep when the body names no max_age.
	SweepMaxAge time.Duration
}

// NewRouter builds the gin engine without starting a listener.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Business == nil {
		return nil, fmt.Errorf("api: business is required")
	}
	if opts.SweepMaxAge <= 0 {
		opts.SweepMaxAge = 24 * time.Hour
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog())
	if opts.Config.RateLimit > 0 {
		router.Use(rateLimit(opts.Config.RateLimit, opts.Config.RateBurst))
	}

	h := &handlers{
		biz:         opts.Business,
		exec:        tool.NewExecutor(opts.Business),
		sweepMaxAge: opts.SweepMaxAge,
	}
	registerRoutes(router, h)
	return router, nil
}

// Start serves the API until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Config.Port <= 0 {
		opts.Config.Port = 8080
	}
	if opts.Config.ShutdownTimeout <= 0 {
		opts.Config.ShutdownTimeout = 10 * time.Second
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Config.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.Config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("api shutdown")
		}
	}()

	log.Info().Int("port", opts.Config.Port).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
