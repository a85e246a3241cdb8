// Package app wires the bootstrap-signaling service's collaborators
// together in the initialization order spec'd: clock -> metrics ->
// rate limiter -> registries -> HTTP/WS endpoints -> pruner. Grounded
// on the teacher's cmd/ingest/main.go for the construct-then-assemble-
// router-then-serve-with-graceful-shutdown shape, generalized into a
// reusable type so cmd/server/main.go stays a thin entrypoint.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bootstrap-signaling/internal/auth"
	"bootstrap-signaling/internal/httpapi"
	"bootstrap-signaling/internal/metrics"
	"bootstrap-signaling/internal/pruner"
	"bootstrap-signaling/internal/ratelimit"
	"bootstrap-signaling/internal/rendezvous"
	"bootstrap-signaling/internal/roomhub"
	"bootstrap-signaling/internal/signaling"
	"bootstrap-signaling/pkg/clock"
	"bootstrap-signaling/pkg/config"
	"bootstrap-signaling/pkg/tracing"
)

// App owns every long-lived collaborator and the HTTP server that
// multiplexes the HTTP Surface and the Signaling Endpoint.
type App struct {
	cfg    *config.Config
	logger *zap.SugaredLogger

	clock       clock.Clock
	metrics     *metrics.Metrics
	limiter     *ratelimit.Limiter
	verifier    signaling.Verifier
	hub         *roomhub.Hub
	registry    *rendezvous.Registry
	endpoint    *signaling.Endpoint
	pruner      *pruner.Pruner
	redisClient *redis.Client
	tracer      *tracing.Provider

	httpServer *http.Server
}

// New constructs an App from configuration, following the spec's
// mandated initialization order.
func New(cfg *config.Config, logger *zap.SugaredLogger) *App {
	c := clock.New()
	m := metrics.New()

	tracer, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Warnw("tracing disabled: initialization failed", "error", err)
		tracer = &tracing.Provider{}
	}

	limiter := ratelimit.New(c, cfg.RateLimit.ConnectionsPerIP, cfg.RateLimit.MessagesPerMinute)

	var verifier signaling.Verifier = auth.NewVerifier(cfg.Auth.TokenSHA256)
	if cfg.Auth.JWTSigningKey != "" {
		verifier = auth.NewJWTVerifier(auth.NewVerifier(cfg.Auth.TokenSHA256), cfg.Auth.JWTSigningKey)
	}

	var mirror rendezvous.Mirror
	var redisMirror *rendezvous.RedisMirror
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnw("redis mirror unreachable, continuing without it", "error", err)
			redisClient = nil
		} else {
			redisMirror = rendezvous.NewRedisMirror(redisClient, logger)
			mirror = redisMirror
		}
	}

	registry := rendezvous.New(c, mirror)
	hub := roomhub.New()

	endpoint := signaling.New(limiter, verifier, hub, registry, m, c, logger, signaling.Config{
		HandshakeTimeout: cfg.Signaling.HandshakeTimeout,
		SendBufferSize:   cfg.Signaling.SendBufferSize,
		DrainTimeout:     cfg.Signaling.DrainTimeout,
		RendezvousTTLMs:  cfg.Rendezvous.DefaultTTL.Milliseconds(),
	})

	p := pruner.New(registry, c, cfg.Rendezvous.PruneInterval, logger)

	var readyCheck func() bool
	if redisMirror != nil {
		readyCheck = redisMirror.Healthy
	}

	router := httpapi.New(httpapi.Deps{
		Verifier:             verifier,
		Hub:                  hub,
		Registry:             registry,
		Clock:                c,
		Logger:               logger,
		PublicSignalingURL:   cfg.Bootstrap.PublicSignalingURL,
		ICEServerURLs:        cfg.Bootstrap.ICEServerURLs,
		DiscoverLimitDefault: cfg.Rendezvous.DiscoverLimit,
		MetricsHandler:       httpapi.NewMetricsHandler(m.Registry()),
		ReadyCheck:           readyCheck,
		HTTPRequestsPerSecond: cfg.RateLimit.HTTPRequestsPerSecond,
		HTTPBurst:             cfg.RateLimit.HTTPBurst,
	})
	mux := http.NewServeMux()
	mux.Handle("/signal", endpoint)
	mux.Handle("/", router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		cfg:         cfg,
		logger:      logger,
		clock:       c,
		metrics:     m,
		limiter:     limiter,
		verifier:    verifier,
		hub:         hub,
		registry:    registry,
		endpoint:    endpoint,
		pruner:      p,
		redisClient: redisClient,
		tracer:      tracer,
		httpServer:  httpServer,
	}
}

// Run starts the HTTP server and pruner, blocking until ctx is
// cancelled, then drains within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	prunerCtx, cancelPruner := context.WithCancel(ctx)
	defer cancelPruner()
	go a.pruner.Run(prunerCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Infow("bootstrap-signaling.started", "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Errorw("error during server shutdown", "error", err)
		if closeErr := a.httpServer.Close(); closeErr != nil {
			a.logger.Errorw("error force closing server", "error", closeErr)
		}
	}

	if a.redisClient != nil {
		a.redisClient.Close()
	}

	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warnw("error shutting down tracer", "error", err)
	}

	return nil
}
