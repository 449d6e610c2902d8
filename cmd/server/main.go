package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/S-Corkum/external-adapter/internal/adapter"
	"github.com/S-Corkum/external-adapter/internal/cache"
	"github.com/S-Corkum/external-adapter/internal/config"
	"github.com/S-Corkum/external-adapter/internal/endpoint"
	"github.com/S-Corkum/external-adapter/internal/httpapi"
	"github.com/S-Corkum/external-adapter/internal/subscription"
	"github.com/S-Corkum/external-adapter/internal/transport"
	"github.com/S-Corkum/external-adapter/pkg/observability"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := observability.Logger(observability.NewStandardLogger("external-adapter").WithLevel(observability.LogLevel(cfg.Logging.Level)))
	metricsClient := observability.NewPrometheusMetricsClient("external_adapter")
	defer metricsClient.Close()

	tracingShutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer tracingShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := adapter.New(cfg.EAHost, logger, metricsClient)
	defs := buildEndpointDefs(cfg)

	adapterCfg := adapter.Config{
		Name: cfg.EAHost,
		Cache: cache.Config{
			Type:          cfg.CacheType,
			AdapterName:   cfg.EAHost,
			LocalCapacity: cfg.CacheMaxSubscriptions,
			Redis: cache.RedisConfig{
				Address:  cfg.RedisAddress,
				Password: cfg.RedisPassword,
				Database: cfg.RedisDatabase,
			},
		},
		Subscriptions: subscription.Config{
			Type:          cfg.CacheType,
			LocalCapacity: cfg.CacheMaxSubscriptions,
			RedisClient:   subscriptionRedisClient(cfg),
		},
		RateLimitRPS:            cfg.RateLimitRPS,
		RateLimitBurst:          cfg.RateLimitBurst,
		ShutdownGraceMS:         cfg.ShutdownGraceMS,
		BackgroundExecuteMSWS:   cfg.BackgroundExecuteMSWS,
		BackgroundExecuteMSHTTP: cfg.BackgroundExecuteMSHTTP,
	}

	if err := a.Start(ctx, adapterCfg, defs); err != nil {
		log.Fatalf("failed to start adapter: %v", err)
	}

	router := httpapi.NewRouter(a, httpapi.Config{
		MaxPayloadSize: cfg.MaxPayloadSizeLimit,
		APITimeout:     cfg.APITimeout,
		JWTSecret:      cfg.JWTSecret,
	}, logger, metricsClient)

	apiServer := &http.Server{
		Addr:              fmt.Sprintf("%s:8080", hostOnly(cfg.EAHost)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsServer := httpapi.NewMetricsServer(cfg.MetricsPort)

	go func() {
		logger.Info("starting api server", map[string]interface{}{"address": apiServer.Addr})
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server failed: %v", err)
		}
	}()

	go func() {
		logger.Info("starting metrics server", map[string]interface{}{"port": cfg.MetricsPort})
		if err := metricsServer.Start(); err != nil {
			log.Fatalf("metrics server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGraceMS)*time.Millisecond)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", map[string]interface{}{"error": err.Error()})
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", map[string]interface{}{"error": err.Error()})
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("adapter shutdown error", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("server stopped gracefully", nil)
}

// subscriptionRedisClient builds the *redis.Client subscription.Factory
// needs for the "redis"/"multilevel" backends. Returns nil for "local",
// which the factory never dereferences.
func subscriptionRedisClient(cfg *config.Config) *redis.Client {
	if cfg.CacheType != "redis" && cfg.CacheType != "multilevel" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDatabase,
	})
}

// hostOnly strips a bare IP/hostname down to the interface to bind; the
// deployed adapter listens on a fixed port regardless of EA_HOST's value.
func hostOnly(host string) string {
	if host == "0.0.0.0" || host == "" {
		return ""
	}
	return host
}

// buildEndpointDefs is the compiled-in endpoint catalog for this
// deployment. A production rollout of this adapter would source it from
// the provider's own package (e.g. a cryptocurrency price feed's HTTP and
// WebSocket transports); here it wires a single example "crypto" endpoint
// demonstrating the HTTP transport end to end.
func buildEndpointDefs(cfg *config.Config) []adapter.EndpointDef {
	base := os.Getenv("PROVIDER_BASE_URL")

	httpTransport := transport.NewHttpTransport(transport.HttpTransportConfig{
		Host:           base,
		Fetch:          newExampleFetcher(base),
		BatchSize:      20,
		WorkerPoolSize: 4,
		InlineOnMiss:   true,
	})

	return []adapter.EndpointDef{
		{
			Options: endpoint.Options{
				Name: "crypto",
				InputParameters: map[string]endpoint.InputParameter{
					"base":  {Type: "string", Required: true, Aliases: []string{"from", "coin"}},
					"quote": {Type: "string", Default: "USD", Aliases: []string{"to", "market"}},
				},
				DefaultTransport: "http",
			},
			Transports: []adapter.TransportDef{
				{
					Name:        "http",
					Transport:   httpTransport,
					CacheMaxAge: 30 * time.Second,
				},
			},
		},
	}
}
