// Command gateway runs the converse-gateway HTTP server: it wires the
// DynamoDB-backed store (fronted by the cache-aside layer),
// the Bedrock Converse client, and every internal/ component into the
// internal/httpapi router, then serves it until an interrupt or
// terminate signal arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Laisky/zap"

	"github.com/laiskytech/converse-gateway/internal/authguard"
	"github.com/laiskytech/converse-gateway/internal/billing"
	"github.com/laiskytech/converse-gateway/internal/cache"
	"github.com/laiskytech/converse-gateway/internal/config"
	"github.com/laiskytech/converse-gateway/internal/converse"
	"github.com/laiskytech/converse-gateway/internal/graceful"
	"github.com/laiskytech/converse-gateway/internal/httpapi"
	"github.com/laiskytech/converse-gateway/internal/logger"
	"github.com/laiskytech/converse-gateway/internal/modelresolver"
	"github.com/laiskytech/converse-gateway/internal/ptc"
	"github.com/laiskytech/converse-gateway/internal/ratelimit"
	"github.com/laiskytech/converse-gateway/internal/store"
	"github.com/laiskytech/converse-gateway/internal/store/dynamo"
	"github.com/laiskytech/converse-gateway/internal/tracing"
)

func main() {
	ctx := context.Background()
	lg := logger.Logger.Named("main")

	if !config.RequireAPIKey {
		lg.Warn("REQUIRE_API_KEY is false, every request will be treated as the open key context")
	}

	backingStore, err := buildStore(ctx)
	if err != nil {
		lg.Fatal("build store", zap.Error(err))
	}

	bedrockClient, err := converse.New(ctx)
	if err != nil {
		lg.Fatal("build converse client", zap.Error(err))
	}

	ptcDispatcher, err := ptc.New()
	if err != nil {
		lg.Fatal("build ptc dispatcher", zap.Error(err))
	}

	tracingSettings := tracing.Disabled()
	if config.TracingEnabled {
		shutdownTracing, err := tracing.Init(ctx)
		if err != nil {
			lg.Fatal("init tracing", zap.Error(err))
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				lg.Error("shutdown tracing", zap.Error(err))
			}
		}()
		tracingSettings = &tracing.Settings{IsEnabled: true}
	}

	guard := authguard.New(backingStore)
	lg.Info("ephemeral dev api key generated", zap.String("api_key", guard.EphemeralKey()))

	deps := httpapi.Deps{
		Guard:     guard,
		Limiter:   ratelimit.New(config.RateLimitBucketCacheSize, config.RateLimitBucketTTL),
		Resolver:  modelresolver.New(backingStore),
		Converse:  bedrockClient,
		Billing:   billing.New(backingStore),
		Store:     backingStore,
		Tracing:   tracingSettings,
		PTC:       ptcDispatcher,
		StartedAt: time.Now(),
	}

	srv := &http.Server{
		Addr:    config.Host + ":" + config.Port,
		Handler: httpapi.New(deps),
	}

	go func() {
		lg.Info("server started", zap.String("address", "http://"+srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutdown signal received")
	graceful.SetDraining()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := graceful.Drain(shutdownCtx); err != nil {
		lg.Error("drain incomplete at shutdown", zap.Error(err))
	}
	logger.Sync()
}

// buildStore constructs the DynamoDB store and, when REDIS_URL or the
// default local TTL cache applies, wraps it with the cache-aside layer.
func buildStore(ctx context.Context) (store.Store, error) {
	dynamoStore, err := dynamo.New(ctx)
	if err != nil {
		return nil, err
	}

	c, err := cache.New(config.RedisURL, 5*time.Second)
	if err != nil {
		return nil, err
	}

	return cache.Wrap(dynamoStore, c), nil
}
