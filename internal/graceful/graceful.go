// Package graceful tracks in-flight requests and detached post-response
// work (billing, usage aggregation) so cmd/gateway's shutdown sequence can
// wait for both to finish instead of dropping them when the process exits.
package graceful

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Laisky/zap"

	"github.com/laiskytech/converse-gateway/internal/logger"
)

var (
	inFlightRequests int64
	draining         atomic.Bool

	wg sync.WaitGroup
)

// BeginRequest increments the in-flight request counter and returns a func
// to decrement it; called with `defer` at the top of internal/httpapi's
// request-id middleware, so the gap covers streaming handlers too.
func BeginRequest() func() {
	atomic.AddInt64(&inFlightRequests, 1)
	return func() {
		atomic.AddInt64(&inFlightRequests, -1)
	}
}

// GoCritical runs fn in a tracked goroutine, used by internal/billing's
// Accountant.Record so a shutdown's Drain can wait for the last few
// billing writes instead of racing them against process exit.
func GoCritical(ctx context.Context, name string, fn func(context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		start := time.Now()
		logger.Logger.Debug("critical task start", zap.String("name", name))
		fn(ctx)
		logger.Logger.Debug("critical task done", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	}()
}

// Drain waits for every tracked critical task to finish and for in-flight
// requests to reach zero, bounded by ctx's deadline.
func Drain(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Logger.Error("graceful drain timeout",
				zap.Int64("in_flight_requests", atomic.LoadInt64(&inFlightRequests)))
			return ctx.Err()
		case <-done:
			for {
				n := atomic.LoadInt64(&inFlightRequests)
				if n == 0 {
					logger.Logger.Info("graceful drain complete")
					return nil
				}
				select {
				case <-ctx.Done():
					logger.Logger.Error("graceful drain timeout (requests not zero)", zap.Int64("in_flight_requests", n))
					return ctx.Err()
				case <-ticker.C:
				}
			}
		case <-ticker.C:
			logger.Logger.Debug("draining...", zap.Int64("in_flight_requests", atomic.LoadInt64(&inFlightRequests)))
		}
	}
}

// SetDraining flips the draining flag, read by internal/httpapi's health
// handler so a load balancer can stop routing new traffic before the
// process actually stops accepting connections.
func SetDraining() { draining.Store(true) }

// IsDraining reports whether the server is currently draining.
func IsDraining() bool { return draining.Load() }
