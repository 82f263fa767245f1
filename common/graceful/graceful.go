package graceful

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Laisky/zap"

	"github.com/buscafornecedor/vllm-gateway/common/logger"
)

// Lifecycle manager for graceful shutdown and background task draining.

var (
	inFlightTasks int64
	draining      atomic.Bool

	wg sync.WaitGroup
)

// GoTask runs fn in a tracked goroutine and decrements when done. Used for
// post-acceptance units of work that must be drained before shutdown.
func GoTask(ctx context.Context, name string, fn func(context.Context)) {
	atomic.AddInt64(&inFlightTasks, 1)
	wg.Go(func() {
		defer atomic.AddInt64(&inFlightTasks, -1)
		start := time.Now()
		logger.Logger.Debug("task start", zap.String("name", name))
		fn(ctx)
		logger.Logger.Debug("task done", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	})
}

// InFlightTasks returns the number of currently running tracked tasks.
func InFlightTasks() int64 {
	return atomic.LoadInt64(&inFlightTasks)
}

// Drain waits for all tracked tasks to finish, bounded by ctx deadline.
// Call after http.Server.Shutdown has stopped accepting new requests.
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
				zap.Int64("in_flight_tasks", atomic.LoadInt64(&inFlightTasks)))
			return ctx.Err()
		case <-done:
			logger.Logger.Info("graceful drain complete")
			return nil
		case <-ticker.C:
			// Periodic log for visibility during long drains
			logger.Logger.Debug("draining...",
				zap.Int64("in_flight_tasks", atomic.LoadInt64(&inFlightTasks)))
		}
	}
}

// SetDraining flips the draining flag to true.
func SetDraining() { draining.Store(true) }

// IsDraining returns whether the server is currently draining.
func IsDraining() bool { return draining.Load() }
