package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/winner-card/internal/logging"
	"github.com/example/winner-card/internal/repository"
)

// cacheRetry bounds how hard the contest flow tries the cache before
// degrading. Only transient network errors are retried.
type cacheRetry struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}

func defaultCacheRetry() cacheRetry {
	return cacheRetry{attempts: 3, initial: 50 * time.Millisecond, max: time.Second}
}

func (uc *ContestUseCase) retryCache(ctx context.Context, requestID, operation string, fn func() error) error {
	policy := uc.cacheRetry
	if policy.attempts < 1 {
		policy.attempts = 1
	}

	backoff := policy.initial
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 1; attempt <= policy.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= policy.max {
				backoff = next
			}
		}

		if err = fn(); err == nil {
			if attempt > 1 {
				opLogger.Info("cache recovered after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		if !repository.IsTransientError(err) {
			break
		}
		if attempt < policy.attempts {
			opLogger.Warn("transient cache error", zap.Error(err), zap.Int("attempt", attempt))
		}
	}
	// misses land here too, so keep it quiet
	opLogger.Debug("cache operation failed", zap.Error(err))
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *ContestUseCase) cacheGet(ctx context.Context, requestID, operation, key string) (string, error) {
	var value string
	err := uc.retryCache(ctx, requestID, operation, func() error {
		v, err := uc.cache.Get(ctx, key)
		value = v
		return err
	})
	return value, err
}

func (uc *ContestUseCase) cacheSet(ctx context.Context, requestID, operation, key string, value interface{}, ttl time.Duration) error {
	return uc.retryCache(ctx, requestID, operation, func() error {
		return uc.cache.Set(ctx, key, value, ttl)
	})
}
