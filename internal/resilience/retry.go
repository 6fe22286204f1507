package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig describes a doubling backoff: the wait before retry n is
// InitialBackoff * 2^(n-1), capped at MaxBackoff.
type RetryConfig struct {
	// MaxAttempts counts the first call. 1 disables retries.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Jitter spreads each wait by up to ±25%.
	Jitter bool

	// ShouldRetry defaults to IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry runs before each wait with the 1-based retry number.
	OnRetry func(retry int, err error)
}

// DefaultRetryConfig is used for plain transient failures: 3 attempts from
// 500ms with jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Jitter:         true,
	}
}

// RateLimitRetryConfig retries only rate-limit rejections, sleeping 5s, 10s,
// 20s and so on for up to 6 attempts.
func RateLimitRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    6,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     5 * time.Minute,
		ShouldRetry:    IsRateLimited,
	}
}

// Do calls fn until it succeeds, returns an error ShouldRetry rejects, runs
// out of attempts or ctx ends. The last error is returned unchanged.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = withRetryDefaults(cfg)

	for retry := 0; ; retry++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if retry+1 >= cfg.MaxAttempts || ctx.Err() != nil || !cfg.ShouldRetry(err) {
			return val, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(retry+1, err)
		}
		if !sleep(ctx, Backoff(retry, cfg)) {
			return val, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func withRetryDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsTransient
	}
	return cfg
}

// Backoff returns the wait after the failed attempt with the given 0-based
// index.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	cfg = withRetryDefaults(cfg)
	d := cfg.InitialBackoff
	for i := 0; i < attempt && d < cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	if cfg.Jitter {
		spread := int64(d) / 4
		if spread > 0 {
			d += time.Duration(rand.Int64N(2*spread+1) - spread)
		}
	}
	return d
}

// RetryLogger returns an OnRetry callback that logs at warn level.
func RetryLogger(service, operation string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
}
