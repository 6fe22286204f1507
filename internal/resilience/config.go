package resilience

import (
	"time"
)

// FromRetrySettings builds a rate-limit RetryConfig from configured values.
// Zero values keep the RateLimitRetryConfig defaults.
func FromRetrySettings(maxAttempts, baseDelayMs, maxDelayMs int) RetryConfig {
	cfg := RateLimitRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if baseDelayMs > 0 {
		cfg.InitialBackoff = time.Duration(baseDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		cfg.MaxBackoff = time.Duration(maxDelayMs) * time.Millisecond
	}
	return cfg
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
