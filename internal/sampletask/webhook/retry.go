package webhook

import (
	"math"
	"time"
)

// retryStrategy implements exponential backoff between delivery attempts.
type retryStrategy struct {
	config RetryConfig
}

func newRetryStrategy(config RetryConfig) *retryStrategy {
	config.setDefaults()
	return &retryStrategy{config: config}
}

// calculateDelay follows delay = min(initial * multiplier^(attempt-1), max).
func (rs *retryStrategy) calculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delayMs := float64(rs.config.InitialDelayMs) * math.Pow(rs.config.Multiplier, float64(attempt-1))
	if delayMs > float64(rs.config.MaxDelayMs) {
		delayMs = float64(rs.config.MaxDelayMs)
	}
	return time.Duration(delayMs) * time.Millisecond
}

func (rs *retryStrategy) shouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= rs.config.MaxAttempts {
		return false
	}
	if statusCode >= 500 || statusCode == 429 {
		return true
	}
	if statusCode >= 400 {
		return false
	}
	if err != nil {
		return true
	}
	return statusCode >= 300
}

func (rs *retryStrategy) maxAttempts() int {
	return rs.config.MaxAttempts
}
