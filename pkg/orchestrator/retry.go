package orchestrator

import (
	"strings"
	"time"
)

// defaultRetryableSubstrings is the case-insensitive fallback classifier,
// used whenever RetryConfig.RetryOnErrors is empty (§4.E "Retry classifier").
var defaultRetryableSubstrings = []string{
	"ECONNRESET", "ETIMEDOUT", "ENOTFOUND", "rate limit", "429", "503", "timeout",
}

// classifyRetry reports whether another attempt is permitted after a
// failure with message msg, given retryCount retries already consumed.
func classifyRetry(msg string, retryCount int, cfg RetryConfig) bool {
	if retryCount >= cfg.maxRetries() {
		return false
	}
	if len(cfg.RetryOnErrors) > 0 {
		for _, s := range cfg.RetryOnErrors {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
	lower := strings.ToLower(msg)
	for _, s := range defaultRetryableSubstrings {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// retryDelay computes the sleep before attempt (1-based, "the attempt about
// to be made"), per §4.E "Retry delay". No jitter is added.
func retryDelay(attempt int, cfg RetryConfig) time.Duration {
	base := cfg.baseDelay()
	if !cfg.backoffEnabled() {
		return base
	}
	return base * time.Duration(1<<uint(attempt-1))
}
