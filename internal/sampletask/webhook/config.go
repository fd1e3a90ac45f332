package webhook

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// RetryConfig controls the exponential backoff a Dispatcher applies between
// delivery attempts.
type RetryConfig struct {
	MaxAttempts    int     `json:"max_attempts"`
	InitialDelayMs int     `json:"initial_delay_ms"`
	MaxDelayMs     int     `json:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier"`
}

func (rc *RetryConfig) setDefaults() {
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = 3
	}
	if rc.InitialDelayMs == 0 {
		rc.InitialDelayMs = 1000
	}
	if rc.MaxDelayMs == 0 {
		rc.MaxDelayMs = 30000
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
}

// Config is where alerts are sent and how delivery is retried.
type Config struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	RetryConfig RetryConfig       `json:"retry_config,omitempty"`
}

// Validate checks the webhook is well formed, filling in method and retry
// defaults.
func (w *Config) Validate() error {
	if w.URL == "" {
		return errors.New("webhook: url is required")
	}
	parsed, err := url.Parse(w.URL)
	if err != nil {
		return fmt.Errorf("webhook: invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("webhook: url must start with http:// or https://")
	}
	if w.Method == "" {
		w.Method = "POST"
	}
	w.Method = strings.ToUpper(w.Method)
	w.RetryConfig.setDefaults()
	return nil
}
