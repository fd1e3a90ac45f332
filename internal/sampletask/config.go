// Package sampletask is a concrete task.Callback: it polls an HTTP
// endpoint, evaluates JSONPath rules against the response, and dispatches
// webhook alerts asynchronously for matched rules, ending the run with
// RunContext.Dispatched. It exists to give the scheduling engine's core an
// example wired against a real endpoint and a real (if small) domain
// stack.
package sampletask

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dandantas/taskkeeper/internal/sampletask/evaluator"
	"github.com/dandantas/taskkeeper/internal/sampletask/webhook"
)

// Auth describes how the checker authenticates against Target.
type Auth struct {
	Type     string `json:"type"` // "basic" | "bearer" | "none"
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

func (a Auth) validate() error {
	switch strings.ToLower(a.Type) {
	case "basic":
		if a.Username == "" || a.Password == "" {
			return errors.New("sampletask: username and password required for basic auth")
		}
	case "bearer":
		if a.Token == "" {
			return errors.New("sampletask: token required for bearer auth")
		}
	case "none", "":
	default:
		return fmt.Errorf("sampletask: invalid auth type %q", a.Type)
	}
	return nil
}

// Target is the endpoint the checker polls on every run.
type Target struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	Auth    Auth              `json:"auth,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

func (t *Target) validate() error {
	if t.URL == "" {
		return errors.New("sampletask: target url is required")
	}
	parsed, err := url.Parse(t.URL)
	if err != nil {
		return fmt.Errorf("sampletask: invalid target url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("sampletask: target url must start with http:// or https://")
	}
	switch strings.ToUpper(t.Method) {
	case "GET", "POST", "PUT", "DELETE", "PATCH":
	default:
		return fmt.Errorf("sampletask: invalid http method %q", t.Method)
	}
	t.Method = strings.ToUpper(t.Method)
	if err := t.Auth.validate(); err != nil {
		return err
	}
	if t.Timeout == 0 {
		t.Timeout = 30 * time.Second
	}
	return nil
}

// Config is the checker's own configuration, distinct from task.Config
// (which governs when the checker runs, not what it does when it does).
type Config struct {
	Target  Target
	Rules   []evaluator.Rule
	Webhook webhook.Config
	Workers int
}

func (c *Config) validate() error {
	if err := c.Target.validate(); err != nil {
		return err
	}
	if err := c.Webhook.Validate(); err != nil {
		return err
	}
	for i := range c.Rules {
		if c.Rules[i].Name == "" {
			return fmt.Errorf("sampletask: rule at index %d has no name", i)
		}
		if c.Rules[i].Expression == "" {
			return fmt.Errorf("sampletask: rule %q has no expression", c.Rules[i].Name)
		}
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	return nil
}
