package sampletask

import (
	"testing"

	"github.com/dandantas/taskkeeper/internal/sampletask/evaluator"
	"github.com/dandantas/taskkeeper/internal/sampletask/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Target: Target{URL: "https://example.com/health", Method: "GET"},
		Rules: []evaluator.Rule{
			{Name: "status", Expression: "$.status", Operator: "eq", ExpectedValue: "ok", AlertOnMatch: true},
		},
		Webhook: webhook.Config{URL: "https://hooks.example.com/alert"},
	}
}

func TestConfigValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.validate())
	assert.Equal(t, 2, cfg.Workers, "workers should default when unset")
}

func TestConfigValidate_RejectsMissingTargetURL(t *testing.T) {
	cfg := validConfig()
	cfg.Target.URL = ""
	assert.Error(t, cfg.validate())
}

func TestConfigValidate_RejectsBadScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Target.URL = "ftp://example.com"
	assert.Error(t, cfg.validate())
}

func TestConfigValidate_RejectsRuleWithoutExpression(t *testing.T) {
	cfg := validConfig()
	cfg.Rules = []evaluator.Rule{{Name: "bad"}}
	assert.Error(t, cfg.validate())
}

func TestConfigValidate_RejectsMissingWebhookURL(t *testing.T) {
	cfg := validConfig()
	cfg.Webhook.URL = ""
	assert.Error(t, cfg.validate())
}

func TestAuthValidate_BasicRequiresCredentials(t *testing.T) {
	a := Auth{Type: "basic"}
	assert.Error(t, a.validate())

	a = Auth{Type: "basic", Username: "u", Password: "p"}
	assert.NoError(t, a.validate())
}

func TestAuthValidate_BearerRequiresToken(t *testing.T) {
	a := Auth{Type: "bearer"}
	assert.Error(t, a.validate())

	a = Auth{Type: "bearer", Token: "t"}
	assert.NoError(t, a.validate())
}
