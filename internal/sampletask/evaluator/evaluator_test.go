package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateRule_EqMatches(t *testing.T) {
	e := NewEvaluator()
	rule := Rule{Name: "status-ok", Expression: "$.status", Operator: "eq", ExpectedValue: "ok"}

	result := e.EvaluateRule(rule, `{"status":"ok"}`)

	assert.True(t, result.Matched)
	assert.Empty(t, result.Error)
}

func TestEvaluateRule_GtOnNumericField(t *testing.T) {
	e := NewEvaluator()
	rule := Rule{Name: "latency", Expression: "$.latency_ms", Operator: "gt", ExpectedValue: 100.0}

	result := e.EvaluateRule(rule, `{"latency_ms": 250}`)

	assert.True(t, result.Matched)
}

func TestEvaluateRule_InvalidJSONRecordsError(t *testing.T) {
	e := NewEvaluator()
	rule := Rule{Name: "bad", Expression: "$.x", Operator: "eq", ExpectedValue: "y"}

	result := e.EvaluateRule(rule, `not json`)

	assert.False(t, result.Matched)
	assert.NotEmpty(t, result.Error)
}

func TestEvaluateRule_MissingPathRecordsError(t *testing.T) {
	e := NewEvaluator()
	rule := Rule{Name: "missing", Expression: "$.nope", Operator: "exists", ExpectedValue: nil}

	result := e.EvaluateRule(rule, `{"status":"ok"}`)

	assert.NotEmpty(t, result.Error)
}

func TestMatchedForAlert_OnlyReturnsAlertOnMatchRules(t *testing.T) {
	rules := []Rule{
		{Name: "a", AlertOnMatch: true},
		{Name: "b", AlertOnMatch: false},
	}
	evaluations := []RuleEvaluation{
		{RuleName: "a", Matched: true},
		{RuleName: "b", Matched: true},
	}

	matched := MatchedForAlert(evaluations, rules)

	assert.Len(t, matched, 1)
	assert.Equal(t, "a", matched[0].RuleName)
}

func TestEvaluateOperator_UnknownOperatorErrors(t *testing.T) {
	_, err := EvaluateOperator("bogus", 1, 2)
	assert.Error(t, err)
}

func TestEvaluateOperator_ContainsOnArray(t *testing.T) {
	matched, err := EvaluateOperator("contains", []interface{}{"a", "b", "c"}, "b")
	assert.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluateOperator_Regex(t *testing.T) {
	matched, err := EvaluateOperator("regex", "v1.2.3", `^v\d+\.\d+\.\d+$`)
	assert.NoError(t, err)
	assert.True(t, matched)
}
