// Package evaluator applies JSONPath rules to an HTTP response body for
// the sample endpoint-checker task.
package evaluator

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/oliveagle/jsonpath"
)

// Rule is a single JSONPath assertion against a response body.
type Rule struct {
	Name          string      `json:"name"`
	Expression    string      `json:"expression"`
	Operator      string      `json:"operator"`
	ExpectedValue interface{} `json:"expected_value"`
	AlertOnMatch  bool        `json:"alert_on_match"`
}

// RuleEvaluation is the outcome of running one Rule against a response.
type RuleEvaluation struct {
	RuleName       string      `json:"rule_name"`
	Expression     string      `json:"expression"`
	Operator       string      `json:"operator"`
	ExpectedValue  interface{} `json:"expected_value"`
	ExtractedValue interface{} `json:"extracted_value,omitempty"`
	Matched        bool        `json:"matched"`
	Error          string      `json:"error,omitempty"`
}

// Evaluator evaluates rules against a JSON response body.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func (e *Evaluator) EvaluateRule(rule Rule, responseBody string) RuleEvaluation {
	result := RuleEvaluation{
		RuleName:      rule.Name,
		Expression:    rule.Expression,
		Operator:      rule.Operator,
		ExpectedValue: rule.ExpectedValue,
	}

	var jsonData interface{}
	if err := json.Unmarshal([]byte(responseBody), &jsonData); err != nil {
		result.Error = fmt.Sprintf("failed to parse JSON response: %v", err)
		return result
	}

	extracted, err := e.extractValue(jsonData, rule.Expression)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.ExtractedValue = extracted

	matched, err := EvaluateOperator(rule.Operator, extracted, rule.ExpectedValue)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Matched = matched

	slog.Debug("evaluator: rule evaluated",
		"rule", rule.Name,
		"expression", rule.Expression,
		"matched", matched,
	)
	return result
}

func (e *Evaluator) EvaluateRules(rules []Rule, responseBody string) []RuleEvaluation {
	results := make([]RuleEvaluation, 0, len(rules))
	for _, rule := range rules {
		results = append(results, e.EvaluateRule(rule, responseBody))
	}
	return results
}

func (e *Evaluator) extractValue(jsonData interface{}, expression string) (interface{}, error) {
	pattern, err := jsonpath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression %q: %w", expression, err)
	}
	result, err := pattern.Lookup(jsonData)
	if err != nil {
		return nil, fmt.Errorf("JSONPath expression %q returned no results: %w", expression, err)
	}
	return result, nil
}

// MatchedForAlert filters evaluations down to the ones that matched and are
// configured to trigger an alert.
func MatchedForAlert(evaluations []RuleEvaluation, rules []Rule) []RuleEvaluation {
	alertOn := make(map[string]bool, len(rules))
	for _, r := range rules {
		alertOn[r.Name] = r.AlertOnMatch
	}

	var matched []RuleEvaluation
	for _, eval := range evaluations {
		if eval.Matched && alertOn[eval.RuleName] {
			matched = append(matched, eval)
		}
	}
	return matched
}
