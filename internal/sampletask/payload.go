package sampletask

import (
	"fmt"

	"github.com/dandantas/taskkeeper/internal/sampletask/evaluator"
	"github.com/dandantas/taskkeeper/internal/sampletask/webhook"
)

func formatAlertPayload(targetURL string, statusCode int, runID int64, eval evaluator.RuleEvaluation) webhook.Payload {
	var text string
	if eval.Error != "" {
		text = fmt.Sprintf("alert: rule %q could not be evaluated: %s", eval.RuleName, eval.Error)
	} else {
		text = fmt.Sprintf("alert: rule %q matched (extracted=%v operator=%s expected=%v)",
			eval.RuleName, eval.ExtractedValue, eval.Operator, eval.ExpectedValue)
	}

	return webhook.Payload{
		Text: text,
		Metadata: map[string]interface{}{
			"run_id":    runID,
			"rule_name": eval.RuleName,
			"severity":  severityFor(eval),
		},
		Details: map[string]interface{}{
			"target_url":          targetURL,
			"status_code":         statusCode,
			"extracted_value":     eval.ExtractedValue,
			"expected_value":      eval.ExpectedValue,
			"operator":            eval.Operator,
			"jsonpath_expression": eval.Expression,
		},
	}
}

func severityFor(eval evaluator.RuleEvaluation) string {
	if eval.Error != "" {
		return "error"
	}
	return "warning"
}
