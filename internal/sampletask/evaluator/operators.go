package evaluator

import (
	"fmt"
	"regexp"
	"strings"
)

// EvaluateOperator evaluates operator against extracted and expected values.
func EvaluateOperator(operator string, extractedValue, expectedValue interface{}) (bool, error) {
	switch strings.ToLower(operator) {
	case "eq":
		return AreEqual(extractedValue, expectedValue), nil
	case "ne":
		return !AreEqual(extractedValue, expectedValue), nil
	case "gt":
		cmp, err := CompareNumbers(extractedValue, expectedValue)
		return cmp > 0, err
	case "lt":
		cmp, err := CompareNumbers(extractedValue, expectedValue)
		return cmp < 0, err
	case "gte":
		cmp, err := CompareNumbers(extractedValue, expectedValue)
		return cmp >= 0, err
	case "lte":
		cmp, err := CompareNumbers(extractedValue, expectedValue)
		return cmp <= 0, err
	case "contains":
		return evaluateContains(extractedValue, expectedValue)
	case "exists":
		return extractedValue != nil, nil
	case "regex":
		return evaluateRegex(extractedValue, expectedValue)
	default:
		return false, fmt.Errorf("unknown operator: %s", operator)
	}
}

func evaluateContains(extracted, expected interface{}) (bool, error) {
	if arr, ok := extracted.([]interface{}); ok {
		for _, item := range arr {
			if AreEqual(item, expected) {
				return true, nil
			}
		}
		return false, nil
	}
	return strings.Contains(CoerceToString(extracted), CoerceToString(expected)), nil
}

func evaluateRegex(extracted, expected interface{}) (bool, error) {
	patternStr := CoerceToString(expected)
	re, err := regexp.Compile(patternStr)
	if err != nil {
		return false, fmt.Errorf("invalid regex pattern %q: %w", patternStr, err)
	}
	return re.MatchString(CoerceToString(extracted)), nil
}
