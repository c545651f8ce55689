package simulator

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// The filter dialect chains comparison clauses with | as a logical AND.
// Clauses compare one field with ==, << for less than or >> for greater
// than. Date literals come as 2006-01-02 days and compare against the
// epoch millisecond fields.

func matchesQuery(fields map[string]any, query string) bool {
	if query == "" {
		return true
	}

	for _, clause := range strings.Split(query, "|") {
		if !matchesClause(fields, clause) {
			return false
		}
	}

	return true
}

func matchesClause(fields map[string]any, clause string) bool {
	name, op, literal := splitClause(clause)
	if op == "" {
		return false
	}

	raw, ok := fields[name]
	if !ok {
		return false
	}

	if flag, ok := raw.(bool); ok {
		return op == "==" && flag == (literal == "1" || literal == "true")
	}

	if number, ok := asFloat(raw); ok {
		operand, ok := numericLiteral(literal)
		if !ok {
			return false
		}

		switch op {
		case "==":
			return number == operand
		case "<<":
			return number < operand
		case ">>":
			return number > operand
		}
	}

	if text, ok := raw.(string); ok {
		switch op {
		case "==":
			return text == literal
		case "<<":
			return text < literal
		case ">>":
			return text > literal
		}
	}

	return false
}

func splitClause(clause string) (name, op, literal string) {
	at := len(clause)

	for _, candidate := range []string{"==", "<<", ">>"} {
		if index := strings.Index(clause, candidate); index >= 0 && index < at {
			at = index
			op = candidate
		}
	}

	if op == "" {
		return "", "", ""
	}

	return clause[:at], op, clause[at+2:]
}

func numericLiteral(literal string) (float64, bool) {
	if number, err := strconv.ParseFloat(literal, 64); err == nil {
		return number, true
	}

	if day, err := time.Parse("2006-01-02", literal); err == nil {
		return float64(day.UnixMilli()), true
	}

	return 0, false
}

func asFloat(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		number, err := value.Float64()
		return number, err == nil
	}

	return 0, false
}
