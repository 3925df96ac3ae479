package admission

import (
	"errors"
	"strings"

	"github.com/Knetic/govaluate"
)

// evalPrescreen evaluates a group's prescreen expression against a join
// request. Empty expression passes. Supports "true"/"false" literals.
// Numeric identifiers are exposed as float64, which is what govaluate's
// comparison operators expect.
func evalPrescreen(expression string, req JoinRequest) (bool, error) {
	cond := strings.TrimSpace(expression)
	if cond == "" {
		return true, nil
	}
	switch strings.ToLower(cond) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	params := map[string]interface{}{
		"user_id":      float64(req.UserID),
		"chat_id":      float64(req.ChatID),
		"username":     req.Username,
		"display_name": req.DisplayName,
	}
	expr, err := govaluate.NewEvaluableExpression(cond)
	if err != nil {
		return false, err
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	switch v := result.(type) {
	case bool:
		return v, nil
	default:
		return false, errors.New("prescreen expression did not evaluate to boolean")
	}
}
