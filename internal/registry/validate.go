package registry

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/plancompass/onboarding/internal/domain"
)

const maxTextLen = 500

// allocation percentages must sum to 100 within this tolerance; client
// sliders round to two decimals.
var allocationTolerance = decimal.NewFromFloat(0.01)

// ValidateAnswer checks value against the step's input kind and returns the
// normalized value to commit. It never mutates the session; a failure is
// always a *domain.ValidationError.
func (r *Registry) ValidateAnswer(def StepDefinition, value any) (any, error) {
	if value == nil {
		if def.Required {
			return nil, invalid(def.ID, "an answer is required")
		}
		return nil, nil
	}

	switch def.Kind {
	case KindChoice:
		return validateChoice(def, value)
	case KindText:
		return validateText(def, value)
	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, invalid(def.ID, "expected true or false")
		}
		return b, nil
	case KindMoney:
		return validateMoney(def, value)
	case KindAllocation:
		return validateAllocation(def, value)
	case KindAccountLink:
		return validateAccountLink(def, value)
	default:
		return nil, invalid(def.ID, fmt.Sprintf("unhandled input kind %q", def.Kind))
	}
}

func invalid(id domain.StepID, msg string) *domain.ValidationError {
	return &domain.ValidationError{StepID: id, Message: msg}
}

func validateChoice(def StepDefinition, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, invalid(def.ID, "expected one of the listed options")
	}
	for _, opt := range def.Options {
		if s == opt {
			return s, nil
		}
	}
	return nil, invalid(def.ID, fmt.Sprintf("%q is not one of the listed options", s))
}

func validateText(def StepDefinition, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, invalid(def.ID, "expected text")
	}
	s = strings.TrimSpace(s)
	if s == "" && def.Required {
		return nil, invalid(def.ID, "an answer is required")
	}
	if len(s) > maxTextLen {
		return nil, invalid(def.ID, fmt.Sprintf("answer longer than %d characters", maxTextLen))
	}
	return s, nil
}

// validateMoney accepts a string or a JSON number and normalizes it to the
// canonical decimal string, so "1,200.50" and 1200.5 commit identically.
func validateMoney(def StepDefinition, value any) (any, error) {
	var d decimal.Decimal
	var err error

	switch v := value.(type) {
	case string:
		d, err = decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
		if err != nil {
			return nil, invalid(def.ID, "not a valid amount")
		}
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	default:
		return nil, invalid(def.ID, "expected an amount")
	}

	if d.IsNegative() {
		return nil, invalid(def.ID, "amount cannot be negative")
	}

	return d.Round(2).String(), nil
}

func validateAllocation(def StepDefinition, value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, invalid(def.ID, "expected a category breakdown")
	}
	if len(m) == 0 {
		return nil, invalid(def.ID, "at least one category is required")
	}

	out := make(map[string]float64, len(m))
	sum := decimal.Zero
	for category, raw := range m {
		pct, ok := raw.(float64)
		if !ok {
			return nil, invalid(def.ID, fmt.Sprintf("category %q is not a number", category))
		}
		if pct < 0 {
			return nil, invalid(def.ID, fmt.Sprintf("category %q is negative", category))
		}
		out[category] = pct
		sum = sum.Add(decimal.NewFromFloat(pct))
	}

	if sum.Sub(decimal.NewFromInt(100)).Abs().GreaterThan(allocationTolerance) {
		return nil, invalid(def.ID, fmt.Sprintf("percentages sum to %s, expected 100", sum))
	}

	return out, nil
}

// validateAccountLink only checks shape. The payload comes from the linking
// service and is stored as an opaque answer value.
func validateAccountLink(def StepDefinition, value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, invalid(def.ID, "expected a linking result")
	}
	return m, nil
}
