package model

import (
	"strconv"

	"github.com/goliatone/go-formsync/pkg/schema"
)

// IsRequired reports whether a property must be supplied. A field is required
// unless one of its wrapper layers marks it optional or nullable.
func IsRequired(node *schema.Node) bool {
	current := node
	for depth := 0; current != nil && depth < schema.MaxUnwrapDepth; depth++ {
		switch current.Kind {
		case schema.KindOptional, schema.KindNullable:
			return false
		case schema.KindDefault, schema.KindEffect:
			current = current.Inner
		default:
			return true
		}
	}
	return true
}

// ExtractValidations derives validation rules for a property. It walks the
// node on its own rather than reusing the widget mapping so required-ness and
// constraints stay independent of widget heuristics.
func ExtractValidations(node *schema.Node) []ValidationRule {
	var rules []ValidationRule
	if IsRequired(node) {
		rules = append(rules, ValidationRule{Kind: ValidationRuleRequired})
	}

	current := node
	for depth := 0; current != nil && current.Kind.IsWrapper() && depth < schema.MaxUnwrapDepth; depth++ {
		current = current.Inner
	}
	if current == nil {
		return nilIfEmpty(rules)
	}

	for _, check := range current.Checks {
		switch check.Kind {
		case schema.CheckMin:
			rules = append(rules, boundRule(ValidationRuleMin, check))
		case schema.CheckMax:
			rules = append(rules, boundRule(ValidationRuleMax, check))
		case schema.CheckMinLength:
			rules = append(rules, valueRule(ValidationRuleMinLength, check.Value))
		case schema.CheckMaxLength:
			rules = append(rules, valueRule(ValidationRuleMaxLength, check.Value))
		case schema.CheckRegex:
			rules = append(rules, ValidationRule{
				Kind:   ValidationRulePattern,
				Params: map[string]string{"pattern": check.Pattern},
			})
		case schema.CheckEmail:
			rules = append(rules, ValidationRule{Kind: ValidationRuleEmail})
		case schema.CheckURL:
			rules = append(rules, ValidationRule{Kind: ValidationRuleURL})
		case schema.CheckInt:
			rules = append(rules, ValidationRule{Kind: ValidationRuleInteger})
		case schema.CheckMultipleOf:
			rules = append(rules, valueRule(ValidationRuleMultipleOf, check.Value))
		case schema.CheckMinItems:
			rules = append(rules, valueRule(ValidationRuleMinItems, check.Value))
		case schema.CheckMaxItems:
			rules = append(rules, valueRule(ValidationRuleMaxItems, check.Value))
		}
	}
	return nilIfEmpty(rules)
}

func boundRule(kind string, check schema.Check) ValidationRule {
	rule := valueRule(kind, check.Value)
	if check.Exclusive {
		rule.Params["exclusive"] = "true"
	}
	return rule
}

func valueRule(kind string, value float64) ValidationRule {
	return ValidationRule{
		Kind:   kind,
		Params: map[string]string{"value": formatFloat(value)},
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func nilIfEmpty(rules []ValidationRule) []ValidationRule {
	if len(rules) == 0 {
		return nil
	}
	return rules
}
