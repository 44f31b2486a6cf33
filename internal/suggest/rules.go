package suggest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/service"
)

// ErrInvalidRule is returned by NewRules for unusable rules.
var ErrInvalidRule = errors.New("invalid suggestion rule")

// AmountCondition restricts a rule to a charge range.
type AmountCondition string

// Amount conditions.
const (
	AmountAny   AmountCondition = ""
	AmountLT    AmountCondition = "lt"
	AmountGT    AmountCondition = "gt"
	AmountRange AmountCondition = "range"
)

// Rule maps record titles to a suggested value.
type Rule struct {
	AmountMin decimal.Decimal // lower bound for gt and range
	AmountMax decimal.Decimal // upper bound for lt and range
	// Column is the special column the rule answers for; empty means
	// "category".
	Column    string
	Pattern   string
	Value     string
	Condition AmountCondition
	Priority  int
	IsRegex   bool
}

type compiledRule struct {
	re *regexp.Regexp
	Rule
}

// Rules suggests values by matching the record title against configured
// rules, highest priority first, configuration order breaking ties.
type Rules struct {
	rules []compiledRule
}

// NewRules validates and compiles rules.
func NewRules(rules []Rule) (*Rules, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.Pattern == "" || r.Value == "" {
			return nil, fmt.Errorf("%w: rule %d needs a pattern and a value", ErrInvalidRule, i)
		}
		if r.Column == "" {
			r.Column = model.FieldCategory
		}
		switch r.Condition {
		case AmountAny, AmountLT, AmountGT, AmountRange:
		default:
			return nil, fmt.Errorf("%w: rule %d: unknown amount condition %q", ErrInvalidRule, i, r.Condition)
		}

		cr := compiledRule{Rule: r}
		if r.IsRegex {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %d: %v", ErrInvalidRule, i, err)
			}
			cr.re = re
		}
		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(i, j int) bool { return compiled[i].Priority > compiled[j].Priority })
	return &Rules{rules: compiled}, nil
}

// Suggest implements service.Suggester.
func (r *Rules) Suggest(_ context.Context, req service.SuggestionRequest) (string, bool, error) {
	if req.Record == nil {
		return "", false, nil
	}
	title := req.Record.Title
	if title == "" {
		title = req.Value
	}

	for _, rule := range r.rules {
		if rule.Column != req.Column {
			continue
		}
		if rule.matchesTitle(title) && rule.matchesAmount(req.Record.Charge) {
			return rule.Value, true, nil
		}
	}
	return "", false, nil
}

func (r *compiledRule) matchesTitle(title string) bool {
	if r.re != nil {
		return r.re.MatchString(title)
	}
	// Plain patterns are case-insensitive substrings.
	return strings.Contains(strings.ToLower(title), strings.ToLower(r.Pattern))
}

func (r *compiledRule) matchesAmount(charge decimal.Decimal) bool {
	switch r.Condition {
	case AmountLT:
		return charge.LessThan(r.AmountMax)
	case AmountGT:
		return charge.GreaterThan(r.AmountMin)
	case AmountRange:
		return !charge.LessThan(r.AmountMin) && !charge.GreaterThan(r.AmountMax)
	default:
		return true
	}
}
