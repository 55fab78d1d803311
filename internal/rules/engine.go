// Package rules evaluates automation rules against transactions.
//
// Rules run in ascending priority order; a rule matches when every one of its
// conditions holds against the transaction's current, possibly
// already-rewritten state. Actions apply in list order with last-writer-wins
// across rules, except the review flag, which is monotonic. A malformed rule
// is skipped with a warning and never aborts the pipeline.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/moneta-app/engine/internal/models"
)

// Warning reports a rule that could not be evaluated. Warnings are
// non-fatal; the rule is skipped and processing continues.
type Warning struct {
	RuleID  string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("rule %s skipped: %s", w.RuleID, w.Message)
}

// Result is the outcome of applying a rule set to one transaction.
type Result struct {
	// Tx is the transaction after all matching rules ran.
	Tx models.Transaction

	// Applied lists the IDs of the rules that matched, in evaluation order.
	Applied []string

	// Warnings lists rules skipped as malformed.
	Warnings []Warning

	// SplitFractions is non-nil when a split action fired; the store turns
	// it into derived legs. Last split writer wins, like other actions.
	SplitFractions []decimal.Decimal

	// SplitRuleID is the rule that set SplitFractions.
	SplitRuleID string
}

// Engine applies rule sets to transactions. It caches compiled regexes
// across calls; a zero Engine is ready to use.
type Engine struct {
	regexps map[string]*regexp.Regexp
}

// New creates an Engine.
func New() *Engine {
	return &Engine{regexps: make(map[string]*regexp.Regexp)}
}

// Apply evaluates the rules against the transaction and returns the mutated
// copy plus the IDs of rules that matched. The input transaction is not
// modified.
func (e *Engine) Apply(tx models.Transaction, ruleSet []models.Rule) Result {
	res := Result{Tx: tx.Clone()}

	ordered := make([]models.Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.Enabled {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, rule := range ordered {
		matched, err := e.matches(&res.Tx, rule)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{RuleID: rule.ID, Message: err.Error()})
			continue
		}
		if !matched {
			continue
		}
		stop, err := e.act(&res, rule)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{RuleID: rule.ID, Message: err.Error()})
			continue
		}
		res.Applied = append(res.Applied, rule.ID)
		res.Tx.RuleIDs = append(res.Tx.RuleIDs, rule.ID)
		if stop {
			break
		}
	}
	return res
}

// matches reports whether every condition of the rule holds. An unparseable
// condition makes the whole rule malformed.
func (e *Engine) matches(tx *models.Transaction, rule models.Rule) (bool, error) {
	if len(rule.Conditions) == 0 {
		return false, fmt.Errorf("rule has no conditions")
	}
	for _, cond := range rule.Conditions {
		ok, err := e.evalCondition(tx, cond)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) evalCondition(tx *models.Transaction, cond models.Condition) (bool, error) {
	switch cond.Field {
	case models.FieldAmount:
		return e.evalAmount(tx.Amount, cond)
	case models.FieldNote:
		return e.evalText(tx.Note, cond)
	case models.FieldCategory:
		return e.evalText(tx.CategoryID, cond)
	case models.FieldAccount:
		return e.evalText(tx.AccountID, cond)
	case models.FieldTags:
		return e.evalTags(tx.Tags, cond)
	default:
		return false, fmt.Errorf("unknown field %q", cond.Field)
	}
}

func (e *Engine) evalAmount(amount decimal.Decimal, cond models.Condition) (bool, error) {
	want, err := decimal.NewFromString(cond.Value)
	if err != nil {
		return false, fmt.Errorf("invalid amount %q: %w", cond.Value, err)
	}
	switch cond.Op {
	case models.OpEquals:
		return amount.Equal(want), nil
	case models.OpGreaterThan:
		return amount.GreaterThan(want), nil
	case models.OpLessThan:
		return amount.LessThan(want), nil
	case models.OpContains, models.OpRegex:
		return false, fmt.Errorf("operator %q not applicable to amount", cond.Op)
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Op)
	}
}

func (e *Engine) evalText(value string, cond models.Condition) (bool, error) {
	switch cond.Op {
	case models.OpEquals:
		return strings.EqualFold(value, cond.Value), nil
	case models.OpContains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(cond.Value)), nil
	case models.OpRegex:
		re, err := e.compile(cond.Value)
		if err != nil {
			return false, err
		}
		return re.MatchString(value), nil
	case models.OpGreaterThan, models.OpLessThan:
		return false, fmt.Errorf("operator %q not applicable to %q", cond.Op, cond.Field)
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Op)
	}
}

func (e *Engine) evalTags(tags []string, cond models.Condition) (bool, error) {
	switch cond.Op {
	case models.OpEquals, models.OpContains:
		for _, tag := range tags {
			if strings.EqualFold(tag, cond.Value) {
				return true, nil
			}
		}
		return false, nil
	case models.OpRegex:
		re, err := e.compile(cond.Value)
		if err != nil {
			return false, err
		}
		for _, tag := range tags {
			if re.MatchString(tag) {
				return true, nil
			}
		}
		return false, nil
	case models.OpGreaterThan, models.OpLessThan:
		return false, fmt.Errorf("operator %q not applicable to tags", cond.Op)
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Op)
	}
}

// act applies the rule's actions in list order. Returns true when a stop
// directive was seen. A malformed action makes the whole rule malformed;
// matches() is evaluated first, so a rule rejected here has changed nothing.
func (e *Engine) act(res *Result, rule models.Rule) (stop bool, err error) {
	// Validate before mutating so a malformed rule has no partial effect.
	for _, a := range rule.Actions {
		switch a.Kind {
		case models.ActionSetCategory, models.ActionAddTag, models.ActionRenameNote:
			if a.Value == "" {
				return false, fmt.Errorf("action %q requires a value", a.Kind)
			}
		case models.ActionSplit:
			if err := checkFractions(a.Fractions); err != nil {
				return false, err
			}
		case models.ActionFlagReview, models.ActionStop:
		default:
			return false, fmt.Errorf("unknown action %q", a.Kind)
		}
	}
	for _, a := range rule.Actions {
		switch a.Kind {
		case models.ActionSetCategory:
			res.Tx.CategoryID = a.Value
		case models.ActionAddTag:
			res.Tx.AddTag(a.Value)
		case models.ActionRenameNote:
			res.Tx.Note = a.Value
		case models.ActionFlagReview:
			res.Tx.ReviewFlag = true
		case models.ActionSplit:
			res.SplitFractions = a.Fractions
			res.SplitRuleID = rule.ID
		case models.ActionStop:
			stop = true
		}
	}
	return stop, nil
}

func checkFractions(fractions []decimal.Decimal) error {
	if len(fractions) < 2 {
		return fmt.Errorf("split needs at least 2 fractions")
	}
	sum := decimal.Zero
	for _, f := range fractions {
		if !f.IsPositive() {
			return fmt.Errorf("split fraction %s is not positive", f)
		}
		sum = sum.Add(f)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("split fractions sum to %s, want 1", sum)
	}
	return nil
}

func (e *Engine) compile(pattern string) (*regexp.Regexp, error) {
	if e.regexps == nil {
		e.regexps = make(map[string]*regexp.Regexp)
	}
	if re, ok := e.regexps[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	e.regexps[pattern] = re
	return re, nil
}
