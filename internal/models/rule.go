package models

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Field names a transaction attribute a rule condition can match on.
type Field string

const (
	FieldAmount   Field = "amount"
	FieldNote     Field = "note"
	FieldCategory Field = "category"
	FieldAccount  Field = "account"
	FieldTags     Field = "tags"
)

// ParseField parses a string into a Field.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldAmount, FieldNote, FieldCategory, FieldAccount, FieldTags:
		return Field(s), nil
	default:
		return "", fmt.Errorf("unknown rule field: %q", s)
	}
}

// Operator names a comparison a rule condition can apply.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpRegex       Operator = "regex"
)

// ParseOperator parses a string into an Operator.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpEquals, OpContains, OpGreaterThan, OpLessThan, OpRegex:
		return Operator(s), nil
	default:
		return "", fmt.Errorf("unknown rule operator: %q", s)
	}
}

// Condition is a single predicate over a transaction field. All conditions
// of a rule must hold for the rule to match.
type Condition struct {
	Field Field    `json:"field"`
	Op    Operator `json:"op"`
	Value string   `json:"value"`
}

// ActionKind names a mutation a matched rule applies to a transaction.
type ActionKind string

const (
	// ActionSetCategory assigns the category in Value.
	ActionSetCategory ActionKind = "set_category"
	// ActionAddTag adds the tag in Value.
	ActionAddTag ActionKind = "add_tag"
	// ActionRenameNote replaces the note with Value.
	ActionRenameNote ActionKind = "rename_note"
	// ActionFlagReview sets the review flag. Monotonic: once set by any
	// rule, no later rule clears it.
	ActionFlagReview ActionKind = "flag_review"
	// ActionSplit asks the store to split the transaction into legs with
	// the given Fractions.
	ActionSplit ActionKind = "split"
	// ActionStop halts rule evaluation after the current rule.
	ActionStop ActionKind = "stop"
)

// Action is a single mutation applied when a rule matches. Actions run in
// list order; across rules, the last writer wins on each field except the
// monotonic review flag.
type Action struct {
	Kind ActionKind `json:"kind"`

	// Value carries the category ID, tag, or replacement note depending on
	// Kind.
	Value string `json:"value,omitempty"`

	// Fractions carries the split proportions for ActionSplit. They must be
	// positive and sum to 1.
	Fractions []decimal.Decimal `json:"fractions,omitempty"`
}

// Rule is an automation rule applied to incoming transactions. Rules run in
// ascending Priority order (lower number wins earlier slot); disabled rules
// do not participate.
type Rule struct {
	// ID is the unique identifier for the rule (UUID format).
	ID string `json:"id"`

	// Name is the user-visible rule name.
	Name string `json:"name"`

	// Conditions must all hold against the transaction's current state.
	Conditions []Condition `json:"conditions"`

	// Actions run in list order on match.
	Actions []Action `json:"actions"`

	// Priority orders rule evaluation, ascending.
	Priority int `json:"priority"`

	// Enabled gates participation.
	Enabled bool `json:"enabled"`
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	r.Conditions = slices.Clone(r.Conditions)
	actions := make([]Action, len(r.Actions))
	for i, a := range r.Actions {
		a.Fractions = slices.Clone(a.Fractions)
		actions[i] = a
	}
	r.Actions = actions
	return r
}
