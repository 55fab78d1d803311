package models

import (
	"slices"
	"strings"
)

// SchemaVersion is the current persisted snapshot schema version. The
// migration runner upgrades older snapshots to this version; newer versions
// are refused.
const SchemaVersion = 4

// Snapshot is the versioned aggregate of all entity collections, the unit of
// persistence. Collections are kept sorted by ID so serialization is
// deterministic.
type Snapshot struct {
	SchemaVersion int           `json:"schema_version"`
	Accounts      []Account     `json:"accounts"`
	Transactions  []Transaction `json:"transactions"`
	Categories    []Category    `json:"categories"`
	Budgets       []Budget      `json:"budgets"`
	Goals         []Goal        `json:"goals"`
	Rules         []Rule        `json:"rules"`
}

// NewSnapshot returns an empty snapshot at the current schema version.
func NewSnapshot() *Snapshot {
	return &Snapshot{SchemaVersion: SchemaVersion}
}

// Clone returns a deep copy of the snapshot. Mutating the copy never affects
// the original; this is what gives store commits their copy-on-write
// semantics.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		SchemaVersion: s.SchemaVersion,
		Accounts:      slices.Clone(s.Accounts),
		Categories:    slices.Clone(s.Categories),
		Budgets:       slices.Clone(s.Budgets),
		Goals:         slices.Clone(s.Goals),
	}
	c.Transactions = make([]Transaction, len(s.Transactions))
	for i := range s.Transactions {
		c.Transactions[i] = s.Transactions[i].Clone()
	}
	c.Rules = make([]Rule, len(s.Rules))
	for i, r := range s.Rules {
		c.Rules[i] = r.Clone()
	}
	return c
}

// Sort orders every collection by ID. Persisted output and iteration order
// are deterministic after a Sort.
func (s *Snapshot) Sort() {
	slices.SortFunc(s.Accounts, func(a, b Account) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Transactions, func(a, b Transaction) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Categories, func(a, b Category) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Budgets, func(a, b Budget) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Goals, func(a, b Goal) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Rules, func(a, b Rule) int { return strings.Compare(a.ID, b.ID) })
}

// AccountByID returns a pointer into the Accounts slice, or nil.
func (s *Snapshot) AccountByID(id string) *Account {
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			return &s.Accounts[i]
		}
	}
	return nil
}

// TransactionByID returns a pointer into the Transactions slice, or nil.
func (s *Snapshot) TransactionByID(id string) *Transaction {
	for i := range s.Transactions {
		if s.Transactions[i].ID == id {
			return &s.Transactions[i]
		}
	}
	return nil
}

// CategoryByID returns a pointer into the Categories slice, or nil.
func (s *Snapshot) CategoryByID(id string) *Category {
	for i := range s.Categories {
		if s.Categories[i].ID == id {
			return &s.Categories[i]
		}
	}
	return nil
}

// BudgetByID returns a pointer into the Budgets slice, or nil.
func (s *Snapshot) BudgetByID(id string) *Budget {
	for i := range s.Budgets {
		if s.Budgets[i].ID == id {
			return &s.Budgets[i]
		}
	}
	return nil
}

// GoalByID returns a pointer into the Goals slice, or nil.
func (s *Snapshot) GoalByID(id string) *Goal {
	for i := range s.Goals {
		if s.Goals[i].ID == id {
			return &s.Goals[i]
		}
	}
	return nil
}

// RuleByID returns a pointer into the Rules slice, or nil.
func (s *Snapshot) RuleByID(id string) *Rule {
	for i := range s.Rules {
		if s.Rules[i].ID == id {
			return &s.Rules[i]
		}
	}
	return nil
}

// TransferLegs returns the transactions sharing the given transfer group.
func (s *Snapshot) TransferLegs(groupID string) []*Transaction {
	if groupID == "" {
		return nil
	}
	var legs []*Transaction
	for i := range s.Transactions {
		if s.Transactions[i].TransferGroupID == groupID {
			legs = append(legs, &s.Transactions[i])
		}
	}
	return legs
}
