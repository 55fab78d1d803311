package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSnapshotCloneIsIndependent(t *testing.T) {
	s := NewSnapshot()
	s.Accounts = []Account{
		{ID: "acc-1", Name: "Checking", Type: AccountChecking, Currency: "EUR", Active: true},
	}
	s.Transactions = []Transaction{
		{
			ID: "tx-1", AccountID: "acc-1", Amount: decimal.NewFromInt(-10), Currency: "EUR",
			Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Tags:      []string{"a"}, RuleIDs: []string{"rule-1"},
		},
	}
	s.Rules = []Rule{
		{
			ID: "rule-1", Name: "r",
			Conditions: []Condition{{Field: FieldNote, Op: OpContains, Value: "x"}},
			Actions:    []Action{{Kind: ActionAddTag, Value: "x"}},
			Enabled:    true,
		},
	}

	c := s.Clone()
	c.Accounts[0].Name = "changed"
	c.Transactions[0].Tags[0] = "changed"
	c.Transactions[0].RuleIDs[0] = "changed"
	c.Rules[0].Conditions[0].Value = "changed"
	c.Rules[0].Actions[0].Value = "changed"

	if s.Accounts[0].Name != "Checking" {
		t.Error("Clone() shares account storage")
	}
	if s.Transactions[0].Tags[0] != "a" || s.Transactions[0].RuleIDs[0] != "rule-1" {
		t.Error("Clone() shares transaction slices")
	}
	if s.Rules[0].Conditions[0].Value != "x" || s.Rules[0].Actions[0].Value != "x" {
		t.Error("Clone() shares rule slices")
	}
}

func TestSnapshotSort(t *testing.T) {
	s := NewSnapshot()
	s.Transactions = []Transaction{
		{ID: "tx-c"}, {ID: "tx-a"}, {ID: "tx-b"},
	}
	s.Accounts = []Account{
		{ID: "acc-2"}, {ID: "acc-1"},
	}

	s.Sort()

	wantTx := []string{"tx-a", "tx-b", "tx-c"}
	for i, id := range wantTx {
		if s.Transactions[i].ID != id {
			t.Fatalf("Transactions[%d].ID = %q, want %q", i, s.Transactions[i].ID, id)
		}
	}
	if s.Accounts[0].ID != "acc-1" {
		t.Errorf("Accounts[0].ID = %q, want acc-1", s.Accounts[0].ID)
	}
}

func TestNormalizeTags(t *testing.T) {
	tx := Transaction{Tags: []string{"travel", "food", "food"}}
	tx.NormalizeTags()
	if len(tx.Tags) != 2 || tx.Tags[0] != "food" || tx.Tags[1] != "travel" {
		t.Errorf("Tags = %v, want [food travel]", tx.Tags)
	}

	empty := Transaction{Tags: []string{}}
	empty.NormalizeTags()
	if empty.Tags != nil {
		t.Errorf("Tags = %v, want nil for an empty set", empty.Tags)
	}
}

func TestCurrencyHelpers(t *testing.T) {
	if !ValidCurrency("EUR") || !ValidCurrency("JPY") {
		t.Error("known ISO currencies rejected")
	}
	if ValidCurrency("ZZZ") || ValidCurrency("") {
		t.Error("unknown currency accepted")
	}
	if got := CurrencyFraction("EUR"); got != 2 {
		t.Errorf("CurrencyFraction(EUR) = %d, want 2", got)
	}
	if got := CurrencyFraction("JPY"); got != 0 {
		t.Errorf("CurrencyFraction(JPY) = %d, want 0", got)
	}
}
