package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/moneta-app/engine/internal/models"
	"github.com/moneta-app/engine/internal/rules"
)

// CreateRule adds an automation rule. A zero priority places the rule after
// all existing ones.
func (e *Engine) CreateRule(ctx context.Context, r models.Rule) (models.Rule, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if len(r.Conditions) == 0 {
		return models.Rule{}, fmt.Errorf("rule needs at least one condition")
	}
	if len(r.Actions) == 0 {
		return models.Rule{}, fmt.Errorf("rule needs at least one action")
	}
	if _, err := e.commit(ctx, func(next *models.Snapshot) error {
		if r.Priority == 0 {
			max := 0
			for _, existing := range next.Rules {
				if existing.Priority > max {
					max = existing.Priority
				}
			}
			r.Priority = max + 1
		}
		next.Rules = append(next.Rules, r)
		return nil
	}); err != nil {
		return models.Rule{}, err
	}
	return r, nil
}

// UpdateRule replaces an existing rule wholesale.
func (e *Engine) UpdateRule(ctx context.Context, r models.Rule) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		existing := next.RuleByID(r.ID)
		if existing == nil {
			return fmt.Errorf("rule %s: %w", r.ID, ErrNotFound)
		}
		*existing = r
		return nil
	})
	return err
}

// SetRuleEnabled toggles a rule's participation.
func (e *Engine) SetRuleEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		rule := next.RuleByID(id)
		if rule == nil {
			return fmt.Errorf("rule %s: %w", id, ErrNotFound)
		}
		rule.Enabled = enabled
		return nil
	})
	return err
}

// DeleteRule removes a rule. References to it on past transactions become
// soft violations that the next repair pass prunes.
func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		for i := range next.Rules {
			if next.Rules[i].ID == id {
				next.Rules = append(next.Rules[:i], next.Rules[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	})
	return err
}

// ReorderRules assigns priorities 1..n following the given ID order. Every
// rule must appear exactly once.
func (e *Engine) ReorderRules(ctx context.Context, ids []string) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		if len(ids) != len(next.Rules) {
			return fmt.Errorf("got %d ids, have %d rules", len(ids), len(next.Rules))
		}
		for i, id := range ids {
			rule := next.RuleByID(id)
			if rule == nil {
				return fmt.Errorf("rule %s: %w", id, ErrNotFound)
			}
			rule.Priority = i + 1
		}
		return nil
	})
	return err
}

// PreviewResult pairs a historical transaction with what a rule would do to
// it.
type PreviewResult struct {
	Before   models.Transaction
	After    models.Transaction
	Warnings []rules.Warning
}

// PreviewRule dry-runs a single rule against the most recent non-voided
// transactions without committing anything, so the user can see a rule's
// effect before enabling it. At most limit transactions are previewed;
// limit <= 0 means 50.
func (e *Engine) PreviewRule(ctx context.Context, id string, limit int) ([]PreviewResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule := e.snap.RuleByID(id)
	if rule == nil {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if limit <= 0 {
		limit = 50
	}

	recent := make([]models.Transaction, 0, len(e.snap.Transactions))
	for i := range e.snap.Transactions {
		if !e.snap.Transactions[i].Voided {
			recent = append(recent, e.snap.Transactions[i].Clone())
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}

	preview := rule.Clone()
	preview.Enabled = true
	var out []PreviewResult
	for _, tx := range recent {
		res := e.rules.Apply(tx, []models.Rule{preview})
		if len(res.Applied) == 0 && len(res.Warnings) == 0 {
			continue
		}
		out = append(out, PreviewResult{Before: tx, After: res.Tx, Warnings: res.Warnings})
	}
	return out, nil
}
