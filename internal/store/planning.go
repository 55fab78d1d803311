package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/moneta-app/engine/internal/models"
)

// CreateCategory adds a category node. The commit validator rejects dangling
// parents and cycles.
func (e *Engine) CreateCategory(ctx context.Context, c models.Category) (models.Category, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Name == "" {
		return models.Category{}, fmt.Errorf("category name is required")
	}
	if _, err := e.commit(ctx, func(next *models.Snapshot) error {
		next.Categories = append(next.Categories, c)
		return nil
	}); err != nil {
		return models.Category{}, err
	}
	return c, nil
}

// RenameCategory changes a category's display name.
func (e *Engine) RenameCategory(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("category name is required")
	}
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		cat := next.CategoryByID(id)
		if cat == nil {
			return fmt.Errorf("category %s: %w", id, ErrNotFound)
		}
		cat.Name = name
		return nil
	})
	return err
}

// ReparentCategory moves a category under a new parent. Cycles are rejected
// by the commit validator, leaving the snapshot unchanged.
func (e *Engine) ReparentCategory(ctx context.Context, id, parentID string) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		cat := next.CategoryByID(id)
		if cat == nil {
			return fmt.Errorf("category %s: %w", id, ErrNotFound)
		}
		cat.ParentID = parentID
		return nil
	})
	return err
}

// DeleteCategory removes a category only when nothing references it:
// no transaction, no child category, no budget, no rule action. Otherwise
// ErrReferenced; reassign or keep it.
func (e *Engine) DeleteCategory(ctx context.Context, id string) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		idx := -1
		for i := range next.Categories {
			if next.Categories[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("category %s: %w", id, ErrNotFound)
		}
		if categoryReferenced(next, id) {
			return fmt.Errorf("category %s: %w", id, ErrReferenced)
		}
		next.Categories = append(next.Categories[:idx], next.Categories[idx+1:]...)
		return nil
	})
	return err
}

func categoryReferenced(s *models.Snapshot, id string) bool {
	for i := range s.Transactions {
		if s.Transactions[i].CategoryID == id {
			return true
		}
	}
	for i := range s.Categories {
		if s.Categories[i].ParentID == id {
			return true
		}
	}
	for i := range s.Budgets {
		if s.Budgets[i].CategoryID == id {
			return true
		}
	}
	for _, r := range s.Rules {
		for _, a := range r.Actions {
			if a.Kind == models.ActionSetCategory && a.Value == id {
				return true
			}
		}
	}
	return false
}

// CreateBudget attaches a budget to a category and records the back
// reference on the category.
func (e *Engine) CreateBudget(ctx context.Context, b models.Budget) (models.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if _, err := models.ParseBudgetPeriod(string(b.Period)); err != nil {
		return models.Budget{}, err
	}
	if _, err := models.ParseRolloverPolicy(string(b.Rollover)); err != nil {
		return models.Budget{}, err
	}
	if !b.Limit.IsPositive() {
		return models.Budget{}, fmt.Errorf("budget limit must be positive, got %s", b.Limit)
	}
	if _, err := e.commit(ctx, func(next *models.Snapshot) error {
		cat := next.CategoryByID(b.CategoryID)
		if cat == nil {
			return fmt.Errorf("category %s: %w", b.CategoryID, ErrNotFound)
		}
		cat.BudgetID = b.ID
		next.Budgets = append(next.Budgets, b)
		return nil
	}); err != nil {
		return models.Budget{}, err
	}
	return b, nil
}

// UpdateBudget replaces an existing budget's period, limit, and rollover.
func (e *Engine) UpdateBudget(ctx context.Context, b models.Budget) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		existing := next.BudgetByID(b.ID)
		if existing == nil {
			return fmt.Errorf("budget %s: %w", b.ID, ErrNotFound)
		}
		existing.Period = b.Period
		existing.Limit = b.Limit
		existing.Rollover = b.Rollover
		return nil
	})
	return err
}

// DeleteBudget removes a budget and clears the category back references in
// the same commit so no dangling budget reference survives.
func (e *Engine) DeleteBudget(ctx context.Context, id string) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		idx := -1
		for i := range next.Budgets {
			if next.Budgets[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("budget %s: %w", id, ErrNotFound)
		}
		next.Budgets = append(next.Budgets[:idx], next.Budgets[idx+1:]...)
		for i := range next.Categories {
			if next.Categories[i].BudgetID == id {
				next.Categories[i].BudgetID = ""
			}
		}
		return nil
	})
	return err
}

// CreateGoal adds a savings goal.
func (e *Engine) CreateGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.Name == "" {
		return models.Goal{}, fmt.Errorf("goal name is required")
	}
	if !g.Target.IsPositive() {
		return models.Goal{}, fmt.Errorf("goal target must be positive, got %s", g.Target)
	}
	if _, err := e.commit(ctx, func(next *models.Snapshot) error {
		next.Goals = append(next.Goals, g)
		return nil
	}); err != nil {
		return models.Goal{}, err
	}
	return g, nil
}

// ContributeGoal advances a goal's saved amount.
func (e *Engine) ContributeGoal(ctx context.Context, id string, amount decimal.Decimal) (models.Goal, error) {
	if !amount.IsPositive() {
		return models.Goal{}, fmt.Errorf("contribution must be positive, got %s", amount)
	}
	var out models.Goal
	if _, err := e.commit(ctx, func(next *models.Snapshot) error {
		goal := next.GoalByID(id)
		if goal == nil {
			return fmt.Errorf("goal %s: %w", id, ErrNotFound)
		}
		goal.Saved = goal.Saved.Add(amount)
		out = *goal
		return nil
	}); err != nil {
		return models.Goal{}, err
	}
	return out, nil
}

// DeleteGoal removes a goal. Goals are never referenced by other entities,
// so this is a hard delete.
func (e *Engine) DeleteGoal(ctx context.Context, id string) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		for i := range next.Goals {
			if next.Goals[i].ID == id {
				next.Goals = append(next.Goals[:i], next.Goals[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("goal %s: %w", id, ErrNotFound)
	})
	return err
}
