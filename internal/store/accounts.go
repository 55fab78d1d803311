package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/moneta-app/engine/internal/models"
)

// CreateAccount adds a new account. ID is minted when empty; the account
// starts active with a zero balance.
func (e *Engine) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Name == "" {
		return models.Account{}, fmt.Errorf("account name is required")
	}
	if _, err := models.ParseAccountType(string(a.Type)); err != nil {
		return models.Account{}, err
	}
	if !models.ValidCurrency(a.Currency) {
		return models.Account{}, fmt.Errorf("unknown currency %q", a.Currency)
	}
	a.Active = true

	if _, err := e.commit(ctx, func(next *models.Snapshot) error {
		next.Accounts = append(next.Accounts, a)
		return nil
	}); err != nil {
		return models.Account{}, err
	}
	return a, nil
}

// RenameAccount changes an account's display name.
func (e *Engine) RenameAccount(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("account name is required")
	}
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		acct := next.AccountByID(id)
		if acct == nil {
			return fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		acct.Name = name
		return nil
	})
	return err
}

// DeactivateAccount stops new writes to an account. History is kept;
// existing transactions keep referencing it.
func (e *Engine) DeactivateAccount(ctx context.Context, id string) error {
	_, err := e.commit(ctx, func(next *models.Snapshot) error {
		acct := next.AccountByID(id)
		if acct == nil {
			return fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		acct.Active = false
		return nil
	})
	return err
}

// Account returns a copy of the account, or ErrNotFound.
func (e *Engine) Account(id string) (models.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct := e.snap.AccountByID(id)
	if acct == nil {
		return models.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return *acct, nil
}

// Accounts returns a copy of all accounts.
func (e *Engine) Accounts() []models.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Account, len(e.snap.Accounts))
	copy(out, e.snap.Accounts)
	return out
}
