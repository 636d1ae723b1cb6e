package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/repository"
)

// AccountService manages accounts and recomputes their derived balances.
type AccountService interface {
	// Create opens a new account.
	Create(ctx context.Context, userID uuid.UUID, a model.Account) (model.Account, error)
	// List returns the user's accounts.
	List(ctx context.Context, userID uuid.UUID) ([]model.Account, error)
	// RecomputeBalances rebuilds every balance of the user from stored entries.
	RecomputeBalances(ctx context.Context, userID uuid.UUID) ([]model.Account, error)
}

type AccountServiceImpl struct {
	accounts repository.AccountRepository
	entries  repository.EntryRepository
}

// NewAccountService constructs AccountService.
func NewAccountService(accounts repository.AccountRepository, entries repository.EntryRepository) *AccountServiceImpl {
	return &AccountServiceImpl{accounts: accounts, entries: entries}
}

// Create validates and stores a new account.
func (s *AccountServiceImpl) Create(ctx context.Context, userID uuid.UUID, a model.Account) (model.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	switch {
	case userID == uuid.Nil:
		return model.Account{}, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	case a.ID == uuid.Nil:
		return model.Account{}, fmt.Errorf("%w: empty account id", errs.ErrValidation)
	case a.Name == "":
		return model.Account{}, fmt.Errorf("%w: empty account name", errs.ErrValidation)
	}
	a.UserID = userID
	return s.accounts.Create(ctx, a)
}

// List returns accounts ordered by name.
func (s *AccountServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Account, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	return s.accounts.List(ctx, userID)
}

// RecomputeBalances sets balance = opening + Σincomes − Σexpenses for every account.
// Balances are derived from the stored entries only, so repeated calls converge.
func (s *AccountServiceImpl) RecomputeBalances(ctx context.Context, userID uuid.UUID) ([]model.Account, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	accounts, err := s.accounts.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return accounts, nil
	}
	incomes, err := s.entries.SumByAccount(ctx, userID, model.Incomes)
	if err != nil {
		return nil, fmt.Errorf("sum incomes: %w", err)
	}
	expenses, err := s.entries.SumByAccount(ctx, userID, model.Expenses)
	if err != nil {
		return nil, fmt.Errorf("sum expenses: %w", err)
	}

	balances := make(map[uuid.UUID]decimal.Decimal, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		a.Balance = Balance(a.OpeningBalance, incomes[a.ID], expenses[a.ID])
		balances[a.ID] = a.Balance
	}
	if err := s.accounts.SetBalances(ctx, userID, balances); err != nil {
		return nil, fmt.Errorf("set balances: %w", err)
	}
	return accounts, nil
}

// Balance is the derived account balance.
func Balance(opening, incomes, expenses decimal.Decimal) decimal.Decimal {
	return opening.Add(incomes).Sub(expenses)
}
