package repository

import (
	"context"

	"github.com/and161185/fin-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository provides access to accounts and their derived balances.
type AccountRepository interface {
	// Create inserts a new account with balance equal to its opening balance.
	Create(ctx context.Context, a model.Account) (model.Account, error)
	// List returns all accounts owned by userID ordered by name.
	List(ctx context.Context, userID uuid.UUID) ([]model.Account, error)
	// SetBalances overwrites balances of the given accounts in one transaction.
	SetBalances(ctx context.Context, userID uuid.UUID, balances map[uuid.UUID]decimal.Decimal) error
}
