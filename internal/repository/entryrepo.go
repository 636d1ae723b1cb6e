// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/fin-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// EntryRepository provides access to income and expense entries.
type EntryRepository interface {
	// Insert stores a new entry; a reused id yields errs.ErrAlreadyExists.
	Insert(ctx context.Context, e model.Entry) (model.Entry, error)

	// Update replaces the mutable fields of an existing entry.
	Update(ctx context.Context, e model.Entry) (model.Entry, error)

	// Delete removes an entry from its collection.
	Delete(ctx context.Context, userID uuid.UUID, c model.Collection, id uuid.UUID) error

	// List returns a user's entries in one collection, newest first.
	List(ctx context.Context, userID uuid.UUID, c model.Collection) ([]model.Entry, error)

	// SumByAccount totals entry amounts of one collection per account.
	SumByAccount(ctx context.Context, userID uuid.UUID, c model.Collection) (map[uuid.UUID]decimal.Decimal, error)
}
