// Package service contains application services for entries and accounts.
package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/repository"
)

// EntryService defines operations over income and expense entries.
type EntryService interface {
	// Add stores a new entry in its collection.
	Add(ctx context.Context, userID uuid.UUID, e model.Entry) (model.Entry, error)
	// Update replaces an existing entry.
	Update(ctx context.Context, userID uuid.UUID, e model.Entry) (model.Entry, error)
	// Delete removes an entry from a collection.
	Delete(ctx context.Context, userID uuid.UUID, c model.Collection, id uuid.UUID) error
	// List returns a collection's entries, newest first.
	List(ctx context.Context, userID uuid.UUID, c model.Collection) ([]model.Entry, error)
}

type EntryServiceImpl struct {
	repo repository.EntryRepository
}

// NewEntryService constructs EntryService.
func NewEntryService(repo repository.EntryRepository) *EntryServiceImpl {
	return &EntryServiceImpl{repo: repo}
}

// validateEntry rejects entries that would break the schema constraints:
// - non-nil user, entry and account ids
// - known collection
// - strictly positive amount
// - non-zero occurrence time
func validateEntry(userID uuid.UUID, e model.Entry) error {
	switch {
	case userID == uuid.Nil:
		return fmt.Errorf("%w: empty userID", errs.ErrValidation)
	case e.ID == uuid.Nil:
		return fmt.Errorf("%w: empty entry id", errs.ErrValidation)
	case !e.Collection.Valid():
		return fmt.Errorf("%w: unknown collection %q", errs.ErrValidation, e.Collection)
	case e.AccountID == uuid.Nil:
		return fmt.Errorf("%w: empty account id", errs.ErrValidation)
	case !e.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", errs.ErrValidation)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("%w: empty occurred_at", errs.ErrValidation)
	}
	return nil
}

// Add validates the entry and inserts it for userID.
func (s *EntryServiceImpl) Add(ctx context.Context, userID uuid.UUID, e model.Entry) (model.Entry, error) {
	if err := validateEntry(userID, e); err != nil {
		return model.Entry{}, err
	}
	e.UserID = userID
	return s.repo.Insert(ctx, e)
}

// Update validates the entry and replaces the stored one.
func (s *EntryServiceImpl) Update(ctx context.Context, userID uuid.UUID, e model.Entry) (model.Entry, error) {
	if err := validateEntry(userID, e); err != nil {
		return model.Entry{}, err
	}
	e.UserID = userID
	return s.repo.Update(ctx, e)
}

// Delete removes an entry by id.
func (s *EntryServiceImpl) Delete(ctx context.Context, userID uuid.UUID, c model.Collection, id uuid.UUID) error {
	if userID == uuid.Nil || id == uuid.Nil {
		return fmt.Errorf("%w: empty userID/id", errs.ErrValidation)
	}
	if !c.Valid() {
		return fmt.Errorf("%w: unknown collection %q", errs.ErrValidation, c)
	}
	return s.repo.Delete(ctx, userID, c, id)
}

// List returns all entries of a collection.
func (s *EntryServiceImpl) List(ctx context.Context, userID uuid.UUID, c model.Collection) ([]model.Entry, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	if !c.Valid() {
		return nil, fmt.Errorf("%w: unknown collection %q", errs.ErrValidation, c)
	}
	return s.repo.List(ctx, userID, c)
}
