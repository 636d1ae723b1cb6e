package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// EntryRepo implements EntryRepository using PostgreSQL.
type EntryRepo struct{ db *DB }

// NewEntryRepo constructs an entry repository.
func NewEntryRepo(db *DB) *EntryRepo { return &EntryRepo{db: db} }

// Insert stores a new entry and returns it with the server-side timestamp.
func (r *EntryRepo) Insert(ctx context.Context, e model.Entry) (model.Entry, error) {
	const q = `
INSERT INTO entries (id, user_id, collection, account_id, amount, category, note, occurred_at)
VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8)
RETURNING updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		e.ID, e.UserID, string(e.Collection), e.AccountID, e.Amount.String(), e.Category, e.Note, e.OccurredAt,
	).Scan(&e.UpdatedAt)
	switch {
	case err == nil:
		return e, nil
	case isUniqueViolation(err):
		return model.Entry{}, errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return model.Entry{}, fmt.Errorf("unknown account %s: %w", e.AccountID, errs.ErrValidation)
	default:
		return model.Entry{}, err
	}
}

// Update replaces mutable fields; a missing row yields errs.ErrNotFound.
func (r *EntryRepo) Update(ctx context.Context, e model.Entry) (model.Entry, error) {
	const q = `
UPDATE entries
SET account_id=$4, amount=$5::numeric, category=$6, note=$7, occurred_at=$8, updated_at=now()
WHERE id=$1 AND user_id=$2 AND collection=$3`
	tag, err := r.db.Pool.Exec(ctx, q,
		e.ID, e.UserID, string(e.Collection), e.AccountID, e.Amount.String(), e.Category, e.Note, e.OccurredAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.Entry{}, fmt.Errorf("unknown account %s: %w", e.AccountID, errs.ErrValidation)
		}
		return model.Entry{}, err
	}
	if tag.RowsAffected() == 0 {
		return model.Entry{}, errs.ErrNotFound
	}
	e.UpdatedAt = time.Now().UTC()
	return e, nil
}

// Delete removes an entry; a missing row yields errs.ErrNotFound.
func (r *EntryRepo) Delete(ctx context.Context, userID uuid.UUID, c model.Collection, id uuid.UUID) error {
	const q = `DELETE FROM entries WHERE id=$1 AND user_id=$2 AND collection=$3`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID, string(c))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List returns entries of one collection ordered by occurrence, newest first.
func (r *EntryRepo) List(ctx context.Context, userID uuid.UUID, c model.Collection) ([]model.Entry, error) {
	const q = `
SELECT id, account_id, amount::text, category, note, occurred_at, updated_at
FROM entries
WHERE user_id=$1 AND collection=$2
ORDER BY occurred_at DESC, id`
	rows, err := r.db.Pool.Query(ctx, q, userID, string(c))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Entry
	for rows.Next() {
		var (
			e      = model.Entry{UserID: userID, Collection: c}
			amount string
		)
		if err = rows.Scan(&e.ID, &e.AccountID, &amount, &e.Category, &e.Note, &e.OccurredAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("entry %s amount: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SumByAccount totals amounts of one collection grouped by account.
func (r *EntryRepo) SumByAccount(ctx context.Context, userID uuid.UUID, c model.Collection) (map[uuid.UUID]decimal.Decimal, error) {
	const q = `
SELECT account_id, COALESCE(SUM(amount),0)::text
FROM entries
WHERE user_id=$1 AND collection=$2
GROUP BY account_id`
	rows, err := r.db.Pool.Query(ctx, q, userID, string(c))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]decimal.Decimal)
	for rows.Next() {
		var (
			id  uuid.UUID
			sum string
		)
		if err = rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("account %s sum: %w", id, err)
		}
		out[id] = d
	}
	return out, rows.Err()
}
