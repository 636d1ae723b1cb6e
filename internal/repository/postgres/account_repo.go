package postgres

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts an account whose balance starts at the opening balance.
func (r *AccountRepo) Create(ctx context.Context, a model.Account) (model.Account, error) {
	const q = `
INSERT INTO accounts (id, user_id, name, opening_balance, balance)
VALUES ($1,$2,$3,$4::numeric,$4::numeric)
RETURNING updated_at`
	if err := r.db.Pool.QueryRow(ctx, q, a.ID, a.UserID, a.Name, a.OpeningBalance.String()).Scan(&a.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return model.Account{}, errs.ErrAlreadyExists
		}
		return model.Account{}, err
	}
	a.Balance = a.OpeningBalance
	return a, nil
}

// List returns accounts ordered by name.
func (r *AccountRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Account, error) {
	const q = `
SELECT id, name, opening_balance::text, balance::text, updated_at
FROM accounts
WHERE user_id=$1
ORDER BY name, id`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var (
			a            = model.Account{UserID: userID}
			opening, bal string
		)
		if err = rows.Scan(&a.ID, &a.Name, &opening, &bal, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if a.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
			return nil, fmt.Errorf("account %s opening balance: %w", a.ID, err)
		}
		if a.Balance, err = decimal.NewFromString(bal); err != nil {
			return nil, fmt.Errorf("account %s balance: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetBalances writes every balance in one transaction; any failure rolls all of them back.
func (r *AccountRepo) SetBalances(
	ctx context.Context, userID uuid.UUID, balances map[uuid.UUID]decimal.Decimal,
) (err error) {
	if len(balances) == 0 {
		return nil
	}
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const upd = `UPDATE accounts SET balance=$3::numeric, updated_at=now() WHERE id=$1 AND user_id=$2`
	for _, id := range sortedIDs(balances) {
		tag, execErr := tx.Exec(ctx, upd, id, userID, balances[id].String())
		if execErr != nil {
			return execErr
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("account %s: %w", id, errs.ErrNotFound)
		}
	}
	return nil
}

// sortedIDs fixes the row lock order so concurrent recomputes cannot deadlock.
func sortedIDs(m map[uuid.UUID]decimal.Decimal) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return ids
}
