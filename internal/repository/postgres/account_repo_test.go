package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const insertAccountSQL = `INSERT INTO accounts \(id, user_id, name, opening_balance, balance\) VALUES \(\$1,\$2,\$3,\$4::numeric,\$4::numeric\) RETURNING updated_at`

func TestAccountRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	a := model.Account{
		ID:             uuid.Must(uuid.NewV4()),
		UserID:         uuid.Must(uuid.NewV4()),
		Name:           "Wallet",
		OpeningBalance: decimal.RequireFromString("250.00"),
	}
	ts := time.Now().UTC()
	mock.ExpectQuery(insertAccountSQL).
		WithArgs(a.ID, a.UserID, "Wallet", "250").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(ts))

	out, err := r.Create(context.Background(), a)
	require.NoError(t, err)
	require.True(t, out.Balance.Equal(a.OpeningBalance))
	require.Equal(t, ts, out.UpdatedAt)

	mock.ExpectQuery(insertAccountSQL).
		WithArgs(a.ID, a.UserID, "Wallet", "250").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = r.Create(context.Background(), a)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestAccountRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	userID := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())
	ts := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, opening_balance::text, balance::text, updated_at FROM accounts WHERE user_id=\$1 ORDER BY name, id`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "opening_balance", "balance", "updated_at"}).
			AddRow(id, "Bank", "10", "-3.75", ts))

	out, err := r.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Bank", out[0].Name)
	require.True(t, out[0].Balance.Equal(decimal.RequireFromString("-3.75")))
	require.Equal(t, userID, out[0].UserID)
}

const setBalanceSQL = `UPDATE accounts SET balance=\$3::numeric, updated_at=now\(\) WHERE id=\$1 AND user_id=\$2`

func TestAccountRepo_SetBalances_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	userID := uuid.Must(uuid.NewV4())
	balances := map[uuid.UUID]decimal.Decimal{
		uuid.Must(uuid.NewV4()): decimal.RequireFromString("1.5"),
		uuid.Must(uuid.NewV4()): decimal.RequireFromString("-2"),
	}

	mock.ExpectBegin()
	for _, id := range sortedIDs(balances) {
		mock.ExpectExec(setBalanceSQL).
			WithArgs(id, userID, balances[id].String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, r.SetBalances(context.Background(), userID, balances))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_SetBalances_MissingAccountRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	userID := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(setBalanceSQL).
		WithArgs(id, userID, "7").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := r.SetBalances(context.Background(), userID, map[uuid.UUID]decimal.Decimal{id: decimal.NewFromInt(7)})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_SetBalances_EmptyAndBeginErr(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	userID := uuid.Must(uuid.NewV4())
	require.NoError(t, r.SetBalances(context.Background(), userID, nil))

	mock.ExpectBegin().WillReturnError(errors.New("boom"))
	err := r.SetBalances(context.Background(), userID, map[uuid.UUID]decimal.Decimal{uuid.Must(uuid.NewV4()): decimal.Zero})
	require.EqualError(t, err, "boom")
}

func TestSortedIDs_Stable(t *testing.T) {
	a := uuid.FromStringOrNil("00000000-0000-0000-0000-000000000002")
	b := uuid.FromStringOrNil("00000000-0000-0000-0000-000000000001")
	got := sortedIDs(map[uuid.UUID]decimal.Decimal{a: decimal.Zero, b: decimal.Zero})
	require.Equal(t, []uuid.UUID{b, a}, got)
}
