package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/fin-keeper/internal/api"
	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/kv"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/pending"
)

type flag bool

func (f flag) IsOnline() bool { return bool(f) }

// fakeFinance answers from memory; err, when set, fails every call.
type fakeFinance struct {
	api.FinanceClient
	err      error
	adds     int
	deletes  []string
	entries  []*api.Entry
	accounts []*api.Account
}

func (f *fakeFinance) AddEntry(_ context.Context, in *api.AddEntryRequest, _ ...grpc.CallOption) (*api.AddEntryResponse, error) {
	f.adds++
	if f.err != nil {
		return nil, f.err
	}
	e := *in.Entry
	e.UpdatedAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	return &api.AddEntryResponse{Entry: &e}, nil
}

func (f *fakeFinance) UpdateEntry(_ context.Context, in *api.UpdateEntryRequest, _ ...grpc.CallOption) (*api.UpdateEntryResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &api.UpdateEntryResponse{Entry: in.Entry}, nil
}

func (f *fakeFinance) DeleteEntry(_ context.Context, in *api.DeleteEntryRequest, _ ...grpc.CallOption) (*api.DeleteEntryResponse, error) {
	f.deletes = append(f.deletes, in.ID)
	if f.err != nil {
		return nil, f.err
	}
	return &api.DeleteEntryResponse{}, nil
}

func (f *fakeFinance) ListEntries(context.Context, *api.ListEntriesRequest, ...grpc.CallOption) (*api.ListEntriesResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &api.ListEntriesResponse{Entries: f.entries}, nil
}

func (f *fakeFinance) ListAccounts(context.Context, *api.ListAccountsRequest, ...grpc.CallOption) (*api.ListAccountsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &api.ListAccountsResponse{Accounts: f.accounts}, nil
}

func (f *fakeFinance) CreateAccount(_ context.Context, in *api.CreateAccountRequest, _ ...grpc.CallOption) (*api.CreateAccountResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := *in.Account
	a.Balance = a.OpeningBalance
	return &api.CreateAccountResponse{Account: &a}, nil
}

func newQueue(t *testing.T) *pending.Store {
	t.Helper()
	return pending.New(context.Background(), pending.NewKVRepository(kv.NewMemory()), zaptest.NewLogger(t))
}

func sampleEntry() model.Entry {
	return model.Entry{
		AccountID:  uuid.Must(uuid.NewV4()),
		Amount:     decimal.RequireFromString("12.30"),
		Category:   "food",
		OccurredAt: time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestLedger_AddOnline(t *testing.T) {
	t.Parallel()
	remote := &fakeFinance{}
	q := newQueue(t)
	l := NewLedger(remote, q, flag(true), zaptest.NewLogger(t))

	res, err := l.Add(context.Background(), model.Expenses, sampleEntry())
	require.NoError(t, err)
	require.False(t, res.Queued)
	require.NotEqual(t, uuid.Nil, res.Entry.ID)
	require.False(t, res.Entry.UpdatedAt.IsZero())
	require.Equal(t, 0, q.Len())
}

func TestLedger_QueuesWhenOffline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := &fakeFinance{}
	q := newQueue(t)
	l := NewLedger(remote, q, flag(false), zaptest.NewLogger(t))

	res, err := l.Add(ctx, model.Incomes, sampleEntry())
	require.NoError(t, err)
	require.True(t, res.Queued)
	require.True(t, q.IsPending(model.Incomes, res.Entry.ID.String()))

	upd := res.Entry
	upd.Note = "bonus"
	res2, err := l.Update(ctx, model.Incomes, upd)
	require.NoError(t, err)
	require.True(t, res2.Queued)

	res3, err := l.Delete(ctx, model.Incomes, upd.ID)
	require.NoError(t, err)
	require.True(t, res3.Queued)

	require.Equal(t, 0, remote.adds)
	ops := q.List()
	require.Len(t, ops, 3)
	require.Equal(t, pending.OpAdd, ops[0].OperationType)
	require.Equal(t, pending.OpDelete, ops[2].OperationType)
	require.Equal(t, upd.ID.String(), ops[2].ItemID())
	require.JSONEq(t, `"`+upd.ID.String()+`"`, string(ops[2].Data))
}

func TestLedger_QueuedRecordsCarryOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := uuid.Must(uuid.NewV4())
	q := newQueue(t)
	l := NewLedger(&fakeFinance{}, q, flag(false), zaptest.NewLogger(t), WithOwner(owner))

	_, err := l.Add(ctx, model.Expenses, sampleEntry())
	require.NoError(t, err)
	_, err = l.Delete(ctx, model.Expenses, uuid.Must(uuid.NewV4()))
	require.NoError(t, err)

	for _, op := range q.List() {
		require.Equal(t, owner, op.UserID, op.ID)
	}

	anon := NewLedger(&fakeFinance{}, q, flag(false), zaptest.NewLogger(t))
	_, err = anon.Add(ctx, model.Incomes, sampleEntry())
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, q.List()[2].UserID)
}

func TestLedger_QueuesOnTransportErrors(t *testing.T) {
	t.Parallel()
	for _, code := range []codes.Code{codes.Unavailable, codes.DeadlineExceeded} {
		remote := &fakeFinance{err: status.Error(code, "x")}
		q := newQueue(t)
		l := NewLedger(remote, q, flag(true), zaptest.NewLogger(t))

		res, err := l.Add(context.Background(), model.Expenses, sampleEntry())
		require.NoError(t, err, code.String())
		require.True(t, res.Queued)
		require.Equal(t, 1, remote.adds)
		require.Equal(t, 1, q.Len())
	}
}

func TestLedger_ReturnsRejections(t *testing.T) {
	t.Parallel()
	remote := &fakeFinance{err: status.Error(codes.InvalidArgument, "account does not exist")}
	q := newQueue(t)
	l := NewLedger(remote, q, flag(true), zaptest.NewLogger(t))

	_, err := l.Add(context.Background(), model.Expenses, sampleEntry())
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = l.Delete(context.Background(), model.Expenses, uuid.Must(uuid.NewV4()))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Equal(t, 0, q.Len())
}

func TestLedger_LocalValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewLedger(&fakeFinance{}, newQueue(t), flag(false), zaptest.NewLogger(t))

	e := sampleEntry()
	e.Amount = decimal.Zero
	_, err := l.Add(ctx, model.Expenses, e)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = l.Add(ctx, model.Collection("transfers"), sampleEntry())
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = l.Update(ctx, model.Expenses, sampleEntry())
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = l.Delete(ctx, model.Expenses, uuid.Nil)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestLedger_IDGenerationFailure(t *testing.T) {
	t.Parallel()
	l := NewLedger(&fakeFinance{}, newQueue(t), flag(true), nil)
	l.newID = func() (uuid.UUID, error) { return uuid.Nil, errors.New("entropy") }
	_, err := l.Add(context.Background(), model.Expenses, sampleEntry())
	require.Error(t, err)
}

func TestLedger_ListMarksPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	acc := uuid.Must(uuid.NewV4()).String()
	remote := &fakeFinance{entries: []*api.Entry{
		{ID: a.String(), AccountID: acc, Amount: "1.00"},
		{ID: b.String(), AccountID: acc, Amount: "2.00"},
		{ID: "garbage", AccountID: acc, Amount: "3.00"},
	}}
	q := newQueue(t)
	q.Add(ctx, pending.OpDelete, model.Incomes, b.String())
	l := NewLedger(remote, q, flag(true), zaptest.NewLogger(t))

	got, err := l.List(ctx, model.Incomes)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.False(t, got[0].Pending)
	require.True(t, got[1].Pending)

	off := NewLedger(remote, q, flag(false), nil)
	_, err = off.List(ctx, model.Incomes)
	require.ErrorIs(t, err, ErrOffline)
}

func TestLedger_Accounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	remote := &fakeFinance{accounts: []*api.Account{{ID: id.String(), Name: "Bank", OpeningBalance: "10.00", Balance: "42.50"}}}
	l := NewLedger(remote, newQueue(t), flag(true), nil)

	as, err := l.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, as, 1)
	require.True(t, as[0].Balance.Equal(decimal.RequireFromString("42.5")))

	a, err := l.CreateAccount(ctx, model.Account{Name: "Cash", OpeningBalance: decimal.NewFromInt(3)})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, a.ID)
	require.True(t, a.Balance.Equal(decimal.NewFromInt(3)))

	off := NewLedger(remote, newQueue(t), flag(false), nil)
	_, err = off.CreateAccount(ctx, model.Account{Name: "x"})
	require.ErrorIs(t, err, ErrOffline)
	_, err = off.Accounts(ctx)
	require.ErrorIs(t, err, ErrOffline)
}
