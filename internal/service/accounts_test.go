package service

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/repository"
)

type fakeAccountRepo struct {
	created []model.Account
	list    []model.Account
	listErr error

	setCalls int
	setIn    map[uuid.UUID]decimal.Decimal
	setErr   error
}

var _ repository.AccountRepository = (*fakeAccountRepo)(nil)

func (f *fakeAccountRepo) Create(_ context.Context, a model.Account) (model.Account, error) {
	f.created = append(f.created, a)
	a.Balance = a.OpeningBalance
	return a, nil
}
func (f *fakeAccountRepo) List(context.Context, uuid.UUID) ([]model.Account, error) {
	return append([]model.Account(nil), f.list...), f.listErr
}
func (f *fakeAccountRepo) SetBalances(_ context.Context, _ uuid.UUID, b map[uuid.UUID]decimal.Decimal) error {
	f.setCalls++
	f.setIn = b
	return f.setErr
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAccountService_Create_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &fakeAccountRepo{}
	s := NewAccountService(repo, &fakeEntryRepo{})
	user := uuid.Must(uuid.NewV4())

	if _, err := s.Create(ctx, user, model.Account{ID: uuid.Must(uuid.NewV4()), Name: "   "}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation on blank name, got %v", err)
	}
	if _, err := s.Create(ctx, user, model.Account{Name: "Cash"}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation on empty id, got %v", err)
	}
	out, err := s.Create(ctx, user, model.Account{ID: uuid.Must(uuid.NewV4()), Name: " Cash ", OpeningBalance: d("5")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.Name != "Cash" || out.UserID != user || !out.Balance.Equal(d("5")) {
		t.Fatalf("unexpected account: %+v", out)
	}
}

func TestAccountService_RecomputeBalances(t *testing.T) {
	t.Parallel()
	user := uuid.Must(uuid.NewV4())
	bank := uuid.Must(uuid.NewV4())
	cash := uuid.Must(uuid.NewV4())

	accounts := &fakeAccountRepo{list: []model.Account{
		{ID: bank, Name: "Bank", OpeningBalance: d("100"), Balance: d("999")}, // drifted balance
		{ID: cash, Name: "Cash", OpeningBalance: d("0")},
	}}
	entries := &fakeEntryRepo{sums: map[model.Collection]map[uuid.UUID]decimal.Decimal{
		model.Incomes:  {bank: d("50.25")},
		model.Expenses: {bank: d("20"), cash: d("7.5")},
	}}
	s := NewAccountService(accounts, entries)

	out, err := s.RecomputeBalances(context.Background(), user)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !out[0].Balance.Equal(d("130.25")) {
		t.Fatalf("bank balance=%s want 130.25", out[0].Balance)
	}
	if !out[1].Balance.Equal(d("-7.5")) {
		t.Fatalf("cash balance=%s want -7.5", out[1].Balance)
	}
	if accounts.setCalls != 1 || !accounts.setIn[bank].Equal(d("130.25")) {
		t.Fatalf("balances not persisted once: calls=%d in=%v", accounts.setCalls, accounts.setIn)
	}

	// same remote state -> same result
	again, err := s.RecomputeBalances(context.Background(), user)
	if err != nil {
		t.Fatalf("recompute again: %v", err)
	}
	for i := range out {
		if !again[i].Balance.Equal(out[i].Balance) {
			t.Fatalf("not idempotent: %s vs %s", again[i].Balance, out[i].Balance)
		}
	}
}

func TestAccountService_RecomputeBalances_NoAccounts(t *testing.T) {
	t.Parallel()
	accounts := &fakeAccountRepo{}
	s := NewAccountService(accounts, &fakeEntryRepo{sumErr: errors.New("must not be called")})

	out, err := s.RecomputeBalances(context.Background(), uuid.Must(uuid.NewV4()))
	if err != nil || len(out) != 0 {
		t.Fatalf("out=%v err=%v", out, err)
	}
	if accounts.setCalls != 0 {
		t.Fatalf("nothing to write")
	}
}

func TestAccountService_RecomputeBalances_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := uuid.Must(uuid.NewV4())
	list := []model.Account{{ID: uuid.Must(uuid.NewV4()), Name: "A"}}

	s := NewAccountService(&fakeAccountRepo{list: list}, &fakeEntryRepo{sumErr: errors.New("db down")})
	if _, err := s.RecomputeBalances(ctx, user); err == nil {
		t.Fatalf("want sum error")
	}

	s = NewAccountService(&fakeAccountRepo{list: list, setErr: errors.New("tx")}, &fakeEntryRepo{})
	if _, err := s.RecomputeBalances(ctx, user); err == nil {
		t.Fatalf("want set error")
	}

	if _, err := s.RecomputeBalances(ctx, uuid.Nil); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation on empty user, got %v", err)
	}
}

func TestBalance(t *testing.T) {
	t.Parallel()
	got := Balance(d("10.10"), d("0.20"), d("5"))
	if !got.Equal(d("5.30")) {
		t.Fatalf("balance=%s", got)
	}
}
