package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/fin-keeper/internal/api"
	"github.com/and161185/fin-keeper/internal/convert"
	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/pending"
)

// ErrOffline is returned by reads that need the remote store.
var ErrOffline = errors.New("remote store unreachable")

// Queue is the part of *pending.Store the ledger writes to.
type Queue interface {
	AddAs(ctx context.Context, user uuid.UUID, op pending.OpType, c model.Collection, data any) pending.Operation
	IsPending(c model.Collection, itemID string) bool
}

// Online reports connectivity.
type Online interface {
	IsOnline() bool
}

// Result describes where a mutation went.
type Result struct {
	Entry model.Entry
	// Queued is true when the mutation waits in the local queue.
	Queued bool
	OpID   string
}

// Listed is an entry plus whether local changes to it are still pending.
type Listed struct {
	model.Entry
	Pending bool
}

// Ledger writes through to the remote store when it is reachable and falls
// back to the pending queue otherwise.
type Ledger struct {
	remote api.FinanceClient
	queue  Queue
	online Online
	log    *zap.Logger
	newID  func() (uuid.UUID, error)
	owner  uuid.UUID
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithOwner stamps queued records with the signed-in user so they are only
// replayed under that identity.
func WithOwner(id uuid.UUID) LedgerOption { return func(l *Ledger) { l.owner = id } }

// NewLedger constructs a Ledger.
func NewLedger(remote api.FinanceClient, queue Queue, online Online, log *zap.Logger, opts ...LedgerOption) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{remote: remote, queue: queue, online: online, log: log, newID: uuid.NewV4}
	for _, o := range opts {
		o(l)
	}
	return l
}

// transient reports whether err means "try later" rather than "rejected".
func transient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func checkEntry(c model.Collection, e model.Entry) error {
	switch {
	case !c.Valid():
		return fmt.Errorf("%w: unknown collection %q", errs.ErrValidation, c)
	case e.AccountID == uuid.Nil:
		return fmt.Errorf("%w: account is required", errs.ErrValidation)
	case !e.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", errs.ErrValidation)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("%w: date is required", errs.ErrValidation)
	}
	return nil
}

func (l *Ledger) enqueue(ctx context.Context, op pending.OpType, c model.Collection, data any, e model.Entry, cause error) Result {
	rec := l.queue.AddAs(ctx, l.owner, op, c, data)
	fields := []zap.Field{zap.String("op", rec.ID)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	l.log.Info("ledger: queued", fields...)
	return Result{Entry: e, Queued: true, OpID: rec.ID}
}

// Add stores a new entry, generating its id when empty.
func (l *Ledger) Add(ctx context.Context, c model.Collection, e model.Entry) (Result, error) {
	if e.ID == uuid.Nil {
		id, err := l.newID()
		if err != nil {
			return Result{}, err
		}
		e.ID = id
	}
	e.Collection = c
	if err := checkEntry(c, e); err != nil {
		return Result{}, err
	}
	w := convert.ToWireEntry(e)
	if !l.online.IsOnline() {
		return l.enqueue(ctx, pending.OpAdd, c, w, e, nil), nil
	}
	resp, err := l.remote.AddEntry(ctx, &api.AddEntryRequest{Collection: string(c), Entry: w})
	if transient(err) {
		return l.enqueue(ctx, pending.OpAdd, c, w, e, err), nil
	}
	if err != nil {
		return Result{}, err
	}
	out, err := convert.FromWireEntry(c, resp.Entry)
	if err != nil {
		return Result{}, err
	}
	return Result{Entry: out}, nil
}

// Update replaces an existing entry.
func (l *Ledger) Update(ctx context.Context, c model.Collection, e model.Entry) (Result, error) {
	if e.ID == uuid.Nil {
		return Result{}, fmt.Errorf("%w: id is required", errs.ErrValidation)
	}
	e.Collection = c
	if err := checkEntry(c, e); err != nil {
		return Result{}, err
	}
	w := convert.ToWireEntry(e)
	if !l.online.IsOnline() {
		return l.enqueue(ctx, pending.OpUpdate, c, w, e, nil), nil
	}
	resp, err := l.remote.UpdateEntry(ctx, &api.UpdateEntryRequest{Collection: string(c), Entry: w})
	if transient(err) {
		return l.enqueue(ctx, pending.OpUpdate, c, w, e, err), nil
	}
	if err != nil {
		return Result{}, err
	}
	out, err := convert.FromWireEntry(c, resp.Entry)
	if err != nil {
		return Result{}, err
	}
	return Result{Entry: out}, nil
}

// Delete removes an entry.
func (l *Ledger) Delete(ctx context.Context, c model.Collection, id uuid.UUID) (Result, error) {
	if !c.Valid() {
		return Result{}, fmt.Errorf("%w: unknown collection %q", errs.ErrValidation, c)
	}
	if id == uuid.Nil {
		return Result{}, fmt.Errorf("%w: id is required", errs.ErrValidation)
	}
	e := model.Entry{ID: id, Collection: c}
	if !l.online.IsOnline() {
		return l.enqueue(ctx, pending.OpDelete, c, id.String(), e, nil), nil
	}
	_, err := l.remote.DeleteEntry(ctx, &api.DeleteEntryRequest{Collection: string(c), ID: id.String()})
	if transient(err) {
		return l.enqueue(ctx, pending.OpDelete, c, id.String(), e, err), nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Entry: e}, nil
}

// List returns the remote collection and flags entries with queued changes.
func (l *Ledger) List(ctx context.Context, c model.Collection) ([]Listed, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: unknown collection %q", errs.ErrValidation, c)
	}
	if !l.online.IsOnline() {
		return nil, ErrOffline
	}
	resp, err := l.remote.ListEntries(ctx, &api.ListEntriesRequest{Collection: string(c)})
	if err != nil {
		return nil, err
	}
	out := make([]Listed, 0, len(resp.Entries))
	for _, w := range resp.Entries {
		e, err := convert.FromWireEntry(c, w)
		if err != nil {
			l.log.Warn("ledger: skip malformed entry", zap.String("id", w.ID), zap.Error(err))
			continue
		}
		out = append(out, Listed{Entry: e, Pending: l.queue.IsPending(c, w.ID)})
	}
	return out, nil
}

// Accounts lists accounts with their last reconciled balances.
func (l *Ledger) Accounts(ctx context.Context) ([]model.Account, error) {
	if !l.online.IsOnline() {
		return nil, ErrOffline
	}
	resp, err := l.remote.ListAccounts(ctx, &api.ListAccountsRequest{})
	if err != nil {
		return nil, err
	}
	return fromWireAccounts(resp.Accounts)
}

// CreateAccount opens an account. Accounts are never queued.
func (l *Ledger) CreateAccount(ctx context.Context, a model.Account) (model.Account, error) {
	if a.ID == uuid.Nil {
		id, err := l.newID()
		if err != nil {
			return model.Account{}, err
		}
		a.ID = id
	}
	if !l.online.IsOnline() {
		return model.Account{}, ErrOffline
	}
	resp, err := l.remote.CreateAccount(ctx, &api.CreateAccountRequest{Account: convert.ToWireAccount(a)})
	if err != nil {
		return model.Account{}, err
	}
	out, err := fromWireAccounts([]*api.Account{resp.Account})
	if err != nil {
		return model.Account{}, err
	}
	return out[0], nil
}

func fromWireAccounts(ws []*api.Account) ([]model.Account, error) {
	out := make([]model.Account, 0, len(ws))
	for _, w := range ws {
		a, err := convert.FromWireAccount(w)
		if err != nil {
			return nil, err
		}
		// FromWireAccount drops balance, which is only meaningful server to client
		if w.Balance != "" {
			b, err := convert.ParseAmount(w.Balance)
			if err != nil {
				return nil, err
			}
			a.Balance = b
		}
		a.UpdatedAt = w.UpdatedAt
		out = append(out, a)
	}
	return out, nil
}
