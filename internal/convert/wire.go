// Package convert maps domain entities to and from API wire messages.
package convert

import (
	"fmt"

	"github.com/and161185/fin-keeper/internal/api"
	"github.com/and161185/fin-keeper/internal/model"
	u "github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// --- helpers ---

func parseID(field, s string) (u.UUID, error) {
	var id u.UUID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return u.Nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return id, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

// ParseAmount parses a decimal amount string as sent on the wire.
func ParseAmount(s string) (decimal.Decimal, error) { return parseAmount("amount", s) }

// --- Entry ---

// FromWireEntry converts a wire entry of collection c to the domain struct.
func FromWireEntry(c model.Collection, in *api.Entry) (model.Entry, error) {
	if in == nil {
		return model.Entry{}, fmt.Errorf("nil entry")
	}
	id, err := parseID("id", in.ID)
	if err != nil {
		return model.Entry{}, err
	}
	acc, err := parseID("account_id", in.AccountID)
	if err != nil {
		return model.Entry{}, err
	}
	amount, err := parseAmount("amount", in.Amount)
	if err != nil {
		return model.Entry{}, err
	}
	return model.Entry{
		ID:         id,
		Collection: c,
		AccountID:  acc,
		Amount:     amount,
		Category:   in.Category,
		Note:       in.Note,
		OccurredAt: in.OccurredAt,
		UpdatedAt:  in.UpdatedAt,
	}, nil
}

// ToWireEntry converts a domain entry to its wire form.
func ToWireEntry(e model.Entry) *api.Entry {
	return &api.Entry{
		ID:         e.ID.String(),
		AccountID:  e.AccountID.String(),
		Amount:     e.Amount.StringFixed(2),
		Category:   e.Category,
		Note:       e.Note,
		OccurredAt: e.OccurredAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// ToWireEntries converts a slice of entries.
func ToWireEntries(es []model.Entry) []*api.Entry {
	out := make([]*api.Entry, 0, len(es))
	for _, e := range es {
		out = append(out, ToWireEntry(e))
	}
	return out
}

// --- Account ---

// FromWireAccount converts a wire account to the domain struct. Balance is ignored: it is derived server side.
func FromWireAccount(in *api.Account) (model.Account, error) {
	if in == nil {
		return model.Account{}, fmt.Errorf("nil account")
	}
	id, err := parseID("id", in.ID)
	if err != nil {
		return model.Account{}, err
	}
	opening, err := parseAmount("opening_balance", in.OpeningBalance)
	if err != nil {
		return model.Account{}, err
	}
	return model.Account{ID: id, Name: in.Name, OpeningBalance: opening}, nil
}

// ToWireAccount converts a domain account to its wire form.
func ToWireAccount(a model.Account) *api.Account {
	return &api.Account{
		ID:             a.ID.String(),
		Name:           a.Name,
		OpeningBalance: a.OpeningBalance.StringFixed(2),
		Balance:        a.Balance.StringFixed(2),
		UpdatedAt:      a.UpdatedAt,
	}
}

// ToWireAccounts converts a slice of accounts.
func ToWireAccounts(as []model.Account) []*api.Account {
	out := make([]*api.Account, 0, len(as))
	for _, a := range as {
		out = append(out, ToWireAccount(a))
	}
	return out
}
