package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/fin-keeper/internal/model"
)

// ------- typed argument parsers -------

func parseCollection(s string) (model.Collection, error) {
	c := model.Collection(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case "income":
		c = model.Incomes
	case "expense":
		c = model.Expenses
	}
	if !c.Valid() {
		return "", fmt.Errorf("-c must be one of %v", model.Collections)
	}
	return c, nil
}

// parseAmount accepts "12.30" and "12,30"; the result must be positive.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, errors.New("-amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad amount %q", s)
	}
	if !d.IsPositive() {
		return decimal.Zero, errors.New("amount must be positive")
	}
	return d, nil
}

// parseOpening is like parseAmount but allows zero and negative balances.
func parseOpening(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad amount %q", s)
	}
	return d, nil
}

// parseDate accepts YYYY-MM-DD, RFC3339, "today" and "yesterday".
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	day := func(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC) }
	switch s {
	case "", "today":
		return day(now), nil
	case "yesterday":
		return day(now.AddDate(0, 0, -1)), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad date %q (want YYYY-MM-DD)", s)
}

func parseID(flagName, s string, required bool) (u.UUID, error) {
	if strings.TrimSpace(s) == "" {
		if required {
			return u.Nil, fmt.Errorf("-%s is required", flagName)
		}
		return u.Nil, nil
	}
	id, err := u.FromString(strings.TrimSpace(s))
	if err != nil {
		return u.Nil, fmt.Errorf("-%s: not a uuid", flagName)
	}
	return id, nil
}

// entryFlags are shared by add and edit.
type entryFlags struct {
	collection string
	id         string
	account    string
	amount     string
	category   string
	note       string
	date       string
}

func (p *entryFlags) set(f *flag.FlagSet) {
	f.StringVar(&p.collection, "c", "expenses", "collection: incomes | expenses")
	f.StringVar(&p.id, "id", "", "entry id (uuid)")
	f.StringVar(&p.account, "account", "", "account id (uuid)")
	f.StringVar(&p.amount, "amount", "", "positive amount, e.g. 12.30")
	f.StringVar(&p.category, "category", "", "category")
	f.StringVar(&p.note, "note", "", "free text")
	f.StringVar(&p.date, "date", "today", "YYYY-MM-DD")
}

func (p *entryFlags) entry(idRequired bool, now time.Time) (model.Collection, model.Entry, error) {
	c, err := parseCollection(p.collection)
	if err != nil {
		return "", model.Entry{}, err
	}
	id, err := parseID("id", p.id, idRequired)
	if err != nil {
		return "", model.Entry{}, err
	}
	acc, err := parseID("account", p.account, true)
	if err != nil {
		return "", model.Entry{}, err
	}
	amount, err := parseAmount(p.amount)
	if err != nil {
		return "", model.Entry{}, err
	}
	at, err := parseDate(p.date, now)
	if err != nil {
		return "", model.Entry{}, err
	}
	return c, model.Entry{
		ID:         id,
		Collection: c,
		AccountID:  acc,
		Amount:     amount,
		Category:   strings.TrimSpace(p.category),
		Note:       p.note,
		OccurredAt: at,
	}, nil
}
