// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// Collection names a remote entry collection.
type Collection string

// Known collections. The set is extensible: the client registers one replayer per collection.
const (
	Incomes  Collection = "incomes"
	Expenses Collection = "expenses"
)

// Collections lists every collection the server stores.
var Collections = []Collection{Incomes, Expenses}

// Valid reports whether c is a collection the server stores.
func (c Collection) Valid() bool {
	for _, k := range Collections {
		if c == k {
			return true
		}
	}
	return false
}

// Entry is a single income or expense record.
type Entry struct {
	ID         uuid.UUID // client-generated PK
	UserID     uuid.UUID // FK -> owner
	Collection Collection
	AccountID  uuid.UUID // FK -> accounts.id
	Amount     decimal.Decimal
	Category   string
	Note       string
	OccurredAt time.Time
	UpdatedAt  time.Time // maintained by repo
}

// Account holds money; Balance is derived and recomputed from entries, never incremented.
type Account struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Name           string
	OpeningBalance decimal.Decimal
	Balance        decimal.Decimal
	UpdatedAt      time.Time
}

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}
