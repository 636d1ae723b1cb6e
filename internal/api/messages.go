package api

import "time"

// Entry is the wire form of an income or expense. Amounts are decimal strings.
type Entry struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Amount     string    `json:"amount"`
	Category   string    `json:"category,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Account is the wire form of an account.
type Account struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	OpeningBalance string    `json:"opening_balance"`
	Balance        string    `json:"balance,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

type AddEntryRequest struct {
	Collection string `json:"collection"`
	Entry      *Entry `json:"entry"`
}

type AddEntryResponse struct {
	Entry *Entry `json:"entry"`
}

type UpdateEntryRequest struct {
	Collection string `json:"collection"`
	Entry      *Entry `json:"entry"`
}

type UpdateEntryResponse struct {
	Entry *Entry `json:"entry"`
}

type DeleteEntryRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type DeleteEntryResponse struct{}

type ListEntriesRequest struct {
	Collection string `json:"collection"`
}

type ListEntriesResponse struct {
	Entries []*Entry `json:"entries"`
}

type CreateAccountRequest struct {
	Account *Account `json:"account"`
}

type CreateAccountResponse struct {
	Account *Account `json:"account"`
}

type ListAccountsRequest struct{}

type ListAccountsResponse struct {
	Accounts []*Account `json:"accounts"`
}

type RecomputeBalancesRequest struct{}

type RecomputeBalancesResponse struct {
	Accounts []*Account `json:"accounts"`
}
