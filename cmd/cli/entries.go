package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/and161185/fin-keeper/internal/client"
	"github.com/and161185/fin-keeper/internal/model"
)

// foreground commands log warnings only; stdout carries the result
func quietLogger() *zap.Logger { return newLogger(zap.WarnLevel) }

type entryRow struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	AccountID  string `json:"account_id,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Category   string `json:"category,omitempty"`
	Note       string `json:"note,omitempty"`
	Date       string `json:"date,omitempty"`
	Pending    bool   `json:"pending,omitempty"`
	Queued     bool   `json:"queued,omitempty"`
	OpID       string `json:"op_id,omitempty"`
}

func rowOf(e model.Entry) entryRow {
	r := entryRow{ID: e.ID.String(), Collection: string(e.Collection)}
	if !e.OccurredAt.IsZero() {
		r.AccountID = e.AccountID.String()
		r.Amount = e.Amount.StringFixed(2)
		r.Category = e.Category
		r.Note = e.Note
		r.Date = e.OccurredAt.Format(time.DateOnly)
	}
	return r
}

func resultRow(res client.Result) entryRow {
	r := rowOf(res.Entry)
	r.Queued = res.Queued
	r.OpID = res.OpID
	return r
}

// ---- add ----

type addCmd struct{ entryFlags }

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record an income or expense" }
func (*addCmd) Usage() string {
	return `fk add [-c incomes|expenses] -account <uuid> -amount <n> [-category s] [-note s] [-date YYYY-MM-DD] [-id <uuid>]

  Writes to the server when reachable, otherwise queues the entry locally.
`
}
func (p *addCmd) SetFlags(f *flag.FlagSet) { p.set(f) }

func (p *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	c, e, err := p.entry(false, time.Now())
	if err != nil {
		return fail(err)
	}
	en, err := openEnv(ctx, f, true, quietLogger())
	if err != nil {
		return fail(err)
	}
	defer en.close()

	rctx, cancel := en.rpcCtx(ctx)
	defer cancel()
	res, err := en.ledger.Add(rctx, c, e)
	if err != nil {
		return fail(err)
	}
	printJSON(resultRow(res))
	return subcommands.ExitSuccess
}

// ---- edit ----

type editCmd struct{ entryFlags }

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "replace an entry" }
func (*editCmd) Usage() string {
	return `fk edit [-c incomes|expenses] -id <uuid> -account <uuid> -amount <n> [-category s] [-note s] [-date YYYY-MM-DD]
`
}
func (p *editCmd) SetFlags(f *flag.FlagSet) { p.set(f) }

func (p *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	c, e, err := p.entry(true, time.Now())
	if err != nil {
		return fail(err)
	}
	en, err := openEnv(ctx, f, true, quietLogger())
	if err != nil {
		return fail(err)
	}
	defer en.close()

	rctx, cancel := en.rpcCtx(ctx)
	defer cancel()
	res, err := en.ledger.Update(rctx, c, e)
	if err != nil {
		return fail(err)
	}
	printJSON(resultRow(res))
	return subcommands.ExitSuccess
}

// ---- rm ----

type rmCmd struct {
	collection string
	id         string
}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete an entry" }
func (*rmCmd) Usage() string    { return "fk rm [-c incomes|expenses] -id <uuid>\n" }
func (p *rmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.collection, "c", "expenses", "collection: incomes | expenses")
	f.StringVar(&p.id, "id", "", "entry id (uuid)")
}

func (p *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	c, err := parseCollection(p.collection)
	if err != nil {
		return fail(err)
	}
	id, err := parseID("id", p.id, true)
	if err != nil {
		return fail(err)
	}
	en, err := openEnv(ctx, f, true, quietLogger())
	if err != nil {
		return fail(err)
	}
	defer en.close()

	rctx, cancel := en.rpcCtx(ctx)
	defer cancel()
	res, err := en.ledger.Delete(rctx, c, id)
	if err != nil {
		return fail(err)
	}
	printJSON(resultRow(res))
	return subcommands.ExitSuccess
}

// ---- list ----

type listCmd struct{ collection string }

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list entries, newest first" }
func (*listCmd) Usage() string {
	return `fk list [-c incomes|expenses]

  Entries with local changes still waiting for sync are marked "pending".
`
}
func (p *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.collection, "c", "expenses", "collection: incomes | expenses")
}

func (p *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	c, err := parseCollection(p.collection)
	if err != nil {
		return fail(err)
	}
	en, err := openEnv(ctx, f, true, quietLogger())
	if err != nil {
		return fail(err)
	}
	defer en.close()

	rctx, cancel := en.rpcCtx(ctx)
	defer cancel()
	items, err := en.ledger.List(rctx, c)
	if err != nil {
		return fail(err)
	}
	rows := make([]entryRow, 0, len(items))
	for _, it := range items {
		r := rowOf(it.Entry)
		r.Pending = it.Pending
		rows = append(rows, r)
	}
	printJSON(rows)
	return subcommands.ExitSuccess
}

// ---- accounts ----

type accountRow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Opening string `json:"opening_balance"`
	Balance string `json:"balance"`
}

func accountRowOf(a model.Account) accountRow {
	return accountRow{ID: a.ID.String(), Name: a.Name, Opening: a.OpeningBalance.StringFixed(2), Balance: a.Balance.StringFixed(2)}
}

type accountsCmd struct{}

func (*accountsCmd) Name() string           { return "accounts" }
func (*accountsCmd) Synopsis() string       { return "list accounts with reconciled balances" }
func (*accountsCmd) Usage() string          { return "fk accounts\n" }
func (*accountsCmd) SetFlags(*flag.FlagSet) {}

func (*accountsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	en, err := openEnv(ctx, f, true, quietLogger())
	if err != nil {
		return fail(err)
	}
	defer en.close()

	rctx, cancel := en.rpcCtx(ctx)
	defer cancel()
	as, err := en.ledger.Accounts(rctx)
	if err != nil {
		return fail(err)
	}
	rows := make([]accountRow, 0, len(as))
	for _, a := range as {
		rows = append(rows, accountRowOf(a))
	}
	printJSON(rows)
	return subcommands.ExitSuccess
}

type accountAddCmd struct {
	name    string
	opening string
}

func (*accountAddCmd) Name() string     { return "account-add" }
func (*accountAddCmd) Synopsis() string { return "open an account" }
func (*accountAddCmd) Usage() string    { return "fk account-add -name <s> [-opening <n>]\n" }
func (p *accountAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.name, "name", "", "account name")
	f.StringVar(&p.opening, "opening", "0", "opening balance")
}

func (p *accountAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	name := strings.TrimSpace(p.name)
	if name == "" {
		return fail(fmt.Errorf("-name is required"))
	}
	opening, err := parseOpening(p.opening)
	if err != nil {
		return fail(err)
	}
	en, err := openEnv(ctx, f, true, quietLogger())
	if err != nil {
		return fail(err)
	}
	defer en.close()

	rctx, cancel := en.rpcCtx(ctx)
	defer cancel()
	a, err := en.ledger.CreateAccount(rctx, model.Account{Name: name, OpeningBalance: opening})
	if err != nil {
		return fail(err)
	}
	printJSON(accountRowOf(a))
	return subcommands.ExitSuccess
}
