package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/and161185/fin-keeper/internal/agent"
	"github.com/and161185/fin-keeper/internal/client"
	"github.com/and161185/fin-keeper/internal/config"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/pending"
	"github.com/and161185/fin-keeper/internal/reconcile"
	"github.com/and161185/fin-keeper/internal/replay"
	"github.com/and161185/fin-keeper/internal/syncer"
)

// ---- login ----

type loginCmd struct{ token string }

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "store an access token" }
func (*loginCmd) Usage() string {
	return `fk login -token <jwt>

  Stores the token in the data directory. A running daemon picks it up on SIGHUP.
`
}
func (p *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.token, "token", "", "access token issued by fk-server token")
}

func (p *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if p.token == "" {
		return fail(errors.New("-token is required"))
	}
	cfg, err := config.LoadClient(*configPath, flag.CommandLine, f)
	if err != nil {
		return fail(err)
	}
	s, err := client.NewSession(p.token)
	if err != nil {
		return fail(err)
	}
	prev, prevErr := client.LoadSession(cfg.DataDir, time.Now())
	if err := client.SaveSession(cfg.DataDir, s); err != nil {
		return fail(err)
	}
	out := map[string]any{"user_id": s.UserID.String(), "expires_at": s.ExpiresAt}
	if prevErr == nil && prev.UserID != s.UserID {
		out["previous_user_id"] = prev.UserID.String()
	}
	printJSON(out)
	return subcommands.ExitSuccess
}

// ---- pending ----

type pendingCmd struct {
	collection string
	id         string
}

func (*pendingCmd) Name() string     { return "pending" }
func (*pendingCmd) Synopsis() string { return "show the local queue" }
func (*pendingCmd) Usage() string {
	return `fk pending [-c incomes|expenses [-id <item id>]]

  Works offline: reads only the local store.
`
}
func (p *pendingCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.collection, "c", "", "restrict to a collection")
	f.StringVar(&p.id, "id", "", "check one item (requires -c)")
}

func (p *pendingCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if p.id != "" && p.collection == "" {
		return fail(errors.New("-id requires -c"))
	}
	en, err := openEnv(ctx, f, false, quietLogger())
	if err != nil {
		return fail(err)
	}
	defer en.close()

	if p.collection == "" {
		printJSON(map[string]any{"count": en.queue.Len(), "operations": en.queue.List()})
		return subcommands.ExitSuccess
	}
	c, err := parseCollection(p.collection)
	if err != nil {
		return fail(err)
	}
	ops := en.queue.ByCollection()[c]
	if p.id == "" {
		printJSON(map[string]any{"count": len(ops), "operations": ops})
		return subcommands.ExitSuccess
	}
	var matched []pending.Operation
	for _, op := range ops {
		if op.ItemID() == p.id {
			matched = append(matched, op)
		}
	}
	printJSON(map[string]any{"is_pending": en.queue.IsPending(c, p.id), "operations": matched})
	return subcommands.ExitSuccess
}

// ---- sync ----

func newCoordinator(en *env, log *zap.Logger) *syncer.Coordinator {
	var c *syncer.Coordinator
	owner := replay.WithOwner(func() uuid.UUID { return c.User() })
	var rs []syncer.Replayer
	for _, r := range replay.ForCollections(model.Collections, en.queue, en.remote, log, owner) {
		rs = append(rs, r)
	}
	c = syncer.New(en.queue, en.monitor, reconcile.New(en.remote, log), rs, log,
		syncer.WithConfig(syncer.Config{
			Interval:         en.cfg.SyncInterval,
			MinInterval:      en.cfg.MinInterval,
			BreakerThreshold: en.cfg.BreakerThreshold,
		}))
	c.SetUser(en.session.UserID)
	return c
}

type syncCmd struct{}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "replay the local queue once" }
func (*syncCmd) Usage() string {
	return `fk sync

  Replays queued changes, then recomputes account balances. Prints the batch report.
`
}
func (*syncCmd) SetFlags(*flag.FlagSet) {}

func (*syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	log := quietLogger()
	en, err := openEnv(ctx, f, true, log)
	if err != nil {
		return fail(err)
	}
	defer en.close()

	rep, err := newCoordinator(en, log).Trigger(ctx, syncer.TriggerManual)
	if err != nil {
		return fail(fmt.Errorf("sync: %w", err))
	}
	printJSON(rep)
	if rep.Failed() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// ---- daemon ----

type daemonCmd struct{}

func (*daemonCmd) Name() string     { return "daemon" }
func (*daemonCmd) Synopsis() string { return "keep the queue in sync in the background" }
func (*daemonCmd) Usage() string {
	return `fk daemon [-agent-addr 127.0.0.1:7070] [-sync-interval 5m] [-min-interval 60s]

  Syncs on reconnect, on login (SIGHUP reloads the token) and periodically.
  With -agent-addr it serves /status, /pending and POST /sync.
`
}
func (*daemonCmd) SetFlags(f *flag.FlagSet) {
	f.String("agent-addr", "", "status API listen address (empty disables)")
	f.Duration("sync-interval", 0, "periodic sync interval (default 5m)")
	f.Duration("min-interval", 0, "minimum gap before a periodic sync (default 60s)")
	f.Duration("stale-age", 0, "age after which queued updates are purged (default 168h)")
	f.Int("mount-limit", 0, "queue size above which startup clears the queue (default 50)")
	f.Int("breaker-threshold", 0, "queue size above which a failed batch clears the queue (default 20)")
}

// hangups delivers SIGHUP; replaced in tests.
var hangups = func() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	return ch, func() { signal.Stop(ch) }
}

func (*daemonCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(zap.InfoLevel)
	en, err := openEnv(ctx, f, true, log)
	if err != nil {
		return fail(err)
	}
	defer en.close()

	coord := newCoordinator(en, log)

	// background goroutines use en; they must be gone before en.close
	var bg sync.WaitGroup
	defer bg.Wait()
	defer stop()

	bg.Add(1)
	go func() {
		defer bg.Done()
		en.monitor.WatchConn(ctx, en.conn)
	}()

	hup, unnotify := hangups()
	defer unnotify()
	bg.Add(1)
	go func() {
		defer bg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				s, err := client.LoadSession(en.cfg.DataDir, time.Now())
				if err != nil {
					log.Warn("daemon: reload session", zap.Error(err))
					continue
				}
				en.setSession(s)
				coord.SetUser(s.UserID)
				log.Info("daemon: session reloaded", zap.String("user", s.UserID.String()))
			}
		}
	}()

	if en.cfg.AgentAddr != "" {
		bg.Add(1)
		go func() {
			defer bg.Done()
			if err := agent.New(coord, en.queue, en.monitor, log).Serve(ctx, en.cfg.AgentAddr); err != nil {
				log.Error("daemon: agent", zap.Error(err))
				stop()
			}
		}()
	}

	log.Info("daemon: started",
		zap.String("server", en.cfg.Server),
		zap.Bool("online", en.monitor.IsOnline()),
		zap.Int("pending", en.queue.Len()))
	if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fail(err)
	}
	log.Info("daemon: stopped")
	return subcommands.ExitSuccess
}
