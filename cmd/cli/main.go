// Command fk is the fin-keeper client: it records incomes and expenses,
// queues them while the server is unreachable and syncs them back.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/fin-keeper/internal/api"
	"github.com/and161185/fin-keeper/internal/client"
	"github.com/and161185/fin-keeper/internal/config"
	"github.com/and161185/fin-keeper/internal/connectivity"
	"github.com/and161185/fin-keeper/internal/kv"
	"github.com/and161185/fin-keeper/internal/pending"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// global flags; defaults live in internal/config so that unset flags do not
// shadow the config file or FK_ environment variables
var configPath = flag.String("config", "", "config file (YAML)")

func init() {
	flag.String("server", "", "server addr (default localhost:8443)")
	flag.String("cacert", "", "CA cert (PEM)")
	flag.Bool("insecure", false, "skip cert verify (dev)")
	flag.Bool("plaintext", false, "no TLS (local dev)")
	flag.String("data-dir", "", "local data directory")
	flag.Duration("timeout", 0, "per-command RPC timeout (default 10s)")
}

// stdout and stderr are swapped in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, "fk")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	for _, c := range commands {
		commander.Register(c.cmd, c.group)
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

type registered struct {
	cmd   subcommands.Command
	group string
}

var commands = []registered{
	{&versionCmd{}, ""},
	{&loginCmd{}, "session"},
	{&accountsCmd{}, "accounts"},
	{&accountAddCmd{}, "accounts"},
	{&addCmd{}, "entries"},
	{&editCmd{}, "entries"},
	{&rmCmd{}, "entries"},
	{&listCmd{}, "entries"},
	{&pendingCmd{}, "sync"},
	{&syncCmd{}, "sync"},
	{&daemonCmd{}, "sync"},
}

// ---- environment ----

// env is everything a command needs once configuration is resolved.
type env struct {
	cfg     config.Client
	log     *zap.Logger
	store   *kv.SQLite
	queue   *pending.Store
	session client.Session
	token   atomic.Pointer[string]
	conn    *grpc.ClientConn
	remote  api.FinanceClient
	monitor *connectivity.Monitor
	ledger  *client.Ledger
}

func newLogger(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// openEnv loads config, opens the local store and the pending queue. With
// remote set it also requires a session, dials the server and probes it.
func openEnv(ctx context.Context, f *flag.FlagSet, remote bool, log *zap.Logger) (*env, error) {
	cfg, err := config.LoadClient(*configPath, flag.CommandLine, f)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log}

	e.store, err = kv.OpenSQLite(ctx, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	e.queue = pending.New(ctx, pending.NewKVRepository(e.store), log,
		pending.WithStaleAge(cfg.StaleAge), pending.WithMountLimit(cfg.MountLimit))

	if !remote {
		return e, nil
	}
	e.session, err = client.LoadSession(cfg.DataDir, time.Now())
	if err != nil {
		e.close()
		return nil, err
	}
	e.setSession(e.session)
	e.conn, err = client.Dial(client.DialOptions{
		Addr:       cfg.Server,
		CACert:     cfg.CACert,
		SkipVerify: cfg.SkipVerify,
		Plaintext:  cfg.Plaintext,
		TokenFunc:  func() string { return *e.token.Load() },
	})
	if err != nil {
		e.close()
		return nil, err
	}
	e.remote = api.NewFinanceClient(e.conn)

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout(cfg.Timeout))
	online := connectivity.Probe(probeCtx, e.conn)
	cancel()
	e.monitor = connectivity.New(online, log)
	e.ledger = client.NewLedger(e.remote, e.queue, e.monitor, log, client.WithOwner(e.session.UserID))
	return e, nil
}

// setSession swaps the identity used by subsequent RPCs.
func (e *env) setSession(s client.Session) {
	e.session = s
	tok := s.AccessToken
	e.token.Store(&tok)
}

func probeTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > 3*time.Second {
		return 3 * time.Second
	}
	return d
}

func (e *env) close() {
	if e.conn != nil {
		_ = e.conn.Close()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
	_ = e.log.Sync()
}

// rpcCtx bounds one foreground command.
func (e *env) rpcCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.Timeout)
}

// ---- output ----

func printJSON(v any) {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// fail reports a foreground error and returns the exit status.
func fail(err error) subcommands.ExitStatus {
	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		fmt.Fprintf(stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		return subcommands.ExitFailure
	}
	if errors.Is(err, client.ErrNoSession) {
		fmt.Fprintln(stderr, "not logged in: run fk login -token <jwt>")
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stderr, err)
	return subcommands.ExitFailure
}

// ---- version ----

type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print version" }
func (*versionCmd) Usage() string          { return "fk version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	fmt.Fprintf(stdout, "fk %s (%s)\n", version, buildDate)
	return subcommands.ExitSuccess
}
