// Command fk-server stores incomes, expenses and accounts behind a gRPC API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/google/subcommands"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/fin-keeper/internal/api"
	"github.com/and161185/fin-keeper/internal/auth"
	"github.com/and161185/fin-keeper/internal/config"
	"github.com/and161185/fin-keeper/internal/migrate"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/repository/postgres"
	grpcserver "github.com/and161185/fin-keeper/internal/server/grpc"
	"github.com/and161185/fin-keeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var configPath = flag.String("config", "", "config file (YAML)")

var stdout io.Writer = os.Stdout

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, "fk-server")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&serveCmd{}, "")
	commander.Register(&tokenCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// keyFlag registers -jwt-key; zero defaults keep config and FK_ env in charge.
func keyFlag(f *flag.FlagSet) {
	f.String("jwt-key", "", "HS256 signing key (required)")
}

// ---- serve ----

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run migrations and serve gRPC" }
func (*serveCmd) Usage() string {
	return `fk-server serve [-addr :8443] [-dsn postgres://...] -jwt-key <k> [-tls-cert f -tls-key f | -plaintext] [-dev]
`
}

func (*serveCmd) SetFlags(f *flag.FlagSet) {
	keyFlag(f)
	f.String("addr", "", "listen address (default :8443)")
	f.String("dsn", "", "PostgreSQL DSN")
	f.String("tls-cert", "", "TLS certificate (PEM)")
	f.String("tls-key", "", "TLS private key (PEM)")
	f.Bool("plaintext", false, "serve without TLS (local dev)")
	f.Bool("dev", false, "enable server reflection (dev only)")
}

func (*serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadServer(*configPath, flag.CommandLine, f)
	if err != nil {
		logger.Error("config", zap.Error(err))
		return subcommands.ExitUsageError
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)
	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		return subcommands.ExitFailure
	}
	logger.Info("shutdown complete")
	return subcommands.ExitSuccess
}

func serve(ctx context.Context, cfg config.Server, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary([]byte(cfg.JWTKey)),
		),
	}
	if !cfg.Plaintext {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("pgxpool: %w", err)
	}
	defer db.Close()

	entryRepo := postgres.NewEntryRepo(db)
	accountRepo := postgres.NewAccountRepo(db)
	app := grpcserver.New(
		service.NewEntryService(entryRepo),
		service.NewAccountService(accountRepo, entryRepo),
	)

	s := grpc.NewServer(opts...)
	api.RegisterFinanceServer(s, app)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", !cfg.Plaintext))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// ---- token ----

type tokenCmd struct {
	user string
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an access token" }
func (*tokenCmd) Usage() string {
	return `fk-server token -jwt-key <k> [-user <uuid>] [-token-ttl 720h]

  Prints a signed token for fk login. A new user id is generated when -user is empty.
`
}

func (p *tokenCmd) SetFlags(f *flag.FlagSet) {
	keyFlag(f)
	f.StringVar(&p.user, "user", "", "user id (uuid)")
	f.Duration("token-ttl", 0, "token lifetime (default 720h)")
}

func (p *tokenCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := config.LoadServer(*configPath, flag.CommandLine, f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	tok, user, err := issue([]byte(cfg.JWTKey), p.user, cfg.TokenTTL, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "user:    %s\nexpires: %s\ntoken:   %s\n", user, tok.ExpiresAt.Format(time.RFC3339), tok.AccessToken)
	return subcommands.ExitSuccess
}

func issue(key []byte, user string, ttl time.Duration, now time.Time) (model.Tokens, uuid.UUID, error) {
	var (
		id  uuid.UUID
		err error
	)
	if user == "" {
		id, err = uuid.NewV4()
	} else {
		id, err = uuid.FromString(user)
	}
	if err != nil {
		return model.Tokens{}, uuid.Nil, fmt.Errorf("user id: %w", err)
	}
	tok, err := auth.Issue(key, id, ttl, now)
	if err != nil {
		return model.Tokens{}, uuid.Nil, err
	}
	return tok, id, nil
}
