package main

import (
	"context"
	"encoding/json"
	"flag"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/google/subcommands"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/fin-keeper/internal/api"
	"github.com/and161185/fin-keeper/internal/kv"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/pending"
)

// queueAs writes a record the way another fk process sharing the data dir would.
func queueAs(t *testing.T, user uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	db, err := kv.OpenSQLite(ctx, os.Getenv("FK_DATA_DIR"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	defer db.Close()

	q := pending.New(ctx, pending.NewKVRepository(db), zaptest.NewLogger(t))
	q.AddAs(ctx, user, pending.OpAdd, model.Incomes, api.Entry{
		ID:         uuid.Must(uuid.NewV4()).String(),
		AccountID:  uuid.Must(uuid.NewV4()).String(),
		Amount:     "7.00",
		OccurredAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
}

func getJSON(addr, path string) (map[string]any, int, error) {
	return callJSON(http.MethodGet, addr, path)
}

func callJSON(method, addr, path string) (map[string]any, int, error) {
	req, err := http.NewRequest(method, "http://"+addr+path, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// syncUntil posts /sync, retrying while another batch holds the coordinator.
func syncUntil(t *testing.T, addr string, done func() bool) {
	t.Helper()
	waitFor(t, "sync", func() bool {
		_, code, err := callJSON(http.MethodPost, addr, "/sync")
		if err != nil {
			t.Fatalf("POST /sync: %v", err)
		}
		if code != http.StatusOK && code != http.StatusConflict {
			t.Fatalf("POST /sync: status %d", code)
		}
		return code == http.StatusOK && done()
	})
}

func pendingCount(t *testing.T, addr string) float64 {
	t.Helper()
	body, _, err := getJSON(addr, "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	n, _ := body["pending"].(float64)
	return n
}

func Test_daemon_ReloadsSessionAndServesAgent(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	entries, _ := serve(t, lis)
	setupEnv(t, lis.Addr().String())
	alice, bob := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	login(t, alice)

	hup := make(chan os.Signal, 1)
	oldHangups := hangups
	hangups = func() (<-chan os.Signal, func()) { return hup, func() {} }
	defer func() { hangups = oldHangups }()

	agentAddr := closedAddr(t)
	cmd := &daemonCmd{}
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	if err := fs.Parse([]string{"-agent-addr", agentAddr, "-sync-interval", "1h"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan subcommands.ExitStatus, 1)
	go func() { done <- cmd.Execute(ctx, fs) }()

	userIs := func(want uuid.UUID) func() bool {
		return func() bool {
			body, code, err := getJSON(agentAddr, "/status")
			return err == nil && code == http.StatusOK && body["user"] == want.String()
		}
	}
	waitFor(t, "agent as alice", userIs(alice))

	// a command queued while the daemon runs is replayed by the daemon
	queueAs(t, alice)
	syncUntil(t, agentAddr, func() bool { return entries.len() == 1 })
	if n := pendingCount(t, agentAddr); n != 0 {
		t.Fatalf("queue should be drained, pending=%v", n)
	}

	login(t, bob)
	hup <- syscall.SIGHUP
	waitFor(t, "agent as bob", userIs(bob))

	// alice's record waits for alice
	queueAs(t, alice)
	syncUntil(t, agentAddr, func() bool { return true })
	if entries.len() != 1 {
		t.Fatalf("another user's record was replayed: entries=%d", entries.len())
	}
	if n := pendingCount(t, agentAddr); n != 1 {
		t.Fatalf("alice's record should stay queued, pending=%v", n)
	}

	cancel()
	select {
	case st := <-done:
		if st != subcommands.ExitSuccess {
			t.Fatalf("daemon exit status %v", st)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("daemon did not stop")
	}
	if _, _, err := getJSON(agentAddr, "/status"); err == nil {
		t.Fatalf("agent still serving after stop")
	}
}
