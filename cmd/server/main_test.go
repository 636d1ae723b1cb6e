package main

import (
	"bytes"
	"context"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/google/subcommands"
	"github.com/stretchr/testify/require"

	"github.com/and161185/fin-keeper/internal/auth"
)

func Test_issue(t *testing.T) {
	t.Parallel()

	key := []byte("k")
	now := time.Now()
	user := uuid.Must(uuid.NewV4())

	tok, id, err := issue(key, user.String(), time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, user, id)
	got, err := auth.Verify(key, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user, got)

	_, id, err = issue(key, "", time.Hour, now)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	_, _, err = issue(key, "not-a-uuid", time.Hour, now)
	require.Error(t, err)
}

func Test_tokenCmd(t *testing.T) {
	t.Setenv("FK_JWT_KEY", "secret")
	var out bytes.Buffer
	old := stdout
	stdout = &out
	defer func() { stdout = old }()

	cmd := &tokenCmd{}
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	cmd.SetFlags(fs)
	user := uuid.Must(uuid.NewV4())
	require.NoError(t, fs.Parse([]string{"-user", user.String(), "-token-ttl", "2h"}))

	require.Equal(t, subcommands.ExitSuccess, cmd.Execute(context.Background(), fs))
	require.Contains(t, out.String(), user.String())

	var tok string
	for _, line := range strings.Split(out.String(), "\n") {
		if v, ok := strings.CutPrefix(line, "token:"); ok {
			tok = strings.TrimSpace(v)
		}
	}
	id, exp, err := auth.Inspect(tok)
	require.NoError(t, err)
	require.Equal(t, user, id)
	require.WithinDuration(t, time.Now().Add(2*time.Hour), exp, time.Minute)
}

func Test_tokenCmd_MissingKey(t *testing.T) {
	t.Setenv("FK_JWT_KEY", "")
	cmd := &tokenCmd{}
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	cmd.SetFlags(fs)
	require.Equal(t, subcommands.ExitUsageError, cmd.Execute(context.Background(), fs))
}
