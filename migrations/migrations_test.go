package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFS_ContainsGooseMigrations(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		b, err := fs.ReadFile(FS, f)
		require.NoError(t, err)
		body := string(b)
		require.Truef(t, strings.Contains(body, "-- +goose Up"), "%s: missing Up section", f)
		require.Truef(t, strings.Contains(body, "-- +goose Down"), "%s: missing Down section", f)
	}
}

func TestFS_EntriesReferenceOwnAccounts(t *testing.T) {
	b, err := fs.ReadFile(FS, "00002_account_owner.sql")
	require.NoError(t, err)
	up, _, ok := strings.Cut(string(b), "-- +goose Down")
	require.True(t, ok)
	require.Contains(t, up, "UNIQUE (id, user_id)")
	require.Contains(t, up, "FOREIGN KEY (account_id, user_id) REFERENCES accounts (id, user_id)")
}
