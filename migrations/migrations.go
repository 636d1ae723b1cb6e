// Package migrations embeds the PostgreSQL schema applied by goose on server start.
package migrations

import "embed"

// FS holds the SQL migration files.
//
//go:embed *.sql
var FS embed.FS
