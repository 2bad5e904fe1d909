// Package migrations embeds the SQL schema migrations applied with goose.
package migrations

import "embed"

// Files contains all SQL migration files in ascending order by filename.
//
//go:embed *.sql
var Files embed.FS
