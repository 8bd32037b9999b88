// Package migrations embeds the SQL migrations for the local state store.
package migrations

import "embed"

// FS holds the .sql migration files.
//
//go:embed *.sql
var FS embed.FS
