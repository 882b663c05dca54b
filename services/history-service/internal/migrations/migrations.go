// Package migrations embeds the history schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Table records the applied schema version.
const Table = "history_schema_migrations"
