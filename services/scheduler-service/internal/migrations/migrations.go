// Package migrations embeds the scheduler schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Table records the applied schema version.
const Table = "scheduler_schema_migrations"
