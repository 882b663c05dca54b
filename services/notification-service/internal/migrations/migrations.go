// Package migrations embeds the notification schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Table records the applied schema version.
const Table = "notification_schema_migrations"
