//go:build integration

package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/libs/db/dbtest"
	"github.com/md-rashed-zaman/clinicflow/services/history-service/internal/migrations"
)

func TestGuard(t *testing.T) {
	pool := dbtest.Postgres(t, migrations.FS)
	g := NewGuard(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	require.NoError(t, pool.InTx(ctx, func(tx pgx.Tx) error {
		assert.True(t, g.ShouldProcess(ctx, tx, "e1"))
		return g.MarkProcessed(ctx, tx, "e1", "AppointmentCreated")
	}))
	require.NoError(t, pool.InTx(ctx, func(tx pgx.Tx) error {
		assert.False(t, g.ShouldProcess(ctx, tx, "e1"))
		return g.MarkProcessed(ctx, tx, "e1", "AppointmentCreated")
	}))
}

func TestGuard_LookupFailureFailsOpenAndKeepsTx(t *testing.T) {
	pool := dbtest.Postgres(t, migrations.FS)
	g := NewGuard(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	err := pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `ALTER TABLE processed_events RENAME TO processed_events_old`); err != nil {
			return err
		}
		assert.True(t, g.ShouldProcess(ctx, tx, "e1"))
		_, err := tx.Exec(ctx, `SELECT 1`)
		return err
	})
	require.NoError(t, err)
}
