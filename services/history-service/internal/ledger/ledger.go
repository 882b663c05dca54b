// Package ledger records which events the history projection already applied.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
)

// Guard checks and writes the ledger inside the caller's transaction so the
// ledger row commits or rolls back together with the projection write.
type Guard struct {
	logger *slog.Logger
}

func NewGuard(logger *slog.Logger) *Guard {
	return &Guard{logger: logger}
}

// ShouldProcess reports whether eventID is not yet in the ledger. A failed
// lookup is logged and treated as not processed. The lookup runs under a
// savepoint so a failure leaves tx usable.
func (g *Guard) ShouldProcess(ctx context.Context, tx pgx.Tx, eventID string) bool {
	sp, err := tx.Begin(ctx)
	if err != nil {
		g.logger.Warn("ledger lookup failed, processing event", "event_id", eventID, "err", err)
		return true
	}
	var exists bool
	err = sp.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`, eventID).Scan(&exists)
	if err != nil {
		_ = sp.Rollback(ctx)
		g.logger.Warn("ledger lookup failed, processing event", "event_id", eventID, "err", err)
		return true
	}
	if err := sp.Commit(ctx); err != nil {
		g.logger.Warn("ledger savepoint release failed", "event_id", eventID, "err", err)
	}
	return !exists
}

func (g *Guard) MarkProcessed(ctx context.Context, tx pgx.Tx, eventID, eventType string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO processed_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return fmt.Errorf("mark event %s processed: %w", eventID, err)
	}
	return nil
}

type Retention struct {
	pool *db.Pool
}

func NewRetention(pool *db.Pool) *Retention {
	return &Retention{pool: pool}
}

// Prune deletes ledger rows older than olderThan. Redelivery of a pruned
// event would be applied again, so olderThan must exceed the topic retention.
func (r *Retention) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM processed_events
		WHERE processed_at < now() - make_interval(secs => $1)
	`, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
