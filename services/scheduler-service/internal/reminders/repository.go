package reminders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ledger records which appointments already had a reminder queued for a day.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Claim reports whether this call recorded the (appointment, day) pair; false
// means an earlier run already queued it.
func (l *Ledger) Claim(ctx context.Context, tx pgx.Tx, appointmentID uuid.UUID, day time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO appointment_reminders (appointment_id, reminder_day)
		VALUES ($1, $2)
		ON CONFLICT (appointment_id, reminder_day) DO NOTHING
	`, appointmentID, day.Format(time.DateOnly))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
