// Package storage persists notification records in Postgres.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/notifications"
)

type Repository struct {
	pool *db.Pool
}

var _ notifications.Store = (*Repository)(nil)

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Find(ctx context.Context, key notifications.Key) (notifications.Record, bool, error) {
	var (
		rec     notifications.Record
		typ, ch string
		status  string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, patient_id, notification_type, channel, status, attempts,
		       scheduled_for, sent_at, created_at, last_error, event_id
		FROM notifications
		WHERE appointment_id = $1 AND notification_type = $2 AND channel = $3
	`, key.AppointmentID, string(key.Type), string(key.Channel)).Scan(
		&rec.ID, &rec.AppointmentID, &rec.PatientID, &typ, &ch, &status, &rec.Attempts,
		&rec.ScheduledFor, &rec.SentAt, &rec.CreatedAt, &rec.LastError, &rec.EventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return notifications.Record{}, false, nil
	}
	if err != nil {
		return notifications.Record{}, false, err
	}
	rec.Type = notifications.Type(typ)
	rec.Channel = notifications.Channel(ch)
	rec.Status = notifications.Status(status)
	return rec, true, nil
}

func (r *Repository) Create(ctx context.Context, rec notifications.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, appointment_id, patient_id, notification_type, channel, status, attempts, scheduled_for, event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.AppointmentID, rec.PatientID, string(rec.Type), string(rec.Channel),
		string(rec.Status), rec.Attempts, rec.ScheduledFor, rec.EventID)
	if db.IsUniqueViolation(err) {
		return notifications.ErrDuplicate
	}
	return err
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return r.exec(ctx, `
		UPDATE notifications
		SET status = 'SENT', sent_at = $2, last_error = NULL, updated_at = now()
		WHERE id = $1
	`, id, sentAt)
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return r.exec(ctx, `
		UPDATE notifications
		SET status = 'FAILED', attempts = $2, last_error = $3, updated_at = now()
		WHERE id = $1
	`, id, attempts, lastError)
}

func (r *Repository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %v not found", args[0])
	}
	return nil
}
