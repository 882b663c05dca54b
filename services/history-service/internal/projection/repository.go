package projection

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Upsert(ctx context.Context, tx pgx.Tx, e Entry) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO appointment_history (appointment_id, patient_id, patient_name, doctor_id, doctor_name,
		                                 status, event_type, appointment_date, last_event_id, last_event_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (appointment_id) DO UPDATE SET
			patient_id       = EXCLUDED.patient_id,
			patient_name     = EXCLUDED.patient_name,
			doctor_id        = EXCLUDED.doctor_id,
			doctor_name      = EXCLUDED.doctor_name,
			status           = EXCLUDED.status,
			event_type       = EXCLUDED.event_type,
			appointment_date = EXCLUDED.appointment_date,
			last_event_id    = EXCLUDED.last_event_id,
			last_event_at    = EXCLUDED.last_event_at,
			updated_at       = now()
		WHERE appointment_history.last_event_at <= EXCLUDED.last_event_at
	`, e.AppointmentID, e.PatientID, e.PatientName, e.DoctorID, e.DoctorName,
		e.Status, e.EventType, e.AppointmentDate, e.LastEventID, e.LastEventAt)
	if err != nil {
		return false, fmt.Errorf("upsert history %s: %w", e.AppointmentID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Find returns entries matching every set field of f, newest appointment first.
func (r *Repository) Find(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if f.PatientName != "" {
		add("patient_name ILIKE '%%' || $%d || '%%'", f.PatientName)
	}
	if f.DoctorID != nil {
		add("doctor_id = $%d", *f.DoctorID)
	}
	if f.Date != nil {
		add("appointment_date >= $%d", *f.Date)
		add("appointment_date < $%d", f.Date.AddDate(0, 0, 1))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}

	sql := `
		SELECT appointment_id, patient_id, patient_name, doctor_id, doctor_name, status, event_type,
		       appointment_date, last_event_id, last_event_at
		FROM appointment_history`
	if len(where) > 0 {
		sql += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	sql += fmt.Sprintf("\n\t\tORDER BY appointment_date DESC, appointment_id\n\t\tLIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.AppointmentID, &e.PatientID, &e.PatientName, &e.DoctorID, &e.DoctorName,
			&e.Status, &e.EventType, &e.AppointmentDate, &e.LastEventID, &e.LastEventAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
