package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, a Appointment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, string(a.Status), a.Reason, a.CreatedAt)
	return err
}

const detailsQuery = `
	SELECT a.id, a.patient_id, a.doctor_id, a.appointment_date, a.status, a.reason, a.created_at, a.updated_at,
	       p.first_name, p.last_name, p.email, p.phone,
	       d.first_name, d.last_name, d.email, d.phone, d.specialty
	FROM appointments a
	JOIN users p ON p.id = a.patient_id
	JOIN users d ON d.id = a.doctor_id
`

// GetForUpdate locks the appointment row for the rest of tx.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Details, error) {
	rows, err := tx.Query(ctx, detailsQuery+` WHERE a.id = $1 FOR UPDATE OF a`, id)
	if err != nil {
		return Details{}, err
	}
	list, err := scanDetails(rows)
	if err != nil {
		return Details{}, err
	}
	if len(list) == 0 {
		return Details{}, ErrNotFound
	}
	return list[0], nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Details, error) {
	rows, err := r.pool.Query(ctx, detailsQuery+` WHERE a.id = $1`, id)
	if err != nil {
		return Details{}, err
	}
	list, err := scanDetails(rows)
	if err != nil {
		return Details{}, err
	}
	if len(list) == 0 {
		return Details{}, ErrNotFound
	}
	return list[0], nil
}

func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveBetween returns appointments in [from, to) that are not in a
// terminal status.
func (r *Repository) ListActiveBetween(ctx context.Context, tx pgx.Tx, from, to time.Time) ([]Details, error) {
	rows, err := tx.Query(ctx, detailsQuery+`
		WHERE a.appointment_date >= $1 AND a.appointment_date < $2
		  AND a.status IN ('SCHEDULED', 'CONFIRMED')
		ORDER BY a.appointment_date, a.id
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanDetails(rows)
}

func scanDetails(rows pgx.Rows) ([]Details, error) {
	defer rows.Close()
	var out []Details
	for rows.Next() {
		var d Details
		var status string
		if err := rows.Scan(&d.ID, &d.PatientID, &d.DoctorID, &d.AppointmentDate, &status, &d.Reason, &d.CreatedAt, &d.UpdatedAt,
			&d.Patient.FirstName, &d.Patient.LastName, &d.Patient.Email, &d.Patient.Phone,
			&d.Doctor.FirstName, &d.Doctor.LastName, &d.Doctor.Email, &d.Doctor.Phone, &d.Doctor.Specialty); err != nil {
			return nil, err
		}
		d.Status = Status(status)
		d.Patient.ID = d.PatientID
		d.Doctor.ID = d.DoctorID
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

