//go:build integration

package appointments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/db/dbtest"
	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/migrations"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/users"
)

type failingOutbox struct{}

func (failingOutbox) Insert(context.Context, pgx.Tx, outbox.Event) error {
	return errors.New("outbox unavailable")
}

type outboxRow struct {
	EventType   string
	AggregateID string
	Payload     []byte
}

func outboxRows(t *testing.T, pool *db.Pool) []outboxRow {
	t.Helper()
	rows, err := pool.Query(context.Background(),
		`SELECT event_type, aggregate_id, payload FROM outbox_events ORDER BY created_at, id`)
	require.NoError(t, err)
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[outboxRow])
	require.NoError(t, err)
	return out
}

func seedParties(t *testing.T, pool *db.Pool) (patient, doctor uuid.UUID) {
	t.Helper()
	repo := users.NewRepository(pool)
	patient, doctor = uuid.New(), uuid.New()
	require.NoError(t, repo.Create(context.Background(), users.Patient{
		Identity: users.Identity{ID: patient, FirstName: "Lena", LastName: "Park", Email: "lena@example.com"},
	}))
	require.NoError(t, repo.Create(context.Background(), users.Doctor{
		Identity:  users.Identity{ID: doctor, FirstName: "Omar", LastName: "Haddad", Email: "omar@example.com"},
		Specialty: "Dermatology",
	}))
	return patient, doctor
}

func TestService_CreateWritesRowAndOutboxTogether(t *testing.T) {
	pool := dbtest.Postgres(t, migrations.FS)
	patientID, doctorID := seedParties(t, pool)
	svc := NewService(pool, NewRepository(pool), outbox.NewRepository(pool), users.NewRepository(pool),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	nurse := auth.Caller{UserID: uuid.New(), Role: auth.RoleNurse}

	created, err := svc.Create(ctx, nurse, CreateRequest{
		PatientID: patientID, DoctorID: doctorID, AppointmentDate: time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	stored, err := svc.Get(ctx, nurse, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, stored.Status)
	assert.Equal(t, "Dermatology", stored.Doctor.Specialty)

	rows := outboxRows(t, pool)
	require.Len(t, rows, 1)
	assert.Equal(t, events.TypeAppointmentCreated, rows[0].EventType)
	assert.Equal(t, created.ID.String(), rows[0].AggregateID)
	evt, err := events.Unmarshal(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "Lena Park", evt.PatientName)

	_, err = svc.Cancel(ctx, auth.Caller{UserID: patientID, Role: auth.RolePatient}, created.ID)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, nurse, created.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	rows = outboxRows(t, pool)
	require.Len(t, rows, 2)
	assert.Equal(t, events.TypeAppointmentCancelled, rows[1].EventType)
}

func TestService_OutboxFailureRollsBackAppointment(t *testing.T) {
	pool := dbtest.Postgres(t, migrations.FS)
	patientID, doctorID := seedParties(t, pool)
	svc := NewService(pool, NewRepository(pool), failingOutbox{}, users.NewRepository(pool),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	_, err := svc.Create(ctx, auth.Caller{UserID: uuid.New(), Role: auth.RoleDoctor}, CreateRequest{
		PatientID: patientID, DoctorID: doctorID, AppointmentDate: time.Now().Add(48 * time.Hour),
	})
	require.Error(t, err)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM appointments`).Scan(&count))
	assert.Zero(t, count)
	assert.Empty(t, outboxRows(t, pool))
}

func TestRepository_ListActiveBetweenSkipsTerminal(t *testing.T) {
	pool := dbtest.Postgres(t, migrations.FS)
	patientID, doctorID := seedParties(t, pool)
	repo := NewRepository(pool)
	ctx := context.Background()
	base := time.Date(2030, 3, 10, 0, 0, 0, 0, time.UTC)

	mk := func(at time.Time, status Status) uuid.UUID {
		a := Appointment{ID: uuid.New(), PatientID: patientID, DoctorID: doctorID,
			AppointmentDate: at, Status: status, CreatedAt: time.Now().UTC()}
		require.NoError(t, pool.InTx(ctx, func(tx pgx.Tx) error { return repo.Insert(ctx, tx, a) }))
		return a.ID
	}
	late := mk(base.Add(15*time.Hour), StatusConfirmed)
	early := mk(base.Add(9*time.Hour), StatusScheduled)
	mk(base.Add(10*time.Hour), StatusCancelled)
	mk(base.Add(30*time.Hour), StatusScheduled)

	var got []uuid.UUID
	require.NoError(t, pool.InTx(ctx, func(tx pgx.Tx) error {
		list, err := repo.ListActiveBetween(ctx, tx, base, base.Add(24*time.Hour))
		for _, d := range list {
			got = append(got, d.ID)
		}
		return err
	}))
	assert.Equal(t, []uuid.UUID{early, late}, got)
}
