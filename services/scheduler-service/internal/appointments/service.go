package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/users"
)

type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, a Appointment) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Details, error)
	Get(ctx context.Context, id uuid.UUID) (Details, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status, at time.Time) error
}

// OutboxWriter stages events in the caller's transaction.
type OutboxWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Directory interface {
	Doctor(ctx context.Context, id uuid.UUID) (users.Doctor, error)
	Patient(ctx context.Context, id uuid.UUID) (users.Patient, error)
}

// Service changes appointment state. Every change and the event describing it
// commit in one transaction.
type Service struct {
	tx        db.TxRunner
	store     Store
	outbox    OutboxWriter
	directory Directory
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(tx db.TxRunner, store Store, ob OutboxWriter, directory Directory, logger *slog.Logger) *Service {
	return &Service{
		tx:        tx,
		store:     store,
		outbox:    ob,
		directory: directory,
		logger:    logger,
		now:       time.Now,
	}
}

type CreateRequest struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	AppointmentDate time.Time
	Reason          string
}

func (s *Service) Create(ctx context.Context, caller auth.Caller, req CreateRequest) (Details, error) {
	if caller.Role == auth.RolePatient && caller.UserID != req.PatientID {
		return Details{}, fmt.Errorf("%w: patients book only for themselves", ErrForbidden)
	}
	now := s.now().UTC()
	if req.PatientID == uuid.Nil || req.DoctorID == uuid.Nil {
		return Details{}, fmt.Errorf("%w: patientId and doctorId are required", ErrInvalid)
	}
	if !req.AppointmentDate.After(now) {
		return Details{}, fmt.Errorf("%w: appointmentDate must be in the future", ErrInvalid)
	}

	patient, err := s.directory.Patient(ctx, req.PatientID)
	if err != nil {
		return Details{}, partyError("patient", err)
	}
	doctor, err := s.directory.Doctor(ctx, req.DoctorID)
	if err != nil {
		return Details{}, partyError("doctor", err)
	}

	d := Details{
		Appointment: Appointment{
			ID:              uuid.New(),
			PatientID:       patient.ID,
			DoctorID:        doctor.ID,
			AppointmentDate: req.AppointmentDate.UTC(),
			Status:          StatusScheduled,
			Reason:          strings.TrimSpace(req.Reason),
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		Patient: patient,
		Doctor:  doctor,
	}

	err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.store.Insert(ctx, tx, d.Appointment); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return s.emit(ctx, tx, d, events.TypeAppointmentCreated, now)
	})
	if err != nil {
		return Details{}, err
	}
	s.logger.Info("appointment created", "appointment_id", d.ID, "patient_id", d.PatientID, "doctor_id", d.DoctorID)
	return d, nil
}

// UpdateStatus is restricted to clinic staff.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Caller, id uuid.UUID, status Status) (Details, error) {
	if !caller.Role.IsStaff() {
		return Details{}, fmt.Errorf("%w: only doctors and nurses change status", ErrForbidden)
	}
	eventType := events.TypeAppointmentStatusChanged
	if status == StatusCancelled {
		eventType = events.TypeAppointmentCancelled
	}
	return s.transition(ctx, id, status, eventType, nil)
}

// Cancel is allowed to staff and to the patient who owns the appointment.
func (s *Service) Cancel(ctx context.Context, caller auth.Caller, id uuid.UUID) (Details, error) {
	authorize := func(d Details) error {
		if caller.Role == auth.RolePatient && caller.UserID != d.PatientID {
			return fmt.Errorf("%w: not your appointment", ErrForbidden)
		}
		return nil
	}
	return s.transition(ctx, id, StatusCancelled, events.TypeAppointmentCancelled, authorize)
}

func (s *Service) Get(ctx context.Context, caller auth.Caller, id uuid.UUID) (Details, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return Details{}, err
	}
	if caller.Role == auth.RolePatient && caller.UserID != d.PatientID {
		// Not revealing existence to other patients.
		return Details{}, ErrNotFound
	}
	return d, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, status Status, eventType string, authorize func(Details) error) (Details, error) {
	var out Details
	err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		d, err := s.store.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(d); err != nil {
				return err
			}
		}
		if d.Status.Terminal() {
			return fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, d.Status)
		}
		if d.Status == status {
			return fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, status)
		}

		now := s.now().UTC()
		if err := s.store.UpdateStatus(ctx, tx, id, status, now); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		d.Status = status
		d.UpdatedAt = now
		if err := s.emit(ctx, tx, d, eventType, now); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return Details{}, err
	}
	s.logger.Info("appointment status changed", "appointment_id", id, "status", status)
	return out, nil
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, d Details, eventType string, now time.Time) error {
	evt, err := NewEvent(d, eventType, now)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}

func partyError(kind string, err error) error {
	if errors.Is(err, users.ErrNotFound) || errors.Is(err, users.ErrWrongRole) {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, kind, err)
	}
	return fmt.Errorf("load %s: %w", kind, err)
}
