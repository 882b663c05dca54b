package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("user already exists")
	ErrWrongRole = errors.New("user has a different role")
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, u User) error {
	id := u.Ident()
	var specialty, department string
	var dob *time.Time
	switch v := u.(type) {
	case Doctor:
		specialty = v.Specialty
	case Nurse:
		department = v.Department
	case Patient:
		dob = v.DateOfBirth
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, role, first_name, last_name, email, phone, specialty, department, date_of_birth)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id.ID, string(u.Role()), id.FirstName, id.LastName, id.Email, id.Phone, specialty, department, dob)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (User, error) {
	var (
		ident      Identity
		role       string
		specialty  string
		department string
		dob        *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, role, first_name, last_name, email, phone, specialty, department, date_of_birth, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&ident.ID, &role, &ident.FirstName, &ident.LastName, &ident.Email, &ident.Phone,
		&specialty, &department, &dob, &ident.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	switch auth.Role(role) {
	case auth.RoleDoctor:
		return Doctor{Identity: ident, Specialty: specialty}, nil
	case auth.RoleNurse:
		return Nurse{Identity: ident, Department: department}, nil
	case auth.RolePatient:
		return Patient{Identity: ident, DateOfBirth: dob}, nil
	default:
		return nil, fmt.Errorf("user %s: unknown role %q", id, role)
	}
}

func (r *Repository) Doctor(ctx context.Context, id uuid.UUID) (Doctor, error) {
	return getAs[Doctor](ctx, r, id)
}

func (r *Repository) Patient(ctx context.Context, id uuid.UUID) (Patient, error) {
	return getAs[Patient](ctx, r, id)
}

func getAs[T User](ctx context.Context, r *Repository, id uuid.UUID) (T, error) {
	var zero T
	u, err := r.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	v, ok := u.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %s", ErrWrongRole, id, u.Role())
	}
	return v, nil
}
