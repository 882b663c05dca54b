package projection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
)

var (
	ErrInvalidFilter = errors.New("invalid filter")
	ErrForbidden     = errors.New("forbidden")
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

var knownStatuses = map[string]bool{
	"SCHEDULED": true,
	"CONFIRMED": true,
	"COMPLETED": true,
	"NO_SHOW":   true,
	"CANCELLED": true,
}

// Query holds raw caller input; every field is optional.
type Query struct {
	PatientID   string
	PatientName string
	DoctorID    string
	Date        string
	Status      string
	Limit       int
}

// Filter is a validated Query. Zero fields match everything.
type Filter struct {
	PatientID   string
	PatientName string
	DoctorID    *uuid.UUID
	Date        *time.Time
	Status      string
	Limit       int
}

type Finder interface {
	Find(ctx context.Context, f Filter) ([]Entry, error)
}

type Service struct {
	store Finder
}

func NewService(store Finder) *Service {
	return &Service{store: store}
}

// GetHistory applies role scoping: patients only ever see their own rows,
// staff may filter freely.
func (s *Service) GetHistory(ctx context.Context, caller auth.Caller, q Query) ([]Entry, error) {
	f, err := parseQuery(q)
	if err != nil {
		return nil, err
	}
	switch {
	case caller.Role == auth.RolePatient:
		own := caller.UserID.String()
		if f.PatientID != "" && f.PatientID != own {
			return nil, fmt.Errorf("%w: patients may only read their own history", ErrForbidden)
		}
		f.PatientID = own
	case caller.Role.IsStaff():
	default:
		return nil, fmt.Errorf("%w: role %q", ErrForbidden, caller.Role)
	}
	return s.store.Find(ctx, f)
}

func parseQuery(q Query) (Filter, error) {
	f := Filter{PatientName: strings.TrimSpace(q.PatientName), Limit: q.Limit}

	if v := strings.TrimSpace(q.PatientID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: patientId %q is not a valid uuid", ErrInvalidFilter, v)
		}
		f.PatientID = id.String()
	}
	if v := strings.TrimSpace(q.DoctorID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: doctorId %q is not a valid uuid", ErrInvalidFilter, v)
		}
		f.DoctorID = &id
	}
	if v := strings.TrimSpace(q.Date); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: date %q must be formatted as YYYY-MM-DD", ErrInvalidFilter, v)
		}
		f.Date = &d
	}
	if v := strings.ToUpper(strings.TrimSpace(q.Status)); v != "" {
		if !knownStatuses[v] {
			return Filter{}, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, q.Status)
		}
		f.Status = v
	}
	switch {
	case f.Limit < 0:
		return Filter{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidFilter)
	case f.Limit == 0:
		f.Limit = defaultLimit
	case f.Limit > maxLimit:
		f.Limit = maxLimit
	}
	return f, nil
}
