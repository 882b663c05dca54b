package projection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
)

type mockFinder struct{ mock.Mock }

func (m *mockFinder) Find(ctx context.Context, f Filter) ([]Entry, error) {
	args := m.Called(ctx, f)
	entries, _ := args.Get(0).([]Entry)
	return entries, args.Error(1)
}

func TestGetHistory_PatientIsScopedToSelf(t *testing.T) {
	patient := auth.Caller{UserID: uuid.New(), Role: auth.RolePatient}
	finder := new(mockFinder)
	finder.On("Find", mock.Anything, mock.MatchedBy(func(f Filter) bool {
		return f.PatientID == patient.UserID.String() && f.Status == "CONFIRMED"
	})).Return([]Entry{{AppointmentID: "a1"}}, nil).Once()

	got, err := NewService(finder).GetHistory(context.Background(), patient, Query{Status: "confirmed"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	finder.AssertExpectations(t)
}

func TestGetHistory_PatientCannotReadOthers(t *testing.T) {
	finder := new(mockFinder)
	_, err := NewService(finder).GetHistory(context.Background(),
		auth.Caller{UserID: uuid.New(), Role: auth.RolePatient},
		Query{PatientID: uuid.NewString()})
	require.ErrorIs(t, err, ErrForbidden)
	finder.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
}

func TestGetHistory_StaffFiltersFreely(t *testing.T) {
	doctor := uuid.New()
	patient := uuid.New()
	finder := new(mockFinder)
	finder.On("Find", mock.Anything, mock.MatchedBy(func(f Filter) bool {
		return f.PatientID == patient.String() &&
			f.DoctorID != nil && *f.DoctorID == doctor &&
			f.Date != nil && f.Date.Equal(time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)) &&
			f.PatientName == "ada" &&
			f.Limit == defaultLimit
	})).Return([]Entry{}, nil).Once()

	_, err := NewService(finder).GetHistory(context.Background(),
		auth.Caller{UserID: uuid.New(), Role: auth.RoleNurse},
		Query{PatientID: patient.String(), DoctorID: doctor.String(), Date: "2025-12-08", PatientName: " ada "})
	require.NoError(t, err)
	finder.AssertExpectations(t)
}

func TestGetHistory_InvalidFilters(t *testing.T) {
	staff := auth.Caller{UserID: uuid.New(), Role: auth.RoleDoctor}
	for name, q := range map[string]Query{
		"patient id": {PatientID: "P1"},
		"doctor id":  {DoctorID: "house"},
		"date":       {Date: "08-12-2025"},
		"status":     {Status: "LOST"},
		"limit":      {Limit: -1},
	} {
		t.Run(name, func(t *testing.T) {
			finder := new(mockFinder)
			_, err := NewService(finder).GetHistory(context.Background(), staff, q)
			require.ErrorIs(t, err, ErrInvalidFilter)
			finder.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
		})
	}
}

func TestGetHistory_UnknownRole(t *testing.T) {
	_, err := NewService(new(mockFinder)).GetHistory(context.Background(), auth.Caller{UserID: uuid.New()}, Query{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestParseQuery_ClampsLimit(t *testing.T) {
	f, err := parseQuery(Query{Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, f.Limit)
}
