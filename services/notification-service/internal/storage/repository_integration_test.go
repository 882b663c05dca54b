//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/libs/db/dbtest"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/migrations"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/notifications"
)

func TestRepository_Lifecycle(t *testing.T) {
	repo := NewRepository(dbtest.Postgres(t, migrations.FS))
	ctx := context.Background()
	key := notifications.Key{AppointmentID: "appt-1", Type: notifications.TypeAppointment, Channel: notifications.ChannelEmail}

	_, found, err := repo.Find(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	rec := notifications.Record{
		ID:            uuid.New(),
		AppointmentID: key.AppointmentID,
		PatientID:     "p1",
		Type:          key.Type,
		Channel:       key.Channel,
		Status:        notifications.StatusPending,
		ScheduledFor:  time.Now().UTC(),
		EventID:       "01JEVT",
	}
	require.NoError(t, repo.Create(ctx, rec))

	dup := rec
	dup.ID = uuid.New()
	require.ErrorIs(t, repo.Create(ctx, dup), notifications.ErrDuplicate)

	require.NoError(t, repo.MarkFailed(ctx, rec.ID, 1, "smtp down"))
	got, found, err := repo.Find(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, notifications.StatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "smtp down", *got.LastError)

	require.NoError(t, repo.MarkSent(ctx, rec.ID, time.Now().UTC()))
	got, _, err = repo.Find(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, notifications.StatusSent, got.Status)
	assert.Nil(t, got.LastError)
	assert.NotNil(t, got.SentAt)
	assert.Equal(t, "01JEVT", got.EventID)

	require.Error(t, repo.MarkSent(ctx, uuid.New(), time.Now()))
}
