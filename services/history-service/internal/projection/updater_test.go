package projection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/libs/db/dbtest"
	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	"github.com/md-rashed-zaman/clinicflow/libs/metrics"
)

type memLedger struct {
	runner    *dbtest.Runner
	processed map[string]bool
	lookupErr bool
}

func (l *memLedger) ShouldProcess(_ context.Context, _ pgx.Tx, eventID string) bool {
	if l.lookupErr {
		return true
	}
	return !l.processed[eventID]
}

func (l *memLedger) MarkProcessed(_ context.Context, _ pgx.Tx, eventID, _ string) error {
	l.runner.Stage(func() { l.processed[eventID] = true })
	return nil
}

type mockWriter struct{ mock.Mock }

func (m *mockWriter) Upsert(ctx context.Context, tx pgx.Tx, e Entry) (bool, error) {
	args := m.Called(ctx, tx, e)
	return args.Bool(0), args.Error(1)
}

var (
	doctorID = uuid.MustParse("7b0e4c43-3c1e-4e9f-9d7a-2f6a3f0d5c11")
	fixedNow = time.Date(2025, 12, 7, 12, 0, 0, 0, time.UTC)
)

func event() events.AppointmentEvent {
	return events.AppointmentEvent{
		EventID:         "01JEVT",
		EventType:       events.TypeAppointmentStatusChanged,
		AppointmentID:   "appt-1",
		PatientID:       "0f8c1f5e-3a64-4f61-a1a4-2d9d0b7c8e01",
		PatientName:     "Ada Lovelace",
		DoctorID:        doctorID.String(),
		DoctorName:      "Gregory House",
		Status:          "confirmed",
		AppointmentDate: "2025-12-08T10:30:00Z",
		Timestamp:       "2025-12-07T11:59:00Z",
	}
}

type fixture struct {
	updater *Updater
	runner  *dbtest.Runner
	ledger  *memLedger
	writer  *mockWriter
	metrics *metrics.Metrics
}

func newFixture() fixture {
	runner := &dbtest.Runner{}
	ledger := &memLedger{runner: runner, processed: map[string]bool{}}
	writer := new(mockWriter)
	m := metrics.MustRegister(metrics.NewRegistry())
	u := NewUpdater(runner, ledger, writer, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	u.now = func() time.Time { return fixedNow }
	return fixture{updater: u, runner: runner, ledger: ledger, writer: writer, metrics: m}
}

func (f fixture) count(outcome string) float64 {
	return testutil.ToFloat64(f.metrics.HistoryEvents.WithLabelValues(outcome))
}

func TestApply_WritesEntryAndLedger(t *testing.T) {
	f := newFixture()
	f.writer.On("Upsert", mock.Anything, mock.Anything, mock.MatchedBy(func(e Entry) bool {
		return e.AppointmentID == "appt-1" &&
			e.DoctorID == doctorID &&
			e.Status == "CONFIRMED" &&
			e.LastEventAt.Equal(time.Date(2025, 12, 7, 11, 59, 0, 0, time.UTC)) &&
			e.AppointmentDate.Equal(time.Date(2025, 12, 8, 10, 30, 0, 0, time.UTC))
	})).Return(true, nil).Once()

	f.updater.Apply(context.Background(), event())

	f.writer.AssertExpectations(t)
	assert.True(t, f.ledger.processed["01JEVT"])
	assert.Equal(t, 1, f.runner.Commits)
	assert.Equal(t, 1.0, f.count("applied"))
}

func TestApply_DuplicateEventIsSkipped(t *testing.T) {
	f := newFixture()
	f.writer.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	f.updater.Apply(context.Background(), event())
	f.updater.Apply(context.Background(), event())

	f.writer.AssertNumberOfCalls(t, "Upsert", 1)
	assert.Equal(t, 1.0, f.count("applied"))
	assert.Equal(t, 1.0, f.count("duplicate"))
}

func TestApply_InvalidEventsNeverReachStore(t *testing.T) {
	cases := map[string]func(*events.AppointmentEvent){
		"empty patient":       func(e *events.AppointmentEvent) { e.PatientID = "" },
		"doctor not a uuid":   func(e *events.AppointmentEvent) { e.DoctorID = "dr-house" },
		"empty doctor":        func(e *events.AppointmentEvent) { e.DoctorID = "" },
		"missing appointment": func(e *events.AppointmentEvent) { e.AppointmentID = "" },
		"missing date":        func(e *events.AppointmentEvent) { e.AppointmentDate = "" },
		"unparsable date":     func(e *events.AppointmentEvent) { e.AppointmentDate = "08/12/2025" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			evt := event()
			mutate(&evt)

			require.NotPanics(t, func() { f.updater.Apply(context.Background(), evt) })

			f.writer.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, f.ledger.processed)
			assert.Zero(t, f.runner.Commits)
			assert.Equal(t, 1.0, f.count("invalid"))
		})
	}
}

func TestApply_TimestampFallsBackToNow(t *testing.T) {
	f := newFixture()
	f.writer.On("Upsert", mock.Anything, mock.Anything, mock.MatchedBy(func(e Entry) bool {
		return e.LastEventAt.Equal(fixedNow)
	})).Return(true, nil).Once()

	evt := event()
	evt.Timestamp = "yesterday"
	f.updater.Apply(context.Background(), evt)

	f.writer.AssertExpectations(t)
}

func TestApply_StoreFailureIsSwallowedAndRolledBack(t *testing.T) {
	f := newFixture()
	f.writer.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("connection reset")).Once()

	f.updater.Apply(context.Background(), event())

	assert.Empty(t, f.ledger.processed)
	assert.Equal(t, 1, f.runner.Rollbacks)
	assert.Equal(t, 1.0, f.count("failed"))
}

func TestApply_StaleEventOnlyRecordsLedger(t *testing.T) {
	f := newFixture()
	f.writer.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Once()

	f.updater.Apply(context.Background(), event())

	assert.True(t, f.ledger.processed["01JEVT"])
	assert.Equal(t, 1.0, f.count("stale"))
}

func TestApply_WithoutEventIDSkipsLedger(t *testing.T) {
	f := newFixture()
	f.writer.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	evt := event()
	evt.EventID = ""
	f.updater.Apply(context.Background(), evt)
	f.updater.Apply(context.Background(), evt)

	f.writer.AssertNumberOfCalls(t, "Upsert", 2)
	assert.Empty(t, f.ledger.processed)
	assert.Equal(t, 2.0, f.count("unkeyed"))
	assert.Zero(t, f.count("applied"))
}

func TestApply_LedgerLookupFailureFailsOpen(t *testing.T) {
	f := newFixture()
	f.ledger.lookupErr = true
	f.ledger.processed["01JEVT"] = true
	f.writer.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Once()

	f.updater.Apply(context.Background(), event())

	f.writer.AssertExpectations(t)
}

func TestHandleMessage_UsesHeaderEventID(t *testing.T) {
	f := newFixture()
	f.writer.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Once()

	evt := event()
	evt.EventID = ""
	raw, err := evt.Marshal()
	require.NoError(t, err)
	msg := kafka.Message{Value: raw, Headers: kafkax.EventMeta{EventID: "01HDR"}.Headers()}

	require.NoError(t, f.updater.HandleMessage(context.Background(), msg))
	require.NoError(t, f.updater.HandleMessage(context.Background(), msg))
	require.NoError(t, f.updater.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))

	f.writer.AssertNumberOfCalls(t, "Upsert", 1)
	assert.True(t, f.ledger.processed["01HDR"])
}
