package runtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestBaseMux_Readyz(t *testing.T) {
	ok := ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }}
	bad := ReadyCheck{Name: "kafka", Check: func(context.Context) error { return errors.New("down") }}

	rw := httptest.NewRecorder()
	NewBaseMux(nil, ok).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rw.Code)

	rw = httptest.NewRecorder()
	NewBaseMux(nil, ok, bad).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
	assert.Contains(t, rw.Body.String(), "kafka: down")
}

func TestBaseMux_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "t"})
	reg.MustRegister(c)
	c.Inc()

	rw := httptest.NewRecorder()
	NewBaseMux(reg).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), "test_total 1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel("WARN").String())
	assert.Equal(t, "INFO", ParseLevel("bogus").String())
}

func TestRunTasks_FirstFailureCancelsOthers(t *testing.T) {
	logger := NewLogger("test", "error")
	boom := errors.New("boom")

	err := RunTasks(context.Background(), logger,
		Task{Name: "fails", Run: func(context.Context) error { return boom }},
		Task{Name: "waits", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)
	assert.ErrorIs(t, err, boom)
}
