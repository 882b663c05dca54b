package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegister(t *testing.T) {
	reg := NewRegistry()
	m := MustRegister(reg)

	m.OutboxPublished.Add(3)
	m.HistoryEvents.WithLabelValues("duplicate").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryEvents.WithLabelValues("duplicate")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Panics(t, func() { MustRegister(reg) })
}
