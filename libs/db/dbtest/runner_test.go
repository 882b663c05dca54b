package dbtest

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestRunner_CommitAndRollback(t *testing.T) {
	r := &Runner{}
	var applied []string

	err := r.InTx(context.Background(), func(pgx.Tx) error {
		r.Stage(func() { applied = append(applied, "a") })
		return nil
	})
	assert.NoError(t, err)

	boom := errors.New("boom")
	err = r.InTx(context.Background(), func(pgx.Tx) error {
		r.Stage(func() { applied = append(applied, "b") })
		return boom
	})
	assert.ErrorIs(t, err, boom)

	r.Stage(func() { applied = append(applied, "c") })

	assert.Equal(t, []string{"a", "c"}, applied)
	assert.Equal(t, 1, r.Commits)
	assert.Equal(t, 1, r.Rollbacks)
}
