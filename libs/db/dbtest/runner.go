// Package dbtest provides an in-memory db.TxRunner for unit tests.
package dbtest

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
)

// Runner hands fn a nil pgx.Tx. Fakes register their writes with Stage; the
// staged writes are applied when fn returns nil and dropped otherwise, which
// mirrors commit and rollback.
type Runner struct {
	mu        sync.Mutex
	inTx      bool
	staged    []func()
	Commits   int
	Rollbacks int
	// BeginErr, when set, is returned before fn runs.
	BeginErr error
}

var _ db.TxRunner = (*Runner)(nil)

func (r *Runner) InTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	if r.BeginErr != nil {
		return r.BeginErr
	}
	r.mu.Lock()
	r.staged = nil
	r.inTx = true
	r.mu.Unlock()

	err := fn(nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inTx = false
	if err != nil {
		r.Rollbacks++
		r.staged = nil
		return err
	}
	for _, apply := range r.staged {
		apply()
	}
	r.staged = nil
	r.Commits++
	return nil
}

// Stage queues a write for the running transaction. Outside InTx the write
// is applied immediately.
func (r *Runner) Stage(apply func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inTx {
		apply()
		return
	}
	r.staged = append(r.staged, apply)
}
