package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
	"domus/pkg/platform/tx"
)

const (
	defaultRegulationTxTimeout = 5 * time.Second
	maxSerializationRetries    = 3
)

// regulationPostgresTx runs the activation swap inside a serializable
// Postgres transaction. The stores pick the transaction up from the context.
// Serialization failures are retried a few times; if they persist, the caller
// sees a conflict and can retry the whole operation.
type regulationPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newRegulationPostgresTx(db *sql.DB) *regulationPostgresTx {
	return &regulationPostgresTx{db: db}
}

func (t *regulationPostgresTx) RunInTx(ctx context.Context, _ id.ResidenceID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultRegulationTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var err error
	for attempt := 0; attempt <= maxSerializationRetries; attempt++ {
		err = t.runOnce(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
	}
	return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent activation conflict")
}

func (t *regulationPostgresTx) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	txn, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() {
		_ = txn.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, txn)); err != nil {
		return err
	}
	return txn.Commit()
}

// isSerializationFailure matches the Postgres serialization_failure and
// deadlock_detected SQLSTATEs.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
