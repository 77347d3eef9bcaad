package synchronizer

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"iter"
	"net"

	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/internal/schema"
	"github.com/vitebski/tablesync/pkg/models"
)

const savepointName = "tablesync_row"

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeUpdated
	outcomeSkipped
	outcomeFailed
)

// rowResult is the final state of one row
type rowResult struct {
	outcome outcome
	failure *models.RowFailure
}

// tally accumulates the row results of one batch
type tally struct {
	insertions int
	updates    int
	skips      int
	failures   []models.RowFailure
}

func (t *tally) add(r rowResult) {
	switch r.outcome {
	case outcomeInserted:
		t.insertions++
	case outcomeUpdated:
		t.updates++
	case outcomeSkipped:
		t.skips++
	case outcomeFailed:
		t.failures = append(t.failures, *r.failure)
	}
}

func (t *tally) mergeInto(result *models.OperationResult) {
	result.Insertions += t.insertions
	result.Updates += t.updates
	result.Skips += t.skips
	result.Failures = append(result.Failures, t.failures...)
	*t = tally{}
}

// run processes rows sequentially in batches of op.batchSize, one transaction per batch.
// Counts reach the result only once their batch has committed.
func (s *Synchronizer) run(ctx context.Context, op *operation, rows iter.Seq2[int, dataset.Row], result *models.OperationResult) error {
	var (
		tx     *sql.Tx
		batch  tally
		size   int
		number int
	)

	for ordinal, row := range rows {
		if tx == nil {
			begun, err := s.Builder.DB.BeginTx(ctx, nil)
			if err != nil {
				return s.failure(op, "begin", err)
			}
			tx = begun
			number++
		}

		r, err := s.processRow(ctx, tx, op, ordinal, row)
		if err != nil {
			s.abort(op, tx)
			return err
		}
		batch.add(r)
		size++

		if size == op.batchSize {
			if err := tx.Commit(); err != nil {
				return s.failure(op, "commit", err)
			}
			op.log.Debugf("Committed batch %d (%d rows)", number, size)
			batch.mergeInto(result)
			tx, size = nil, 0
		}
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return s.failure(op, "commit", err)
		}
		op.log.Debugf("Committed batch %d (%d rows)", number, size)
		batch.mergeInto(result)
	}
	return nil
}

// processRow applies one row inside a savepoint. A row error rolls back to the
// savepoint and becomes a failed rowResult; only fatal errors are returned.
func (s *Synchronizer) processRow(ctx context.Context, tx *sql.Tx, op *operation, ordinal int, row dataset.Row) (rowResult, error) {
	profile := s.Builder.Dialect
	if _, err := tx.ExecContext(ctx, profile.SavepointStatement(savepointName)); err != nil {
		return rowResult{}, s.failure(op, "savepoint", err)
	}

	result, step, err := op.apply(ctx, tx, row)
	if err != nil {
		if isFatal(err) {
			return rowResult{}, s.failure(op, step, err)
		}
		if _, rbErr := tx.ExecContext(ctx, profile.RollbackToSavepointStatement(savepointName)); rbErr != nil {
			return rowResult{}, s.failure(op, "rollback to savepoint", rbErr)
		}
		rowErr := &models.RowOperationError{Row: ordinal, Step: step, Err: err}
		op.log.Warningf("Row %d failed: %v", ordinal, rowErr)
		return rowResult{
			outcome: outcomeFailed,
			failure: &models.RowFailure{
				Row:   ordinal,
				Step:  step,
				Keys:  op.stmts.keyValues(row),
				Error: rowErr.Error(),
			},
		}, nil
	}

	if release := profile.ReleaseSavepointStatement(savepointName); release != "" {
		if _, err := tx.ExecContext(ctx, release); err != nil {
			return rowResult{}, s.failure(op, "release savepoint", err)
		}
	}
	return rowResult{outcome: result}, nil
}

// apply dispatches one row according to the operation kind. It returns the
// step that failed along with the error.
func (op *operation) apply(ctx context.Context, q schema.Querier, row dataset.Row) (outcome, string, error) {
	keyed := len(op.stmts.keys) > 0

	if keyed && op.kind != models.OperationReplace {
		query, args := op.stmts.lookup(row)
		var count int64
		if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return outcomeFailed, "lookup", err
		}
		if count > 0 {
			if op.kind == models.OperationAppend {
				return outcomeSkipped, "", nil
			}
			if len(op.stmts.nonKeys) == 0 {
				return outcomeUpdated, "", nil
			}
			query, args := op.stmts.update(row)
			if _, err := q.ExecContext(ctx, query, args...); err != nil {
				return outcomeFailed, "update", err
			}
			return outcomeUpdated, "", nil
		}
	}

	if keyed && op.kind == models.OperationReplace {
		query, args := op.stmts.delete(row)
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return outcomeFailed, "delete", err
		}
	}

	query, args := op.stmts.insert(row)
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return outcomeFailed, "insert", err
	}
	return outcomeInserted, "", nil
}

func (s *Synchronizer) abort(op *operation, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		op.log.Warningf("Error rolling back batch: %v", err)
	}
}

func (s *Synchronizer) failure(op *operation, step string, err error) error {
	op.log.Errorf("Backend failure during %s: %v", step, err)
	return &models.BackendFailure{Table: op.ref.String(), Step: step, Err: err}
}

// isFatal reports whether an error means the connection or transaction is unusable
func isFatal(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
