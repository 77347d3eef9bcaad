package synchronizer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/internal/schema"
	"github.com/vitebski/tablesync/pkg/models"
)

// DefaultBatchSize is the number of rows committed per transaction when Options.BatchSize is zero
const DefaultBatchSize = 50

// Options controls a synchronization run
type Options struct {
	// Keys identify a row. Required for upsert; append and replace insert
	// unconditionally without them.
	Keys []string
	// IndexIfMissing is the index created over Keys when the table has to be created.
	IndexIfMissing models.IndexKind
	// BatchSize is the number of rows per transaction.
	BatchSize int
	// Workers above one enables key-partitioned parallel dispatch.
	Workers int
}

// Synchronizer writes datasets into tables with append, upsert or replace semantics
type Synchronizer struct {
	Builder *schema.Builder
	Logger  *logrus.Logger
}

// New creates a synchronizer working through the builder's connection and dialect
func New(builder *schema.Builder, logger *logrus.Logger) *Synchronizer {
	return &Synchronizer{
		Builder: builder,
		Logger:  logger,
	}
}

// operation is a validated synchronization request
type operation struct {
	kind      models.OperationKind
	ref       models.TableRef
	stmts     statements
	batchSize int
	workers   int
	log       *logrus.Entry
}

// TableOperation synchronizes the dataset rows into the table. The table is
// created from the dataset columns when it does not exist. Row failures are
// reported in the result; a BackendFailure aborts the run and is returned
// together with the counts of the batches committed before it.
func (s *Synchronizer) TableOperation(ctx context.Context, kind models.OperationKind, data dataset.Dataset, ref models.TableRef, opts Options) (*models.OperationResult, error) {
	op, err := s.prepare(kind, data, ref, opts)
	if err != nil {
		return nil, err
	}

	result := &models.OperationResult{
		ID:        uuid.NewString(),
		Operation: kind,
		Table:     ref.String(),
	}
	op.log = s.Logger.WithFields(logrus.Fields{
		"run_id":    result.ID,
		"table":     result.Table,
		"operation": string(kind),
	})

	if err := s.ensureTable(ctx, op, data, opts); err != nil {
		return nil, err
	}

	op.log.Infof("Starting %s into %s (batch size %d, workers %d)", kind, ref, op.batchSize, op.workers)
	if op.workers > 1 {
		err = s.runParallel(ctx, op, data, result)
	} else {
		err = s.run(ctx, op, data.Rows(), result)
	}
	if err != nil {
		op.log.Errorf("Synchronization aborted after %d rows: %v", result.Processed(), err)
		return result, err
	}

	op.log.Infof("Finished %s into %s: %d inserted, %d updated, %d skipped, %d failed",
		kind, ref, result.Insertions, result.Updates, result.Skips, len(result.Failures))
	return result, nil
}

// prepare validates the request without touching the database
func (s *Synchronizer) prepare(kind models.OperationKind, data dataset.Dataset, ref models.TableRef, opts Options) (*operation, error) {
	if !kind.Valid() {
		return nil, &models.ConfigurationError{
			Parameter: "operation",
			Message:   fmt.Sprintf("invalid operation %q, valid values: append|upsert|replace", kind),
		}
	}
	if err := s.Builder.Dialect.ValidateTableRef(ref); err != nil {
		return nil, err
	}
	if kind == models.OperationUpsert && len(opts.Keys) == 0 {
		return nil, &models.ConfigurationError{Parameter: "keys", Message: "upsert requires at least one key column"}
	}
	if !opts.IndexIfMissing.Valid() {
		return nil, &models.ConfigurationError{
			Parameter: "index",
			Message:   fmt.Sprintf("unknown index kind %q, must be any of standard|unique|primary", opts.IndexIfMissing),
		}
	}
	if opts.IndexIfMissing != models.IndexNone && len(opts.Keys) == 0 {
		return nil, &models.ConfigurationError{Parameter: "index", Message: "an index requires key columns"}
	}

	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize < 0 {
		return nil, &models.ConfigurationError{Parameter: "batch_size", Message: fmt.Sprintf("must be positive, got %d", opts.BatchSize)}
	}
	profile := s.Builder.Dialect
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > 1 && !profile.ConcurrentWriters() {
		s.Logger.Warningf("%s allows a single writer, running %s into %s with one worker instead of %d",
			profile.Name(), kind, ref, workers)
		workers = 1
	}

	columns := dataset.ColumnNames(data)
	if len(columns) == 0 {
		return nil, &models.ConfigurationError{Parameter: "data", Message: "dataset has no columns"}
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	seen := make(map[string]bool, len(opts.Keys))
	for _, k := range opts.Keys {
		if !known[k] {
			return nil, &models.ConfigurationError{Parameter: "keys", Message: fmt.Sprintf("key column %q is not in the dataset", k)}
		}
		if seen[k] {
			return nil, &models.ConfigurationError{Parameter: "keys", Message: fmt.Sprintf("key column %q listed twice", k)}
		}
		seen[k] = true
	}

	return &operation{
		kind:      kind,
		ref:       ref,
		stmts:     newStatements(profile, profile.QualifiedName(ref), columns, opts.Keys),
		batchSize: batchSize,
		workers:   workers,
	}, nil
}

// ensureTable creates a missing table, or checks that an existing one has every dataset column
func (s *Synchronizer) ensureTable(ctx context.Context, op *operation, data dataset.Dataset, opts Options) error {
	exists, err := s.Builder.TableExists(ctx, op.ref)
	if err != nil {
		return &models.BackendFailure{Table: op.ref.String(), Step: "preflight", Err: err}
	}

	if !exists {
		op.log.Infof("Table %s does not exist, creating it", op.ref)
		_, err := s.Builder.CreateTableFor(ctx, op.ref, data.Columns(), schema.TableOptions{
			Keys:      opts.Keys,
			IndexKind: opts.IndexIfMissing,
		})
		return err
	}

	existing, err := s.Builder.ReflectColumns(ctx, op.ref)
	if err != nil {
		return &models.BackendFailure{Table: op.ref.String(), Step: "preflight", Err: err}
	}
	present := make(map[string]bool, len(existing))
	for _, c := range existing {
		present[c] = true
	}
	for _, c := range op.stmts.columns {
		if !present[c] {
			return &models.SchemaError{Table: op.ref.String(), Object: c, Message: "column not found in table"}
		}
	}
	return nil
}
