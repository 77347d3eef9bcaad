package synchronizer

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/internal/dialect"
	"github.com/vitebski/tablesync/internal/schema"
	"github.com/vitebski/tablesync/internal/typemap"
	"github.com/vitebski/tablesync/pkg/models"
	_ "modernc.org/sqlite"
)

var (
	users       = models.TableRef{Name: "users"}
	userColumns = []string{"user_id", "username", "email"}
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func newSQLiteSynchronizer(t *testing.T) (*Synchronizer, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	builder := schema.NewBuilder(db, dialect.NewSQLite(dialect.Options{}), typemap.New(), testLogger())
	return New(builder, testLogger()), db
}

func frame(t *testing.T, records ...[]interface{}) *dataset.Frame {
	t.Helper()
	f, err := dataset.FromRecords(userColumns, records)
	require.NoError(t, err)
	return f
}

func threeUsers(t *testing.T) *dataset.Frame {
	return frame(t,
		[]interface{}{int64(1), "john", "j@x.com"},
		[]interface{}{int64(2), "alice", "a@x.com"},
		[]interface{}{int64(3), "bob", "b@x.com"},
	)
}

func counts(r *models.OperationResult) [3]int {
	return [3]int{r.Insertions, r.Updates, r.Skips}
}

func rowCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "users"`).Scan(&n))
	return n
}

func fetchUser(t *testing.T, db *sql.DB, id int64) (sql.NullString, sql.NullString) {
	t.Helper()
	var name, email sql.NullString
	require.NoError(t, db.QueryRow(`SELECT "username", "email" FROM "users" WHERE "user_id" = ?`, id).Scan(&name, &email))
	return name, email
}

func TestUpsertThreeUsersInBatchesOfTwo(t *testing.T) {
	s, db := newSQLiteSynchronizer(t)
	ctx := context.Background()
	opts := Options{Keys: []string{"user_id"}, IndexIfMissing: models.IndexPrimary, BatchSize: 2}

	result, err := s.TableOperation(ctx, models.OperationUpsert, threeUsers(t), users, opts)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 0, 0}, counts(result))
	assert.Empty(t, result.Failures)
	assert.Equal(t, "users", result.Table)
	assert.NotEmpty(t, result.ID)

	changed := frame(t,
		[]interface{}{int64(1), "john", "j@x.com"},
		[]interface{}{int64(2), "alice2", "a2@x.com"},
		[]interface{}{int64(3), "bob", "b@x.com"},
	)
	result, err = s.TableOperation(ctx, models.OperationUpsert, changed, users, opts)
	require.NoError(t, err)
	assert.Equal(t, [3]int{0, 3, 0}, counts(result))
	assert.Empty(t, result.Failures)

	name, email := fetchUser(t, db, 2)
	assert.Equal(t, "alice2", name.String)
	assert.Equal(t, "a2@x.com", email.String)
	assert.Equal(t, 3, rowCount(t, db))
}

func TestUpsertUnchangedRowsUpdatesEveryRow(t *testing.T) {
	s, _ := newSQLiteSynchronizer(t)
	ctx := context.Background()
	opts := Options{Keys: []string{"user_id"}, IndexIfMissing: models.IndexUnique}

	_, err := s.TableOperation(ctx, models.OperationUpsert, threeUsers(t), users, opts)
	require.NoError(t, err)

	result, err := s.TableOperation(ctx, models.OperationUpsert, threeUsers(t), users, opts)
	require.NoError(t, err)
	assert.Equal(t, [3]int{0, 3, 0}, counts(result))
}

func TestAppendTwiceSkipsExistingRows(t *testing.T) {
	s, db := newSQLiteSynchronizer(t)
	ctx := context.Background()
	opts := Options{Keys: []string{"user_id"}}

	result, err := s.TableOperation(ctx, models.OperationAppend, threeUsers(t), users, opts)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 0, 0}, counts(result))

	result, err = s.TableOperation(ctx, models.OperationAppend, threeUsers(t), users, opts)
	require.NoError(t, err)
	assert.Equal(t, [3]int{0, 0, 3}, counts(result))
	assert.Equal(t, 3, rowCount(t, db))
}

func TestAppendWithoutKeysInsertsEveryRow(t *testing.T) {
	s, db := newSQLiteSynchronizer(t)
	ctx := context.Background()

	for range 2 {
		result, err := s.TableOperation(ctx, models.OperationAppend, threeUsers(t), users, Options{})
		require.NoError(t, err)
		assert.Equal(t, [3]int{3, 0, 0}, counts(result))
	}
	assert.Equal(t, 6, rowCount(t, db))
}

func TestReplaceLeavesExactRows(t *testing.T) {
	s, db := newSQLiteSynchronizer(t)
	ctx := context.Background()
	opts := Options{Keys: []string{"user_id"}, IndexIfMissing: models.IndexPrimary}

	_, err := s.TableOperation(ctx, models.OperationUpsert, threeUsers(t), users, opts)
	require.NoError(t, err)

	replacement := frame(t,
		[]interface{}{int64(1), "johnny", nil},
		[]interface{}{int64(3), nil, "bob@y.org"},
	)
	result, err := s.TableOperation(ctx, models.OperationReplace, replacement, users, opts)
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 0, 0}, counts(result))

	name, email := fetchUser(t, db, 1)
	assert.Equal(t, sql.NullString{String: "johnny", Valid: true}, name)
	assert.False(t, email.Valid, "replace must not keep the old email")

	name, email = fetchUser(t, db, 3)
	assert.False(t, name.Valid, "replace must not keep the old username")
	assert.Equal(t, "bob@y.org", email.String)

	name, _ = fetchUser(t, db, 2)
	assert.Equal(t, "alice", name.String)
	assert.Equal(t, 3, rowCount(t, db))
}

func TestDuplicateEmailIsIsolated(t *testing.T) {
	s, db := newSQLiteSynchronizer(t)
	ctx := context.Background()

	_, err := s.Builder.CreateTableFor(ctx, users, threeUsers(t).Columns(), schema.TableOptions{
		Keys: []string{"user_id"}, IndexKind: models.IndexPrimary,
	})
	require.NoError(t, err)
	_, err = s.Builder.CreateIndex(ctx, "users_email_uk", users, []string{"email"}, true)
	require.NoError(t, err)

	rows := frame(t,
		[]interface{}{int64(1), "john", "j@x.com"},
		[]interface{}{int64(2), "alice", "j@x.com"},
		[]interface{}{int64(3), "bob", "b@x.com"},
	)
	result, err := s.TableOperation(ctx, models.OperationAppend, rows, users, Options{Keys: []string{"user_id"}, BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Insertions)
	require.Len(t, result.Failures, 1)

	failure := result.Failures[0]
	assert.Equal(t, 1, failure.Row)
	assert.Equal(t, "insert", failure.Step)
	assert.Equal(t, map[string]interface{}{"user_id": int64(2)}, failure.Keys)
	assert.NotEmpty(t, failure.Error)

	assert.Equal(t, 2, rowCount(t, db))
	name, _ := fetchUser(t, db, 3)
	assert.Equal(t, "bob", name.String)
}

func TestDuplicateKeysLastOccurrenceWins(t *testing.T) {
	s, db := newSQLiteSynchronizer(t)
	ctx := context.Background()

	rows := frame(t,
		[]interface{}{int64(1), "first", "f@x.com"},
		[]interface{}{int64(1), "second", "s@x.com"},
	)
	result, err := s.TableOperation(ctx, models.OperationUpsert, rows, users, Options{Keys: []string{"user_id"}, IndexIfMissing: models.IndexPrimary})
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 1, 0}, counts(result))

	name, _ := fetchUser(t, db, 1)
	assert.Equal(t, "second", name.String)
}

func TestCreatesMissingTableWithIndex(t *testing.T) {
	s, _ := newSQLiteSynchronizer(t)
	ctx := context.Background()

	_, err := s.TableOperation(ctx, models.OperationAppend, threeUsers(t), users, Options{
		Keys: []string{"email"}, IndexIfMissing: models.IndexUnique,
	})
	require.NoError(t, err)

	exists, err := s.Builder.IndexExists(ctx, users, "users_i001_uk")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExistingTableMissingColumn(t *testing.T) {
	s, db := newSQLiteSynchronizer(t)
	_, err := db.Exec(`CREATE TABLE "users" ("user_id" INTEGER, "username" TEXT)`)
	require.NoError(t, err)

	_, err = s.TableOperation(context.Background(), models.OperationAppend, threeUsers(t), users, Options{})
	var schemaErr *models.SchemaError
	require.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %v", err)
	assert.Equal(t, "email", schemaErr.Object)
}

func TestPreflightRejectsBeforeIO(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	builder := schema.NewBuilder(db, dialect.NewPostgres(), typemap.New(), testLogger())
	s := New(builder, testLogger())
	data := threeUsers(t)

	tests := []struct {
		name string
		kind models.OperationKind
		opts Options
	}{
		{"upsert without keys", models.OperationUpsert, Options{}},
		{"unknown operation", "merge", Options{Keys: []string{"user_id"}}},
		{"unknown key", models.OperationAppend, Options{Keys: []string{"id"}}},
		{"repeated key", models.OperationAppend, Options{Keys: []string{"user_id", "user_id"}}},
		{"negative batch size", models.OperationAppend, Options{BatchSize: -1}},
		{"index without keys", models.OperationAppend, Options{IndexIfMissing: models.IndexUnique}},
		{"unknown index kind", models.OperationAppend, Options{Keys: []string{"user_id"}, IndexIfMissing: "hash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.TableOperation(context.Background(), tt.kind, data, users, tt.opts)
			assert.Nil(t, result)
			var cfgErr *models.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreflightRejectsInvalidTableRef(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	builder := schema.NewBuilder(db, dialect.NewFirebird(), typemap.New(), testLogger())
	s := New(builder, testLogger())

	for _, ref := range []models.TableRef{
		{Schema: "app", Name: "users"},
		{Name: "a_table_name_well_beyond_the_limit"},
	} {
		result, err := s.TableOperation(context.Background(), models.OperationAppend, threeUsers(t), ref, Options{})
		assert.Nil(t, result)
		var schemaErr *models.SchemaError
		assert.True(t, errors.As(err, &schemaErr), "expected SchemaError for %s, got %v", ref, err)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitFailureReturnsCommittedBatches(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	builder := schema.NewBuilder(db, dialect.NewSQLite(dialect.Options{}), typemap.New(), testLogger())
	s := New(builder, testLogger())

	mock.ExpectQuery(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`).
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT * FROM "users" WHERE 1 = 0`).
		WillReturnRows(sqlmock.NewRows(userColumns))

	expectRow := func(id int64, name, email string) {
		mock.ExpectExec("SAVEPOINT tablesync_row").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT COUNT(*) FROM "users" WHERE "user_id" = ?`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`INSERT INTO "users" ("user_id", "username", "email") VALUES (?, ?, ?)`).
			WithArgs(id, name, email).
			WillReturnResult(sqlmock.NewResult(id, 1))
		mock.ExpectExec("RELEASE SAVEPOINT tablesync_row").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	mock.ExpectBegin()
	expectRow(1, "john", "j@x.com")
	expectRow(2, "alice", "a@x.com")
	mock.ExpectCommit()
	mock.ExpectBegin()
	expectRow(3, "bob", "b@x.com")
	mock.ExpectCommit().WillReturnError(errors.New("connection reset by peer"))

	result, err := s.TableOperation(context.Background(), models.OperationAppend, threeUsers(t), users, Options{
		Keys: []string{"user_id"}, BatchSize: 2,
	})

	var backendErr *models.BackendFailure
	require.True(t, errors.As(err, &backendErr), "expected BackendFailure, got %v", err)
	assert.Equal(t, "commit", backendErr.Step)
	assert.Equal(t, "users", backendErr.Table)
	require.NotNil(t, result)
	assert.Equal(t, [3]int{2, 0, 0}, counts(result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLostConnectionAbortsBatch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	builder := schema.NewBuilder(db, dialect.NewOracle(), typemap.New(), testLogger())
	s := New(builder, testLogger())

	mock.ExpectQuery(`SELECT COUNT(*) FROM all_tables WHERE owner = COALESCE(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')) AND table_name = :2`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT * FROM "users" WHERE 1 = 0`).
		WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT tablesync_row").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "users" ("user_id", "username", "email") VALUES (:1, :2, :3)`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	result, err := s.TableOperation(context.Background(), models.OperationAppend, threeUsers(t), users, Options{})

	var backendErr *models.BackendFailure
	require.True(t, errors.As(err, &backendErr), "expected BackendFailure, got %v", err)
	assert.Equal(t, "insert", backendErr.Step)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Equal(t, [3]int{0, 0, 0}, counts(result))
	assert.Empty(t, result.Failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}
