package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitebski/tablesync/pkg/models"
)

// run executes one command line against a SQLite file in dir
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	common := []string{
		"--backend", "sqlite",
		"--dsn", "sqlite://" + filepath.Join(dir, "tablesync.db"),
		"--env-file", filepath.Join(dir, "missing.env"),
		"--log-level", "error",
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, common...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSampleCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "sample", "--rows", "20", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Inserted:   20")

	out, err = run(t, dir, "sample", "--rows", "20", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated:    20")
	assert.Contains(t, out, "Inserted:   0")
}

func TestCreateSyncAndIndex(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "users.csv", "user_id,email\n1,a@example.com\n2,b@example.com\n")

	out, err := run(t, dir, "create", csvPath, "--keys", "user_id", "--index", "primary")
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE TABLE "users"`)
	assert.Contains(t, out, `PRIMARY KEY ("user_id")`)

	out, err = run(t, dir, "sync", csvPath, "--operation", "upsert", "--keys", "user_id", "--verify", "--min-records", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Inserted:   2")

	out, err = run(t, dir, "sync", csvPath, "--operation", "append", "--keys", "user_id")
	require.NoError(t, err)
	assert.Contains(t, out, "Skipped:    2")

	out, err = run(t, dir, "index", "--name", "users_email_ix", "--table", "users", "--columns", "email", "--unique")
	require.NoError(t, err)
	assert.Contains(t, out, "users_email_ix")

	_, err = run(t, dir, "index", "--name", "users_email_ix", "--table", "users", "--columns", "email")
	var schemaErr *models.SchemaError
	assert.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %v", err)
}

func TestCreateFromSpecDryRun(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "shop.yaml", `
tables:
  - name: orders
    columns:
      - {name: order_id, type: int64}
      - {name: customer_id, type: int64}
    keys: order_id
    index: primary
    foreign_keys:
      - name: orders_customer_fk
        columns: customer_id
        references: {table: customers, columns: customer_id}
  - name: customers
    columns:
      - {name: customer_id, type: int64}
    keys: customer_id
    index: primary
`)

	out, err := run(t, dir, "create", "--spec", specPath, "--dry-run")
	require.NoError(t, err)

	customers := strings.Index(out, `CREATE TABLE "customers"`)
	orders := strings.Index(out, `CREATE TABLE "orders"`)
	require.NotEqual(t, -1, customers)
	require.NotEqual(t, -1, orders)
	assert.Less(t, customers, orders, "referenced table must come first")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "items.csv", "id,name\n1,x\n")
	var cfgErr *models.ConfigurationError

	_, err := run(t, dir, "create")
	assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)

	_, err = run(t, dir, "sync", csvPath, "--operation", "merge")
	assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)

	_, err = run(t, dir, "sync", csvPath, "--operation", "upsert")
	assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError for upsert without keys, got %v", err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
