package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherapp/backend/internal/storage"
)

// ---- mock MigrationPool ----

type mockMigrationPool struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockMigrationPool) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.beginFn(ctx)
}

// mockTx is a minimal pgx.Tx implementation for testing migrations.
type mockTx struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (t *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.execFn(ctx, sql, args...)
}
func (t *mockTx) Commit(ctx context.Context) error   { return t.commitFn(ctx) }
func (t *mockTx) Rollback(ctx context.Context) error { return t.rollbackFn(ctx) }

// pgx.Tx has many more methods; stub them all out.
func (t *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (t *mockTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *mockTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *mockTx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *mockTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *mockTx) Conn() *pgx.Conn { return nil }

func writeSQLFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunMigrations_ExecutesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeSQLFile(t, dir, "002_second.sql", "CREATE TABLE b ();")
	writeSQLFile(t, dir, "001_first.sql", "CREATE TABLE a ();")
	writeSQLFile(t, dir, "notes.txt", "not a migration")

	var executed []string
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) {
			return &mockTx{
				execFn: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
					executed = append(executed, sql)
					return pgconn.CommandTag{}, nil
				},
				commitFn:   func(_ context.Context) error { return nil },
				rollbackFn: func(_ context.Context) error { return nil },
			}, nil
		},
	}

	require.NoError(t, storage.RunMigrations(context.Background(), pool, dir))
	require.Len(t, executed, 2, "non-sql files must be skipped")
	assert.Equal(t, "CREATE TABLE a ();", executed[0])
	assert.Equal(t, "CREATE TABLE b ();", executed[1])
}

func TestRunMigrations_RollsBackOnExecError(t *testing.T) {
	dir := t.TempDir()
	writeSQLFile(t, dir, "001_bad.sql", "NOT SQL")

	rolledBack := false
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) {
			return &mockTx{
				execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
					return pgconn.CommandTag{}, assert.AnError
				},
				commitFn:   func(_ context.Context) error { return nil },
				rollbackFn: func(_ context.Context) error { rolledBack = true; return nil },
			}, nil
		},
	}

	require.Error(t, storage.RunMigrations(context.Background(), pool, dir))
	assert.True(t, rolledBack)
}

func TestRunMigrations_MissingDir(t *testing.T) {
	pool := &mockMigrationPool{}
	require.Error(t, storage.RunMigrations(context.Background(), pool, "does-not-exist"))
}
