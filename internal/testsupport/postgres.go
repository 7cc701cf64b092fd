// Package testsupport provides integration-tier test fixtures shared
// across backend connector tests: a disposable PostgreSQL+pgvector
// testcontainer with a connected pool, adapted from the
// internal/db/testhelpers pattern this module's predecessor used for
// its own integration tests.
package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresFixture holds a running PostgreSQL testcontainer and a pool
// connected to it.
type PostgresFixture struct {
	Container     *postgres.PostgresContainer
	Pool          *pgxpool.Pool
	ConnectionStr string
	t             *testing.T
}

// NewPostgresFixture starts a pgvector-enabled PostgreSQL container,
// connects a pool to it, and registers cleanup on t. Tests that need
// vector search coverage use this image specifically for its pgvector
// extension; tests that only need plain relational tables could use a
// lighter image, but a single fixture keeps every connector test
// exercising the same backend.
func NewPostgresFixture(t *testing.T) *PostgresFixture {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("sqlfed_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get connection string: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to parse connection string: %v", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to create connection pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("failed to ping database: %v", err)
	}

	fixture := &PostgresFixture{Container: container, Pool: pool, ConnectionStr: connStr, t: t}
	t.Cleanup(fixture.cleanup)
	return fixture
}

// Exec runs a one-off DDL/DML statement against the fixture's pool,
// failing the test on error. Useful for seeding a table schema before
// exercising a connector.
func (f *PostgresFixture) Exec(ctx context.Context, sql string, args ...any) {
	f.t.Helper()
	if _, err := f.Pool.Exec(ctx, sql, args...); err != nil {
		f.t.Fatalf("exec failed: %v\nsql: %s", err, sql)
	}
}

func (f *PostgresFixture) cleanup() {
	ctx := context.Background()
	if f.Pool != nil {
		f.Pool.Close()
	}
	if f.Container != nil {
		if err := f.Container.Terminate(ctx); err != nil {
			f.t.Logf("failed to terminate postgres container: %v", err)
		}
	}
}
