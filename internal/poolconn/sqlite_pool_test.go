package poolconn

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func newTestSQLitePool(t *testing.T) *SQLitePool {
	t.Helper()
	pool, err := NewSQLitePool(SQLitePoolConfig{Name: "test", Path: ":memory:"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func TestSQLitePool_CreateInsertQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := newTestSQLitePool(t)

	conn, err := pool.Connect(ctx)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Execute(ctx, "CREATE TABLE widgets (id INTEGER, name TEXT)"); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if _, err := conn.Execute(ctx, "INSERT INTO widgets (id, name) VALUES (?, ?)", 1, "gear"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := conn.Execute(ctx, "INSERT INTO widgets (id, name) VALUES (?, ?)", 2, "bolt"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	schema, err := conn.GetSchema(ctx, "widgets")
	if err != nil {
		t.Fatalf("get schema failed: %v", err)
	}
	if len(schema.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(schema.Fields))
	}

	stream, err := conn.QueryArrow(ctx, "SELECT id, name FROM widgets ORDER BY id")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer stream.Close()

	var total int64
	for {
		batch, err := stream.Next(ctx)
		if err != nil {
			t.Fatalf("stream read failed: %v", err)
		}
		if batch == nil {
			break
		}
		total += batch.NumRows()
		batch.Release()
	}
	if total != 2 {
		t.Fatalf("expected 2 rows, got %d", total)
	}
}

func TestSQLitePool_JoinPushDownAllowedForSamePool(t *testing.T) {
	ctx := context.Background()
	pool := newTestSQLitePool(t)

	conn, err := pool.Connect(ctx)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer conn.Close()

	jp := conn.JoinPushDown()
	if jp.Kind != JoinPushDownAllowedFor {
		t.Fatalf("expected push-down to be allowed, got %v", jp.Kind)
	}
	if jp.Key != "sqlite:test" {
		t.Fatalf("unexpected push-down key: %q", jp.Key)
	}
}

func TestSQLitePool_RefcountClosesUnderlyingDBOnLastRelease(t *testing.T) {
	ctx := context.Background()
	pool, err := NewSQLitePool(SQLitePoolConfig{Name: "refcount", Path: ":memory:"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}

	connA, err := pool.Connect(ctx)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	connB, err := pool.Connect(ctx)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if err := connA.Close(); err != nil {
		t.Fatalf("unexpected error closing first connection: %v", err)
	}
	if _, err := connB.Execute(ctx, "SELECT 1"); err != nil {
		t.Fatalf("expected the pool to still be usable after one of two connections closed: %v", err)
	}
	if err := connB.Close(); err != nil {
		t.Fatalf("unexpected error closing second connection: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("unexpected error on final pool close: %v", err)
	}
	if err := pool.db.Ping(); err == nil {
		t.Fatal("expected the underlying *sql.DB to be closed after the last release")
	}
}
