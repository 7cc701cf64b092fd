package provision

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/rs/zerolog"

	"github.com/nullstream/sqlfed/internal/canonical"
	"github.com/nullstream/sqlfed/internal/poolconn"
)

func newTestProvisioner(t *testing.T) (*SQLiteProvisioner, *poolconn.SQLitePool) {
	t.Helper()
	pool, err := poolconn.NewSQLitePool(poolconn.SQLitePoolConfig{Name: "provision-test", Path: ":memory:"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return NewSQLiteProvisioner(pool), pool
}

func widgetSchema() *canonical.Schema {
	return &canonical.Schema{Fields: []canonical.Field{
		{Name: "id", Type: canonical.DataType{ID: canonical.Int64}, Nullable: false},
		{Name: "name", Type: canonical.DataType{ID: canonical.Utf8}, Nullable: true},
	}}
}

func widgetBatch(t *testing.T, ids []int64, names []string) *canonical.RecordBatch {
	t.Helper()
	schema := widgetSchema()
	b := canonical.NewBuilder(nil, schema)
	for i := range ids {
		b.Builder(0).(*array.Int64Builder).Append(ids[i])
		b.Builder(1).(*array.StringBuilder).Append(names[i])
		b.IncRow()
	}
	batch, err := b.NewRecordBatch()
	if err != nil {
		t.Fatalf("failed to build record batch: %v", err)
	}
	return batch
}

func TestSQLiteProvisioner_CreateTableThenTableExists(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvisioner(t)

	exists, err := p.TableExists(ctx, "widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatal("expected widgets to not exist yet")
	}

	if err := p.CreateTable(ctx, "widgets", widgetSchema(), []string{"id"}); err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	exists, err = p.TableExists(ctx, "widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected widgets to exist after CreateTable")
	}
}

func TestSQLiteProvisioner_InsertBatchThenDeleteAll(t *testing.T) {
	ctx := context.Background()
	p, pool := newTestProvisioner(t)

	if err := p.CreateTable(ctx, "widgets", widgetSchema(), nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	batch := widgetBatch(t, []int64{1, 2, 3}, []string{"gear", "bolt", "nut"})
	defer batch.Release()
	if err := p.InsertBatch(ctx, "widgets", batch, nil); err != nil {
		t.Fatalf("insert batch failed: %v", err)
	}

	conn, err := pool.Connect(ctx)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer conn.Close()

	stream, err := conn.QueryArrow(ctx, "SELECT id, name FROM widgets ORDER BY id")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	var count int64
	for {
		rb, err := stream.Next(ctx)
		if err != nil {
			t.Fatalf("stream read failed: %v", err)
		}
		if rb == nil {
			break
		}
		count += rb.NumRows()
		rb.Release()
	}
	stream.Close()

	if count != 3 {
		t.Fatalf("expected 3 rows after insert, got %d", count)
	}

	if err := p.DeleteAll(ctx, "widgets"); err != nil {
		t.Fatalf("delete all failed: %v", err)
	}

	exists, err := p.TableExists(ctx, "widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("DeleteAll should not drop the table")
	}
}

func TestSQLiteProvisioner_CreateIndexSucceeds(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvisioner(t)

	if err := p.CreateTable(ctx, "widgets", widgetSchema(), nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if err := p.CreateIndex(ctx, "widgets", []string{"name"}, false); err != nil {
		t.Fatalf("create index failed: %v", err)
	}
}
