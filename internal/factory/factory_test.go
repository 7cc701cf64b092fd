package factory

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nullstream/sqlfed/internal/canonical"
	"github.com/nullstream/sqlfed/internal/poolconn"
	"github.com/nullstream/sqlfed/internal/provision"
)

type stubPool struct {
	vendorType string
	conn       poolconn.Connection
}

func (p *stubPool) VendorType() string { return p.vendorType }
func (p *stubPool) Connect(ctx context.Context) (poolconn.Connection, error) {
	return p.conn, nil
}
func (p *stubPool) Close() error { return nil }

type stubConnection struct {
	schema *canonical.Schema
}

func (c *stubConnection) VendorType() string { return "sqlite" }
func (c *stubConnection) GetSchema(ctx context.Context, table string) (*canonical.Schema, error) {
	return c.schema, nil
}
func (c *stubConnection) QueryArrow(ctx context.Context, query string, args ...any) (poolconn.BatchStream, error) {
	return nil, nil
}
func (c *stubConnection) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return 0, nil
}
func (c *stubConnection) JoinPushDown() poolconn.JoinPushDown { return poolconn.Disallow }
func (c *stubConnection) Close() error                        { return nil }

// stubProvisioningConnection embeds stubConnection and additionally
// implements provision.Provisioner, mimicking SQLitePool's connection.
type stubProvisioningConnection struct {
	stubConnection
	exists  bool
	created bool
	indexed []string
}

func (c *stubProvisioningConnection) TableExists(ctx context.Context, table string) (bool, error) {
	return c.exists, nil
}
func (c *stubProvisioningConnection) CreateTable(ctx context.Context, table string, schema *canonical.Schema, primaryKeys []string) error {
	c.created = true
	return nil
}
func (c *stubProvisioningConnection) CreateIndex(ctx context.Context, table string, columns []string, unique bool) error {
	c.indexed = append(c.indexed, columns[0])
	return nil
}
func (c *stubProvisioningConnection) InsertBatch(ctx context.Context, table string, batch *canonical.RecordBatch, onConflict *provision.OnConflict) error {
	return nil
}
func (c *stubProvisioningConnection) DeleteAll(ctx context.Context, table string) error { return nil }
func (c *stubProvisioningConnection) DeleteFrom(ctx context.Context, table, whereClause string) (int64, error) {
	return 0, nil
}

func TestCreateExternalTable_ReadOnlyBackendSkipsProvisioning(t *testing.T) {
	conn := &stubConnection{}
	pool := &stubPool{vendorType: "flightsql", conn: conn}

	table, err := CreateExternalTable(context.Background(), pool, "orders", Options{Mode: "read"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Provisioner != nil {
		t.Fatal("expected no Provisioner for a connection that doesn't implement one")
	}
}

func TestCreateExternalTable_ReadWriteOnNonProvisionerFails(t *testing.T) {
	conn := &stubConnection{}
	pool := &stubPool{vendorType: "flightsql", conn: conn}

	_, err := CreateExternalTable(context.Background(), pool, "orders", Options{Mode: "read_write"}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected an error requesting read_write against a read-only backend")
	}
}

func TestCreateExternalTable_ProvisionsMissingTable(t *testing.T) {
	schema := &canonical.Schema{Fields: []canonical.Field{{Name: "id", Type: canonical.DataType{ID: canonical.Int64}}}}
	conn := &stubProvisioningConnection{stubConnection: stubConnection{schema: schema}, exists: false}
	pool := &stubPool{vendorType: "sqlite", conn: conn}

	table, err := CreateExternalTable(context.Background(), pool, "orders", Options{
		Mode:    "read_write",
		Indexes: []provision.IndexSpec{{Columns: []string{"id"}}},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Provisioner == nil {
		t.Fatal("expected a Provisioner to be attached")
	}
	if !conn.created {
		t.Fatal("expected CreateTable to be called for a missing table")
	}
	if len(conn.indexed) != 1 || conn.indexed[0] != "id" {
		t.Fatalf("expected CreateIndex to be called with [id], got %v", conn.indexed)
	}
}

func TestCreateExternalTable_SkipsProvisioningWhenTableExists(t *testing.T) {
	conn := &stubProvisioningConnection{stubConnection: stubConnection{}, exists: true}
	pool := &stubPool{vendorType: "sqlite", conn: conn}

	_, err := CreateExternalTable(context.Background(), pool, "orders", Options{Mode: "read_write"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.created {
		t.Fatal("expected CreateTable not to be called when the table already exists")
	}
}
