// Package provision implements the table provisioning operations a
// writable backend exposes: create a table and its indexes, insert a
// batch with an optional conflict policy, and clear existing data.
// SQLiteProvisioner, mirroring data_components/src/sqlite.rs, is the
// only implementation; no other connector implements Provisioner, and
// factory.CreateExternalTable reports read_write mode against them as
// Unsupported.
package provision

import (
	"context"

	"github.com/nullstream/sqlfed/internal/canonical"
)

// Provisioner is the capability interface a poolconn.Connection
// optionally also implements when its backend can be written to, not
// just queried. Callers type-assert a Connection to Provisioner rather
// than relying on every connector implementing it.
type Provisioner interface {
	// TableExists reports whether table already exists in the backend.
	TableExists(ctx context.Context, table string) (bool, error)

	// CreateTable issues the backend's DDL for schema, using
	// primaryKeys (may be empty) as the table's primary key columns.
	CreateTable(ctx context.Context, table string, schema *canonical.Schema, primaryKeys []string) error

	// CreateIndex issues the backend's DDL for an index over columns.
	CreateIndex(ctx context.Context, table string, columns []string, unique bool) error

	// InsertBatch appends batch's rows to table, applying onConflict
	// (nil means a plain INSERT with no conflict handling).
	InsertBatch(ctx context.Context, table string, batch *canonical.RecordBatch, onConflict *OnConflict) error

	// DeleteAll removes every row from table without dropping it.
	DeleteAll(ctx context.Context, table string) error

	// DeleteFrom removes the rows matching whereClause, returning the
	// number of rows removed.
	DeleteFrom(ctx context.Context, table, whereClause string) (int64, error)
}
