// Package poolconn defines the uniform connection-pool contract every
// backend connector implements (PostgreSQL, SQLite, Snowflake, ODBC,
// FlightSQL) and the supporting types (BatchStream, JoinPushDown) that
// let the rest of the module treat any backend polymorphically.
package poolconn

import (
	"context"

	"github.com/nullstream/sqlfed/internal/canonical"
)

// JoinPushDownKind classifies whether and how a backend can execute a
// join against another table from the same connection without pulling
// both sides into the accelerator first.
type JoinPushDownKind int

const (
	// JoinPushDownDisallow means joins must be evaluated by the caller
	// after fetching both sides independently.
	JoinPushDownDisallow JoinPushDownKind = iota
	// JoinPushDownAllowedFor means the backend can push a join down,
	// scoped to the join key named in JoinPushDown.Key.
	JoinPushDownAllowedFor
)

// JoinPushDown describes a connection's join push-down capability.
type JoinPushDown struct {
	Kind JoinPushDownKind
	Key  string // meaningful only when Kind == JoinPushDownAllowedFor
}

// Disallow is the zero-value JoinPushDown. ODBC is the only connection
// that reports it, and always does, since its connection string
// may embed credentials that cannot be safely inspected or rewritten
// for a pushed-down query.
var Disallow = JoinPushDown{Kind: JoinPushDownDisallow}

// AllowedFor builds a JoinPushDown scoped to key.
func AllowedFor(key string) JoinPushDown {
	return JoinPushDown{Kind: JoinPushDownAllowedFor, Key: key}
}

// BatchStream is a pull-based, cancellable source of RecordBatch
// values. Next returns (nil, nil) once the stream is exhausted.
// Callers must call Close when finished, whether or not the stream was
// drained, to release any held vendor resources.
type BatchStream interface {
	Next(ctx context.Context) (*canonical.RecordBatch, error)
	Close() error
}

// Connection is the uniform contract every backend connector
// implements: connect once, discover schema, run a query as a stream
// of canonical batches, and run a statement that doesn't return rows.
// There is no as-any downcast anywhere in this interface; a capability
// a particular vendor doesn't have (provisioning, vector search) is
// exposed instead through a narrower interface (see provision.Provisioner,
// vectorsearch.EmbeddingTable) that a connection optionally also
// implements, and callers type-assert to that specific interface
// rather than to a concrete struct.
type Connection interface {
	// VendorType identifies the backend kind ("postgres", "sqlite",
	// "snowflake", "odbc", "flightsql") for logging, metrics, and
	// error attribution.
	VendorType() string

	// GetSchema resolves the canonical schema of the named table.
	GetSchema(ctx context.Context, table string) (*canonical.Schema, error)

	// QueryArrow runs query and returns a stream of canonical batches.
	QueryArrow(ctx context.Context, query string, args ...any) (BatchStream, error)

	// Execute runs a statement that does not return rows (DDL, or DML
	// outside the provisioning path), returning the number of rows
	// affected where the backend can report one.
	Execute(ctx context.Context, query string, args ...any) (int64, error)

	// JoinPushDown reports this connection's join push-down capability.
	JoinPushDown() JoinPushDown

	// Close releases the connection (or, for pooled backends, returns
	// it to the pool).
	Close() error
}

// Pool is a factory for Connections against one configured backend. A
// Pool is shared across every table that names the same backend
// configuration; individual Connections are checked out per operation.
type Pool interface {
	VendorType() string
	Connect(ctx context.Context) (Connection, error)
	Close() error
}
