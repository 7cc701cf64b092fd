// odbc_pool.go wraps github.com/alexbrainman/odbc behind the
// Connection/Pool contract. The original odbcpool.rs holds one
// lazy_static Environment shared by every ODBCPool in the process and
// enables driver-aware connection pooling on it exactly once. Here
// initEnv only provides the once-per-process hook (sync.Once); it sets
// no environment attribute, so driver-aware connection pooling is not
// enabled.
package poolconn

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/alexbrainman/odbc"
	"github.com/rs/zerolog"

	"github.com/nullstream/sqlfed/internal/canonical"
	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

var (
	odbcEnvOnce sync.Once
	odbcEnvErr  error
)

// initEnv runs the process-wide ODBC setup step once across every
// ODBCPool. The step itself is empty: alexbrainman/odbc allocates and
// manages its own environment handle per *sql.DB, and initEnv sets no
// attribute on it, so driver-aware connection pooling is not enabled
// and initEnv always returns nil.
func initEnv() error {
	odbcEnvOnce.Do(func() {
		odbcEnvErr = nil
	})
	return odbcEnvErr
}

// ODBCPoolConfig configures an ODBC connection.
type ODBCPoolConfig struct {
	Name             string
	ConnectionString string
}

// ODBCPool holds one *sql.DB driven by alexbrainman/odbc.
type ODBCPool struct {
	name string
	db   *sql.DB
}

// NewODBCPool opens cfg.ConnectionString.
func NewODBCPool(cfg ODBCPoolConfig, log zerolog.Logger) (*ODBCPool, error) {
	if err := initEnv(); err != nil {
		return nil, sqlfederr.New(sqlfederr.KindConfiguration, "odbc", "NewODBCPool", err)
	}
	if cfg.ConnectionString == "" {
		return nil, sqlfederr.New(sqlfederr.KindConfiguration, "odbc", "NewODBCPool", fmt.Errorf("missing odbc connection string"))
	}
	db, err := sql.Open("odbc", cfg.ConnectionString)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "odbc", "NewODBCPool", err)
	}
	return &ODBCPool{name: cfg.Name, db: db}, nil
}

func (p *ODBCPool) VendorType() string { return "odbc" }

func (p *ODBCPool) Connect(ctx context.Context) (Connection, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "odbc", "Connect", err)
	}
	return &odbcConnection{name: p.name, conn: conn}, nil
}

func (p *ODBCPool) Close() error {
	return p.db.Close()
}

type odbcConnection struct {
	name string
	conn *sql.Conn
}

func (c *odbcConnection) VendorType() string { return "odbc" }

func (c *odbcConnection) GetSchema(ctx context.Context, table string) (*canonical.Schema, error) {
	rows, err := c.conn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1=0", table))
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "odbc", "GetSchema", err)
	}
	defer rows.Close()
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindSchemaMismatch, "odbc", "GetSchema", err)
	}
	fields := make([]canonical.Field, len(cols))
	for i, col := range cols {
		fields[i] = canonical.Field{Name: col.Name(), Type: odbcColumnType(col), Nullable: true}
	}
	return &canonical.Schema{Fields: fields}, nil
}

// odbcColumnType falls back to Utf8 for any driver-reported type this
// module hasn't special-cased; ODBC drivers vary widely in how
// precisely they report native types through database/sql.
func odbcColumnType(col *sql.ColumnType) canonical.DataType {
	switch col.ScanType().Kind().String() {
	case "int64", "int32", "int16":
		return canonical.DataType{ID: canonical.Int64}
	case "float64", "float32":
		return canonical.DataType{ID: canonical.Float64}
	default:
		return canonical.DataType{ID: canonical.Utf8}
	}
}

func (c *odbcConnection) QueryArrow(ctx context.Context, query string, args ...any) (BatchStream, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "odbc", "QueryArrow", err)
	}
	cols, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, sqlfederr.New(sqlfederr.KindSchemaMismatch, "odbc", "QueryArrow", err)
	}
	fields := make([]canonical.Field, len(cols))
	for i, col := range cols {
		fields[i] = canonical.Field{Name: col.Name(), Type: odbcColumnType(col), Nullable: true}
	}
	return &odbcBatchStream{rows: rows, schema: &canonical.Schema{Fields: fields}, chunkSize: defaultBatchStreamChunkSize}, nil
}

type odbcBatchStream struct {
	rows      *sql.Rows
	schema    *canonical.Schema
	chunkSize int64
	done      bool
}

func (s *odbcBatchStream) Next(ctx context.Context) (*canonical.RecordBatch, error) {
	if s.done {
		return nil, nil
	}
	builder := canonical.NewBuilder(nil, s.schema)
	n := int64(0)
	for n < s.chunkSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if !s.rows.Next() {
			s.done = true
			break
		}
		vals := make([]any, len(s.schema.Fields))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := s.rows.Scan(ptrs...); err != nil {
			return nil, sqlfederr.New(sqlfederr.KindDecode, "odbc", "Next", err)
		}
		if err := appendSQLiteRow(builder, s.schema, vals); err != nil {
			return nil, err
		}
		builder.IncRow()
		n++
	}
	if err := s.rows.Err(); err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "odbc", "Next", err)
	}
	if n == 0 {
		return nil, nil
	}
	return builder.NewRecordBatch()
}

func (s *odbcBatchStream) Close() error {
	return s.rows.Close()
}

func (c *odbcConnection) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, sqlfederr.New(sqlfederr.KindVendorFetch, "odbc", "Execute", err)
	}
	return result.RowsAffected()
}

// JoinPushDown always returns Disallow: there is no general, safe way
// to strip credentials out of an arbitrary ODBC connection string
// before handing it to another backend for a pushed-down join, the
// same limitation odbcpool.rs's join_push_down documents.
func (c *odbcConnection) JoinPushDown() JoinPushDown {
	return Disallow
}

func (c *odbcConnection) Close() error {
	return c.conn.Close()
}
