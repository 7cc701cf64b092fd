// sqlite_pool.go wraps modernc.org/sqlite behind the Connection/Pool
// contract. The underlying driver serializes writers, so every
// operation runs through a single-goroutine worker loop, the Go
// analogue of tokio_rusqlite::Connection::call in the original
// sqlite.rs connector: every `conn.call(move |conn| ...)` closure
// there becomes a Call(ctx, func(*sql.Tx) error) submitted to the loop
// here instead of being run directly against a shared *sql.DB.
package poolconn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nullstream/sqlfed/internal/canonical"
	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

// sqliteCall is one unit of work submitted to the worker loop.
type sqliteCall struct {
	fn   func(*sql.Tx) error
	done chan error
}

// SQLitePool owns one *sql.DB (backed by a single file or :memory:) and
// a worker goroutine that serializes every transaction against it,
// avoiding SQLITE_BUSY errors under concurrent callers without relying
// on modernc.org/sqlite's own locking to arbitrate fairly.
type SQLitePool struct {
	name   string
	db     *sql.DB
	shared *Shared[*sql.DB]
	calls  chan sqliteCall
	done   chan struct{}
	log    zerolog.Logger
}

// SQLitePoolConfig configures a SQLite connection pool.
type SQLitePoolConfig struct {
	Name string
	Path string // file path, or ":memory:"
}

// NewSQLitePool opens cfg.Path and starts the worker loop.
func NewSQLitePool(cfg SQLitePoolConfig, log zerolog.Logger) (*SQLitePool, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindConfiguration, "sqlite", "NewSQLitePool", err)
	}
	// A single physical connection keeps every call serialized through
	// the same SQLite connection handle, matching the single-connection
	// actor the original tokio_rusqlite wrapper holds.
	db.SetMaxOpenConns(1)

	p := &SQLitePool{
		name:   cfg.Name,
		db:     db,
		shared: NewShared(db, func(d *sql.DB) error { return d.Close() }),
		calls:  make(chan sqliteCall),
		done:   make(chan struct{}),
		log:    log.With().Str("backend", cfg.Name).Logger(),
	}
	go p.run()
	return p, nil
}

func (p *SQLitePool) run() {
	for {
		select {
		case call := <-p.calls:
			call.done <- p.runOne(call.fn)
		case <-p.done:
			return
		}
	}
}

func (p *SQLitePool) runOne(fn func(*sql.Tx) error) (err error) {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// Call submits fn to the worker loop and blocks until it runs (or ctx
// is cancelled first).
func (p *SQLitePool) Call(ctx context.Context, fn func(*sql.Tx) error) error {
	call := sqliteCall{fn: fn, done: make(chan error, 1)}
	select {
	case p.calls <- call:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return sqlfederr.New(sqlfederr.KindConfiguration, "sqlite", "Call", fmt.Errorf("pool %s is closed", p.name))
	}
	select {
	case err := <-call.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *SQLitePool) VendorType() string { return "sqlite" }

func (p *SQLitePool) Connect(ctx context.Context) (Connection, error) {
	p.shared.Acquire()
	return &sqliteConnection{pool: p}, nil
}

func (p *SQLitePool) Close() error {
	close(p.done)
	return p.shared.Release()
}

type sqliteConnection struct {
	pool *SQLitePool
}

func (c *sqliteConnection) VendorType() string { return "sqlite" }

func (c *sqliteConnection) GetSchema(ctx context.Context, table string) (*canonical.Schema, error) {
	var schema *canonical.Schema
	err := c.pool.Call(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %q LIMIT 0", table))
		if err != nil {
			return err
		}
		defer rows.Close()
		cols, err := rows.ColumnTypes()
		if err != nil {
			return err
		}
		fields := make([]canonical.Field, len(cols))
		for i, col := range cols {
			fields[i] = canonical.Field{Name: col.Name(), Type: sqliteColumnType(col), Nullable: true}
		}
		schema = &canonical.Schema{Fields: fields}
		return nil
	})
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "sqlite", "GetSchema", err)
	}
	return schema, nil
}

// sqliteColumnType maps SQLite's dynamic column declared-type strings
// (itself "type affinity", not a hard type) onto the canonical system
// by exact match against the names listed below. Any other declared
// type maps to Utf8, including names SQLite's own affinity rules give
// integer or real affinity (e.g. BIGINT, DOUBLE PRECISION).
func sqliteColumnType(col *sql.ColumnType) canonical.DataType {
	switch col.DatabaseTypeName() {
	case "INTEGER", "INT":
		return canonical.DataType{ID: canonical.Int64}
	case "REAL", "DOUBLE", "FLOAT":
		return canonical.DataType{ID: canonical.Float64}
	case "BLOB":
		return canonical.DataType{ID: canonical.Binary}
	default:
		return canonical.DataType{ID: canonical.Utf8}
	}
}

func (c *sqliteConnection) QueryArrow(ctx context.Context, query string, args ...any) (BatchStream, error) {
	schema, err := inferQuerySchema(ctx, c.pool, query, args)
	if err != nil {
		return nil, err
	}
	rowsCh := make(chan sqliteRowBatch, 1)
	go func() {
		defer close(rowsCh)
		err := c.pool.Call(ctx, func(tx *sql.Tx) error {
			rows, err := tx.QueryContext(ctx, query, args...)
			if err != nil {
				rowsCh <- sqliteRowBatch{err: err}
				return err
			}
			defer rows.Close()
			for rows.Next() {
				vals := make([]any, len(schema.Fields))
				ptrs := make([]any, len(vals))
				for i := range vals {
					ptrs[i] = &vals[i]
				}
				if err := rows.Scan(ptrs...); err != nil {
					rowsCh <- sqliteRowBatch{err: err}
					return err
				}
				select {
				case rowsCh <- sqliteRowBatch{values: vals}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return rows.Err()
		})
		if err != nil {
			return
		}
	}()
	return &sqliteBatchStream{schema: schema, rows: rowsCh, chunkSize: defaultBatchStreamChunkSize}, nil
}

func inferQuerySchema(ctx context.Context, pool *SQLitePool, query string, args []any) (*canonical.Schema, error) {
	var schema *canonical.Schema
	err := pool.Call(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		cols, err := rows.ColumnTypes()
		if err != nil {
			return err
		}
		fields := make([]canonical.Field, len(cols))
		for i, col := range cols {
			fields[i] = canonical.Field{Name: col.Name(), Type: sqliteColumnType(col), Nullable: true}
		}
		schema = &canonical.Schema{Fields: fields}
		return nil
	})
	return schema, err
}

// appendSQLiteRow appends one row of database/sql-scanned values to
// builder according to schema's declared affinities. database/sql
// already converts the SQLite driver's dynamic storage classes into Go
// int64/float64/[]byte/string/nil for us; this only has to route each
// value to the right canonical builder.
func appendSQLiteRow(b *canonical.Builder, schema *canonical.Schema, values []any) error {
	for col, v := range values {
		if v == nil {
			b.Builder(col).AppendNull()
			continue
		}
		switch schema.Fields[col].Type.ID {
		case canonical.Int64:
			switch n := v.(type) {
			case int64:
				b.Builder(col).(*array.Int64Builder).Append(n)
			default:
				return sqlfederr.New(sqlfederr.KindDecode, "sqlite", "appendSQLiteRow", fmt.Errorf("unexpected type %T for integer column", v))
			}
		case canonical.Float64:
			switch n := v.(type) {
			case float64:
				b.Builder(col).(*array.Float64Builder).Append(n)
			default:
				return sqlfederr.New(sqlfederr.KindDecode, "sqlite", "appendSQLiteRow", fmt.Errorf("unexpected type %T for real column", v))
			}
		case canonical.Binary:
			switch n := v.(type) {
			case []byte:
				b.Builder(col).(*array.BinaryBuilder).Append(n)
			default:
				return sqlfederr.New(sqlfederr.KindDecode, "sqlite", "appendSQLiteRow", fmt.Errorf("unexpected type %T for blob column", v))
			}
		default:
			switch n := v.(type) {
			case string:
				b.Builder(col).(*array.StringBuilder).Append(n)
			case []byte:
				b.Builder(col).(*array.StringBuilder).Append(string(n))
			case int64:
				b.Builder(col).(*array.StringBuilder).Append(fmt.Sprintf("%d", n))
			case float64:
				b.Builder(col).(*array.StringBuilder).Append(fmt.Sprintf("%v", n))
			default:
				return sqlfederr.New(sqlfederr.KindDecode, "sqlite", "appendSQLiteRow", fmt.Errorf("unexpected type %T for text column", v))
			}
		}
	}
	return nil
}

type sqliteRowBatch struct {
	values []any
	err    error
}

type sqliteBatchStream struct {
	schema    *canonical.Schema
	rows      chan sqliteRowBatch
	chunkSize int64
}

func (s *sqliteBatchStream) Next(ctx context.Context) (*canonical.RecordBatch, error) {
	builder := canonical.NewBuilder(nil, s.schema)
	n := int64(0)
	for n < s.chunkSize {
		select {
		case rb, ok := <-s.rows:
			if !ok {
				if n == 0 {
					return nil, nil
				}
				return builder.NewRecordBatch()
			}
			if rb.err != nil {
				return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "sqlite", "Next", rb.err)
			}
			if err := appendSQLiteRow(builder, s.schema, rb.values); err != nil {
				return nil, err
			}
			builder.IncRow()
			n++
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n == 0 {
		return nil, nil
	}
	return builder.NewRecordBatch()
}

func (s *sqliteBatchStream) Close() error {
	for range s.rows {
		// drain so the producer goroutine's Call can return
	}
	return nil
}

func (c *sqliteConnection) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := c.pool.Call(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, sqlfederr.New(sqlfederr.KindVendorFetch, "sqlite", "Execute", err)
	}
	return affected, nil
}

func (c *sqliteConnection) JoinPushDown() JoinPushDown {
	return AllowedFor("sqlite:" + c.pool.name)
}

func (c *sqliteConnection) Close() error {
	return c.pool.shared.Release()
}
