// snowflake_pool.go wraps gosnowflake behind the Connection/Pool
// contract. Schema discovery peeks the first Arrow batch of a
// `SELECT * FROM <table> LIMIT 1` the way snowflakeconn.rs's
// get_schema does with snowflake_api's exec. QueryArrow only retrieves
// the query's Arrow batch handles up front; each handle's actual data is
// fetched lazily, one at a time, from BatchStream.Next, so a caller that
// stops calling Next never pays for batches it didn't ask for and the
// same cooperative-cancellation contract BatchStream documents holds
// here too.
package poolconn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/rs/zerolog"
	sf "github.com/snowflakedb/gosnowflake"

	"github.com/nullstream/sqlfed/internal/canonical"
	"github.com/nullstream/sqlfed/internal/decode"
	"github.com/nullstream/sqlfed/internal/obs"
	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

// SnowflakePoolConfig configures a Snowflake account connection.
type SnowflakePoolConfig struct {
	Name      string
	Account   string
	User      string
	Password  string
	Warehouse string
	Database  string
	Schema    string
	Role      string
}

// SnowflakePool holds one *sql.DB driven by gosnowflake.
type SnowflakePool struct {
	name     string
	db       *sql.DB
	breakers *obs.BreakerManager
	log      zerolog.Logger
}

// NewSnowflakePool opens a Snowflake connection via gosnowflake's DSN
// builder.
func NewSnowflakePool(cfg SnowflakePoolConfig, breakers *obs.BreakerManager, log zerolog.Logger) (*SnowflakePool, error) {
	dsn, err := sf.DSN(&sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Warehouse: cfg.Warehouse,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Role:      cfg.Role,
	})
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindConfiguration, "snowflake", "NewSnowflakePool", err)
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindConfiguration, "snowflake", "NewSnowflakePool", err)
	}
	return &SnowflakePool{name: cfg.Name, db: db, breakers: breakers, log: log.With().Str("backend", cfg.Name).Logger()}, nil
}

func (p *SnowflakePool) VendorType() string { return "snowflake" }

func (p *SnowflakePool) Connect(ctx context.Context) (Connection, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "snowflake", "Connect", err)
	}
	return &snowflakeConnection{name: p.name, db: p.db, conn: conn, breakers: p.breakers}, nil
}

func (p *SnowflakePool) Close() error {
	return p.db.Close()
}

type snowflakeConnection struct {
	name     string
	db       *sql.DB
	conn     *sql.Conn
	breakers *obs.BreakerManager
}

func (c *snowflakeConnection) VendorType() string { return "snowflake" }

func (c *snowflakeConnection) GetSchema(ctx context.Context, table string) (*canonical.Schema, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT 1", table)
	batches, err := c.fetchArrowBatchHandles(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return &canonical.Schema{}, nil
	}
	recs, err := batches[0].Fetch()
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "snowflake", "GetSchema", err)
	}
	if len(*recs) == 0 {
		return &canonical.Schema{}, nil
	}
	defer (*recs)[0].Release()
	return arrowSchemaToCanonical((*recs)[0].Schema())
}

func (c *snowflakeConnection) QueryArrow(ctx context.Context, query string, args ...any) (BatchStream, error) {
	start := time.Now()
	batches, err := c.fetchArrowBatchHandles(ctx, query, args...)
	obs.RecordVendorFetch("snowflake", "QueryArrow", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, err
	}
	return &snowflakeBatchStream{batches: batches}, nil
}

// fetchArrowBatchHandles runs query through gosnowflake's
// WithArrowBatches escape hatch and returns the resulting batch handles
// without fetching any of their data; each handle's Fetch is called
// lazily later, once per handle, from snowflakeBatchStream.Next (or
// once, eagerly, by GetSchema, which only ever needs the first one).
func (c *snowflakeConnection) fetchArrowBatchHandles(ctx context.Context, query string, args ...any) ([]*sf.ArrowBatch, error) {
	ctx = sf.WithArrowBatches(ctx)
	result, err := c.breakers.Execute("snowflake", func() (any, error) {
		rows, err := c.conn.QueryContext(ctx, query, toDriverArgs(args)...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return rows.(sf.SnowflakeRows).GetArrowBatches()
	})
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "snowflake", "fetchArrowBatchHandles", err)
	}
	return result.([]*sf.ArrowBatch), nil
}

func toDriverArgs(args []any) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, a := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: a}
	}
	return out
}

// arrowSchemaToCanonical gives every Snowflake-returned column an Utf8
// placeholder canonical type; callers only use the result for field
// names and nullability, since the real payload travels as the
// already-cast arrow.Record the stream hands back directly.
func arrowSchemaToCanonical(schema *arrow.Schema) (*canonical.Schema, error) {
	fields := make([]canonical.Field, schema.NumFields())
	for i, f := range schema.Fields() {
		fields[i] = canonical.Field{Name: f.Name, Nullable: f.Nullable, Type: canonical.DataType{ID: canonical.Utf8}}
	}
	return &canonical.Schema{Fields: fields}, nil
}

func (c *snowflakeConnection) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := c.breakers.Execute("snowflake", func() (any, error) {
		res, err := c.conn.ExecContext(ctx, query, args...)
		if err != nil {
			return int64(0), err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return 0, sqlfederr.New(sqlfederr.KindVendorFetch, "snowflake", "Execute", err)
	}
	return result.(int64), nil
}

func (c *snowflakeConnection) JoinPushDown() JoinPushDown {
	return AllowedFor("snowflake:" + c.name)
}

func (c *snowflakeConnection) Close() error {
	return c.conn.Close()
}

// snowflakeBatchStream pulls one Arrow batch handle's data at a time.
// Unlike Postgres/SQLite, gosnowflake's WithArrowBatches escape hatch
// hands back whole batches rather than a row cursor, so there is no
// per-row decoding here; but the batch handles themselves are fetched
// one at a time instead of all up front, so a caller that abandons the
// stream midway never pays to download batches it never asked for.
type snowflakeBatchStream struct {
	batches  []*sf.ArrowBatch
	batchIdx int

	pending    []arrow.Record
	pendingIdx int
}

func (s *snowflakeBatchStream) Next(ctx context.Context) (*canonical.RecordBatch, error) {
	for s.pendingIdx >= len(s.pending) {
		if s.batchIdx >= len(s.batches) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		b := s.batches[s.batchIdx]
		s.batchIdx++
		recs, err := b.Fetch()
		if err != nil {
			return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "snowflake", "Next", err)
		}
		pending := make([]arrow.Record, 0, len(*recs))
		for _, r := range *recs {
			cast, err := decode.CastTimestampNTZFields(nil, r)
			if err != nil {
				return nil, err
			}
			pending = append(pending, cast)
		}
		s.pending = pending
		s.pendingIdx = 0
	}

	rec := s.pending[s.pendingIdx]
	s.pendingIdx++
	schema, err := arrowSchemaToCanonical(rec.Schema())
	if err != nil {
		return nil, err
	}
	obs.RecordRowsDecoded("snowflake", float64(rec.NumRows()))
	return canonical.NewRecordBatch(schema, rec, rec.NumRows()), nil
}

func (s *snowflakeBatchStream) Close() error {
	for _, r := range s.pending[s.pendingIdx:] {
		r.Release()
	}
	return nil
}
