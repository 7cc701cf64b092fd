// postgres_pool.go wraps pgxpool.Pool behind the Connection/Pool
// contract. Pool tuning and circuit-breaker-wrapped execution are
// adapted from the teacher's internal/db/db.go, which pooled a single
// application database; here the same shape is generalized to one pool
// per configured backend.
package poolconn

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/nullstream/sqlfed/internal/canonical"
	"github.com/nullstream/sqlfed/internal/decode"
	"github.com/nullstream/sqlfed/internal/obs"
	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

// PostgresPoolConfig configures a PostgreSQL connection pool.
type PostgresPoolConfig struct {
	Name            string // backend name, used for pool metrics and the join push-down key
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PostgresPool wraps a pgxpool.Pool, routing every query/execute
// through a per-backend circuit breaker.
type PostgresPool struct {
	name     string
	pool     *pgxpool.Pool
	breakers *obs.BreakerManager
	log      zerolog.Logger
}

// NewPostgresPool creates and pings a pgxpool.Pool from cfg.
func NewPostgresPool(ctx context.Context, cfg PostgresPoolConfig, breakers *obs.BreakerManager, log zerolog.Logger) (*PostgresPool, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindConfiguration, "postgres", "NewPostgresPool", err)
	}

	if cfg.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgxCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pgxCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pgxCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pgxCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "postgres", "NewPostgresPool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "postgres", "NewPostgresPool", err)
	}

	return &PostgresPool{
		name:     cfg.Name,
		pool:     pool,
		breakers: breakers,
		log:      log.With().Str("backend", cfg.Name).Logger(),
	}, nil
}

func (p *PostgresPool) VendorType() string { return "postgres" }

func (p *PostgresPool) Connect(ctx context.Context) (Connection, error) {
	stat := p.pool.Stat()
	obs.UpdatePoolConnections(p.name, stat.AcquiredConns(), stat.IdleConns())
	return &postgresConnection{name: p.name, pool: p.pool, breakers: p.breakers, log: p.log}, nil
}

func (p *PostgresPool) Close() error {
	p.pool.Close()
	return nil
}

// Health reports whether the pool can still reach the database.
func (p *PostgresPool) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

type postgresConnection struct {
	name     string
	pool     *pgxpool.Pool
	breakers *obs.BreakerManager
	log      zerolog.Logger
}

func (c *postgresConnection) VendorType() string { return "postgres" }

func (c *postgresConnection) GetSchema(ctx context.Context, table string) (*canonical.Schema, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT 0", table)
	schema, err := c.breakers.Execute("postgres", func() (any, error) {
		rows, err := c.pool.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		fds := decode.FieldDescriptionsFromRows(rows)
		return decode.PostgresSchema(fds)
	})
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "postgres", "GetSchema", err)
	}
	return schema.(*canonical.Schema), nil
}

func (c *postgresConnection) QueryArrow(ctx context.Context, query string, args ...any) (BatchStream, error) {
	start := time.Now()
	rows, err := c.breakers.Execute("postgres", func() (any, error) {
		return c.pool.Query(ctx, query, args...)
	})
	obs.RecordVendorFetch("postgres", "QueryArrow", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "postgres", "QueryArrow", err)
	}
	return newPostgresBatchStream(rows.(pgx.Rows)), nil
}

func (c *postgresConnection) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := c.breakers.Execute("postgres", func() (any, error) {
		tag, err := c.pool.Exec(ctx, query, args...)
		if err != nil {
			return int64(0), err
		}
		return tag.RowsAffected(), nil
	})
	if err != nil {
		return 0, sqlfederr.New(sqlfederr.KindVendorFetch, "postgres", "Execute", err)
	}
	return result.(int64), nil
}

func (c *postgresConnection) JoinPushDown() JoinPushDown {
	return AllowedFor("postgres:" + c.name)
}

func (c *postgresConnection) Close() error {
	return nil // connections are checked out of the shared pool per-call, nothing to release
}

// postgresBatchStream decodes a pgx.Rows into canonical.RecordBatch
// values one fixed-size chunk at a time, so a full table scan never
// has to materialize in memory at once.
type postgresBatchStream struct {
	rows      pgx.Rows
	schema    *canonical.Schema
	oids      []uint32
	chunkSize int64
	done      bool
}

const defaultBatchStreamChunkSize = 4096

func newPostgresBatchStream(rows pgx.Rows) *postgresBatchStream {
	return &postgresBatchStream{rows: rows, chunkSize: defaultBatchStreamChunkSize}
}

func (s *postgresBatchStream) ensureSchema() error {
	if s.schema != nil {
		return nil
	}
	fds := decode.FieldDescriptionsFromRows(s.rows)
	schema, err := decode.PostgresSchema(fds)
	if err != nil {
		return err
	}
	oids := make([]uint32, len(fds))
	for i, fd := range fds {
		oids[i] = fd.DataTypeOID
	}
	s.schema = schema
	s.oids = oids
	return nil
}

func (s *postgresBatchStream) Next(ctx context.Context) (*canonical.RecordBatch, error) {
	if s.done {
		return nil, nil
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}

	builder := canonical.NewBuilder(nil, s.schema)
	rowsInChunk := int64(0)
	for rowsInChunk < s.chunkSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if !s.rows.Next() {
			s.done = true
			break
		}
		raw := s.rows.RawValues()
		for col, val := range raw {
			if err := decode.DecodeColumnValue(builder, col, s.oids[col], val, rowsInChunk); err != nil {
				return nil, err
			}
		}
		builder.IncRow()
		rowsInChunk++
	}
	if err := s.rows.Err(); err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "postgres", "Next", err)
	}
	if rowsInChunk == 0 {
		return nil, nil
	}
	obs.RecordRowsDecoded("postgres", float64(rowsInChunk))
	return builder.NewRecordBatch()
}

func (s *postgresBatchStream) Close() error {
	s.rows.Close()
	return nil
}
