// Package factory wires a backend's config into a connected
// poolconn.Pool, the Go analogue of the original's
// TableProviderFactory::create — constructing the table's writer
// before sharing it, rather than unwrapping and rewrapping an Arc
// after the fact the way Sqlite::create did in
// data_components/src/sqlite.rs (see DESIGN.md for that redesign note).
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nullstream/sqlfed/internal/config"
	"github.com/nullstream/sqlfed/internal/obs"
	"github.com/nullstream/sqlfed/internal/poolconn"
	"github.com/nullstream/sqlfed/internal/provision"
	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

// Options carries the table-level options a provider create call
// takes alongside the backend connection: the storage mode, which
// indexes to build, and the conflict policy for writes.
type Options struct {
	Mode       string // "read" or "read_write"
	Indexes    []provision.IndexSpec
	OnConflict *provision.OnConflict
}

// ExternalTable is the fully constructed handle returned to callers: a
// live connection plus, when the backend supports writes, its
// Provisioner.
type ExternalTable struct {
	Connection  poolconn.Connection
	Provisioner provision.Provisioner // nil if the backend is read-only
}

// CreateExternalTable connects to backend, and if opts.Mode requests
// writes and the backend is SQLite (the only fully writable backend in
// this core, see provision.go), provisions the table's schema and
// indexes before returning it — so a caller never observes a table
// handle that exists but isn't ready to accept writes.
func CreateExternalTable(ctx context.Context, pool poolconn.Pool, tableName string, opts Options, log zerolog.Logger) (*ExternalTable, error) {
	conn, err := pool.Connect(ctx)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, pool.VendorType(), "CreateExternalTable", err)
	}

	table := &ExternalTable{Connection: conn}

	provisioner, ok := conn.(provision.Provisioner)
	if !ok {
		if sqlitePool, isSQLite := pool.(*poolconn.SQLitePool); isSQLite {
			provisioner, ok = provision.NewSQLiteProvisioner(sqlitePool), true
		}
	}
	if !ok {
		if opts.Mode == "read_write" {
			return nil, sqlfederr.New(sqlfederr.KindUnsupported, pool.VendorType(), "CreateExternalTable",
				fmt.Errorf("backend %s does not support read_write mode", pool.VendorType()))
		}
		return table, nil
	}
	table.Provisioner = provisioner

	if opts.Mode != "read_write" {
		return table, nil
	}

	exists, err := provisioner.TableExists(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if !exists {
		schema, err := conn.GetSchema(ctx, tableName)
		if err != nil {
			return nil, err
		}
		if err := provisioner.CreateTable(ctx, tableName, schema, nil); err != nil {
			return nil, err
		}
		for _, idx := range opts.Indexes {
			if err := provisioner.CreateIndex(ctx, tableName, idx.Columns, idx.Unique); err != nil {
				return nil, err
			}
		}
	}

	return table, nil
}

// NewPool constructs the poolconn.Pool for a single backend config,
// dispatching on its VendorType.
func NewPool(ctx context.Context, name string, b config.BackendConfig, breakers *obs.BreakerManager, log zerolog.Logger) (poolconn.Pool, error) {
	switch b.VendorType {
	case "postgres":
		return poolconn.NewPostgresPool(ctx, poolconn.PostgresPoolConfig{
			Name:            name,
			DSN:             b.GetPostgresDSN(),
			MaxConns:        int32(b.PoolSize),
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		}, breakers, log)
	case "sqlite":
		path := b.SQLiteFile
		if b.Mode == "memory" {
			path = ":memory:"
		} else if path == "" {
			path = name + "_sqlite.db"
		}
		return poolconn.NewSQLitePool(poolconn.SQLitePoolConfig{Name: name, Path: path}, log)
	case "snowflake":
		return poolconn.NewSnowflakePool(poolconn.SnowflakePoolConfig{
			Name:      name,
			Account:   b.Account,
			User:      b.User,
			Password:  b.Password,
			Warehouse: b.Warehouse,
			Database:  b.Database,
			Schema:    b.Schema,
			Role:      b.Role,
		}, breakers, log)
	case "odbc":
		return poolconn.NewODBCPool(poolconn.ODBCPoolConfig{Name: name, ConnectionString: b.ConnectionString}, log)
	case "flightsql":
		return poolconn.NewFlightSQLPool(ctx, poolconn.FlightSQLPoolConfig{
			Name:     name,
			Endpoint: b.Endpoint,
			UseTLS:   b.UseTLS,
			User:     b.User,
			Password: b.Password,
		}, log)
	default:
		return nil, sqlfederr.New(sqlfederr.KindConfiguration, b.VendorType, "NewPool", fmt.Errorf("unknown vendor_type %q", b.VendorType))
	}
}
