package provision

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/nullstream/sqlfed/internal/canonical"
	"github.com/nullstream/sqlfed/internal/obs"
	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

// sqliteCaller is the subset of poolconn.SQLitePool this package
// depends on, kept narrow so provision doesn't import poolconn and
// create a cycle (poolconn's factory wires the two together instead).
type sqliteCaller interface {
	Call(ctx context.Context, fn func(*sql.Tx) error) error
}

// SQLiteProvisioner implements Provisioner against a SQLite pool,
// porting Sqlite::{create_table,create_index,insert_batch,
// delete_all_table_data,delete_from,table_exists} from
// data_components/src/sqlite.rs.
type SQLiteProvisioner struct {
	pool    sqliteCaller
	dialect SQLiteDialect
}

// NewSQLiteProvisioner wraps pool.
func NewSQLiteProvisioner(pool sqliteCaller) *SQLiteProvisioner {
	return &SQLiteProvisioner{pool: pool}
}

func (p *SQLiteProvisioner) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := p.pool.Call(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type='table' AND name = ?)`, table,
		).Scan(&exists)
	})
	if err != nil {
		return false, sqlfederr.New(sqlfederr.KindProvisioning, "sqlite", "TableExists", err)
	}
	return exists, nil
}

func (p *SQLiteProvisioner) CreateTable(ctx context.Context, table string, schema *canonical.Schema, primaryKeys []string) error {
	sqlText := CreateTableSQL(p.dialect, table, schema, primaryKeys)
	err := p.pool.Call(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlText)
		return err
	})
	recordProvisionOutcome("create_table", err)
	if err != nil {
		return sqlfederr.New(sqlfederr.KindProvisioning, "sqlite", "CreateTable", err)
	}
	return nil
}

func (p *SQLiteProvisioner) CreateIndex(ctx context.Context, table string, columns []string, unique bool) error {
	sqlText := CreateIndexSQL(p.dialect, table, columns, unique)
	err := p.pool.Call(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlText)
		return err
	})
	recordProvisionOutcome("create_index", err)
	if err != nil {
		return sqlfederr.New(sqlfederr.KindProvisioning, "sqlite", "CreateIndex", err)
	}
	return nil
}

// InsertBatch inserts every row of batch in one statement-per-row
// transaction, applying onConflict's clause to each INSERT the same
// way InsertBuilder::build_sqlite does for a whole RecordBatch at once.
func (p *SQLiteProvisioner) InsertBatch(ctx context.Context, table string, batch *canonical.RecordBatch, onConflict *OnConflict) error {
	schema := batch.Schema()
	rec := batch.Record()

	colNames := make([]string, len(schema.Fields))
	placeholders := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		colNames[i] = p.dialect.Quote(f.Name)
		placeholders[i] = "?"
	}
	onConflictClause := p.dialect.OnConflictClause(onConflict, table, schema)
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
		p.dialect.Quote(table), strings.Join(colNames, ", "), strings.Join(placeholders, ", "), onConflictClause)
	insertSQL = strings.TrimSpace(insertSQL)

	err := p.pool.Call(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for row := int64(0); row < batch.NumRows(); row++ {
			args, err := rowValues(rec, row)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
		return nil
	})
	recordProvisionOutcome("insert_batch", err)
	if err != nil {
		return sqlfederr.New(sqlfederr.KindProvisioning, "sqlite", "InsertBatch", err)
	}
	return nil
}

// rowValues extracts row's scalar values from rec in database/sql's
// driver.Value-compatible form.
func rowValues(rec arrow.Record, row int64) ([]any, error) {
	args := make([]any, rec.NumCols())
	for col := int64(0); col < rec.NumCols(); col++ {
		arr := rec.Column(int(col))
		if arr.IsNull(int(row)) {
			args[col] = nil
			continue
		}
		switch a := arr.(type) {
		case *array.Boolean:
			args[col] = a.Value(int(row))
		case *array.Int8:
			args[col] = a.Value(int(row))
		case *array.Int16:
			args[col] = a.Value(int(row))
		case *array.Int32:
			args[col] = a.Value(int(row))
		case *array.Int64:
			args[col] = a.Value(int(row))
		case *array.Uint8:
			args[col] = a.Value(int(row))
		case *array.Uint16:
			args[col] = a.Value(int(row))
		case *array.Uint32:
			args[col] = a.Value(int(row))
		case *array.Uint64:
			args[col] = a.Value(int(row))
		case *array.Float32:
			args[col] = a.Value(int(row))
		case *array.Float64:
			args[col] = a.Value(int(row))
		case *array.String:
			args[col] = a.Value(int(row))
		case *array.Binary:
			args[col] = a.Value(int(row))
		case *array.Decimal128:
			args[col] = a.Value(int(row)).ToString(a.DataType().(*arrow.Decimal128Type).Scale)
		default:
			return nil, sqlfederr.New(sqlfederr.KindDecode, "sqlite", "rowValues", fmt.Errorf("unsupported column array type %T", arr))
		}
	}
	return args, nil
}

func (p *SQLiteProvisioner) DeleteAll(ctx context.Context, table string) error {
	err := p.pool.Call(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", p.dialect.Quote(table)))
		return err
	})
	recordProvisionOutcome("delete_all", err)
	if err != nil {
		return sqlfederr.New(sqlfederr.KindProvisioning, "sqlite", "DeleteAll", err)
	}
	return nil
}

func (p *SQLiteProvisioner) DeleteFrom(ctx context.Context, table, whereClause string) (int64, error) {
	var affected int64
	err := p.pool.Call(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", p.dialect.Quote(table), whereClause))
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	recordProvisionOutcome("delete_from", err)
	if err != nil {
		return 0, sqlfederr.New(sqlfederr.KindProvisioning, "sqlite", "DeleteFrom", err)
	}
	return affected, nil
}

func recordProvisionOutcome(op string, err error) {
	obs.RecordProvision(op, 0, err)
}
