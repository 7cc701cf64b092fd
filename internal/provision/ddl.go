package provision

import (
	"fmt"
	"strings"

	"github.com/nullstream/sqlfed/internal/canonical"
)

// Dialect generates the DDL/DML fragments CreateTable, CreateIndex,
// and InsertBatch need, so the provisioning operations above stay
// backend-agnostic and only a Dialect implementation is backend
// specific. It stands in for sea-query's builder in the original Rust
// connector, scoped down to exactly the fragments this module needs.
type Dialect interface {
	// Quote wraps an identifier in the dialect's quoting convention.
	Quote(name string) string
	// ColumnType renders dt as a column type declaration.
	ColumnType(dt canonical.DataType) string
	// OnConflictClause renders oc as a trailing ON CONFLICT clause for
	// an INSERT statement against table, given its schema.
	OnConflictClause(oc *OnConflict, table string, schema *canonical.Schema) string
}

// SQLiteDialect is the only Dialect with a complete, tested
// implementation — the rest of this package's schema-mutating
// operations are SQLite-only, per the provisioning scope note in
// provision.go.
type SQLiteDialect struct{}

func (SQLiteDialect) Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnType maps a canonical.DataType onto one of SQLite's five
// storage classes/affinities (INTEGER, REAL, TEXT, BLOB, NUMERIC);
// SQLite only enforces affinity, not the declared type, so several
// canonical types share a storage class.
func (SQLiteDialect) ColumnType(dt canonical.DataType) string {
	switch dt.ID {
	case canonical.Boolean, canonical.Int8, canonical.Int16, canonical.Int32, canonical.Int64,
		canonical.UInt8, canonical.UInt16, canonical.UInt32, canonical.UInt64:
		return "INTEGER"
	case canonical.Float32, canonical.Float64:
		return "REAL"
	case canonical.Utf8, canonical.LargeUtf8:
		return "TEXT"
	case canonical.Binary, canonical.LargeBinary:
		return "BLOB"
	case canonical.Date32, canonical.Timestamp:
		return "TEXT" // ISO-8601 strings, SQLite's own convention for datetimes
	case canonical.Decimal128Type:
		return "NUMERIC"
	default:
		return "BLOB"
	}
}

func (d SQLiteDialect) OnConflictClause(oc *OnConflict, table string, schema *canonical.Schema) string {
	if oc == nil {
		return ""
	}
	switch oc.Action {
	case Ignore:
		return "ON CONFLICT DO NOTHING"
	case Upsert:
		keySet := make(map[string]bool, len(oc.Keys))
		for _, k := range oc.Keys {
			keySet[k] = true
		}
		var sets []string
		for _, f := range schema.Fields {
			if keySet[f.Name] {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", d.Quote(f.Name), d.Quote(f.Name)))
		}
		if len(sets) == 0 {
			return "ON CONFLICT DO NOTHING"
		}
		quotedKeys := make([]string, len(oc.Keys))
		for i, k := range oc.Keys {
			quotedKeys[i] = d.Quote(k)
		}
		return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(quotedKeys, ", "), strings.Join(sets, ", "))
	default:
		return ""
	}
}

// CreateTableSQL builds a CREATE TABLE statement for table from schema
// using dialect, the Go analogue of CreateTableBuilder::build_sqlite.
func CreateTableSQL(dialect Dialect, table string, schema *canonical.Schema, primaryKeys []string) string {
	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		nullability := ""
		if !f.Nullable {
			nullability = " NOT NULL"
		}
		cols[i] = fmt.Sprintf("%s %s%s", dialect.Quote(f.Name), dialect.ColumnType(f.Type), nullability)
	}
	if len(primaryKeys) > 0 {
		quoted := make([]string, len(primaryKeys))
		for i, k := range primaryKeys {
			quoted[i] = dialect.Quote(k)
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", dialect.Quote(table), strings.Join(cols, ", "))
}

// CreateIndexSQL builds a CREATE INDEX statement, the Go analogue of
// IndexBuilder::build_sqlite.
func CreateIndexSQL(dialect Dialect, table string, columns []string, unique bool) string {
	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = dialect.Quote(c)
	}
	indexName := fmt.Sprintf("idx_%s_%s", table, strings.Join(columns, "_"))
	uniqueKw := ""
	if unique {
		uniqueKw = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", uniqueKw, dialect.Quote(indexName), dialect.Quote(table), strings.Join(quotedCols, ", "))
}
