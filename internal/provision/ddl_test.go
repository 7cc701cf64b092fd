package provision

import (
	"strings"
	"testing"

	"github.com/nullstream/sqlfed/internal/canonical"
)

func testSchema() *canonical.Schema {
	return &canonical.Schema{Fields: []canonical.Field{
		{Name: "id", Type: canonical.DataType{ID: canonical.Int64}, Nullable: false},
		{Name: "symbol", Type: canonical.DataType{ID: canonical.Utf8}, Nullable: false},
		{Name: "price", Type: canonical.DataType{ID: canonical.Decimal128Type, Precision: 18, Scale: 4}, Nullable: true},
	}}
}

func TestCreateTableSQL_IncludesPrimaryKey(t *testing.T) {
	sql := CreateTableSQL(SQLiteDialect{}, "quotes", testSchema(), []string{"id"})
	if !strings.Contains(sql, `"id" INTEGER NOT NULL`) {
		t.Fatalf("expected id column, got: %s", sql)
	}
	if !strings.Contains(sql, `"price" NUMERIC`) {
		t.Fatalf("expected price column as NUMERIC, got: %s", sql)
	}
	if !strings.Contains(sql, `PRIMARY KEY ("id")`) {
		t.Fatalf("expected primary key clause, got: %s", sql)
	}
}

func TestCreateIndexSQL_Unique(t *testing.T) {
	sql := CreateIndexSQL(SQLiteDialect{}, "quotes", []string{"symbol"}, true)
	if !strings.HasPrefix(sql, "CREATE UNIQUE INDEX") {
		t.Fatalf("expected unique index, got: %s", sql)
	}
}

func TestOnConflictClause_Ignore(t *testing.T) {
	oc := &OnConflict{Action: Ignore, Keys: []string{"id"}}
	clause := SQLiteDialect{}.OnConflictClause(oc, "quotes", testSchema())
	if clause != "ON CONFLICT DO NOTHING" {
		t.Fatalf("unexpected clause: %s", clause)
	}
}

func TestOnConflictClause_UpsertSetsNonKeyColumns(t *testing.T) {
	oc := &OnConflict{Action: Upsert, Keys: []string{"id"}}
	clause := SQLiteDialect{}.OnConflictClause(oc, "quotes", testSchema())
	if !strings.Contains(clause, `"symbol" = excluded."symbol"`) {
		t.Fatalf("expected symbol to be set from excluded, got: %s", clause)
	}
	if strings.Contains(clause, `"id" = excluded."id"`) {
		t.Fatalf("key column should not be in the SET list, got: %s", clause)
	}
}

func TestOnConflictClause_NilMeansNoClause(t *testing.T) {
	if clause := (SQLiteDialect{}).OnConflictClause(nil, "quotes", testSchema()); clause != "" {
		t.Fatalf("expected empty clause for nil OnConflict, got: %s", clause)
	}
}
