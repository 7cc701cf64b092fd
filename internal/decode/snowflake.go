// snowflake.go casts Snowflake's raw Arrow batches into canonical form.
// gosnowflake's WithArrowBatches escape hatch hands back TIMESTAMP_NTZ
// columns encoded as a two-field struct (epoch seconds, fractional
// nanoseconds) rather than as an Arrow timestamp; this mirrors
// snowflake_schema_cast/cast_sf_timestamp_ntz_to_arrow_timestamp, which
// detects that struct shape via the field's logicalType metadata and
// rewrites it into a proper millisecond timestamp column.
package decode

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

// sfLogicalTypeKey is the Arrow field metadata key gosnowflake attaches
// to struct-encoded TIMESTAMP_NTZ/TIMESTAMP_LTZ columns.
const sfLogicalTypeKey = "logicalType"
const sfTimestampNTZ = "TIMESTAMP_NTZ"

// NeedsTimestampNTZCast reports whether field f is a Snowflake
// struct-encoded TIMESTAMP_NTZ column that CastTimestampNTZColumn must
// rewrite before the batch can be treated as canonical.
func NeedsTimestampNTZCast(f arrow.Field) bool {
	v, ok := f.Metadata.GetValue(sfLogicalTypeKey), f.Metadata.FindKey(sfLogicalTypeKey) >= 0
	return ok && v == sfTimestampNTZ
}

// CastTimestampNTZColumn converts a struct{epoch int64, fraction int32}
// column into an arrow.Timestamp(Millisecond) column:
//
//	millis = epoch*1000 + fraction/1_000_000
//
// A null struct element (both children null, or the struct's own
// validity bit unset) produces a null timestamp.
func CastTimestampNTZColumn(mem memory.Allocator, col arrow.Array) (arrow.Array, error) {
	structCol, ok := col.(*array.Struct)
	if !ok {
		return nil, sqlfederr.New(sqlfederr.KindSchemaMismatch, "snowflake", "CastTimestampNTZColumn",
			fmt.Errorf("expected struct column, got %T", col))
	}
	if structCol.NumField() != 2 {
		return nil, sqlfederr.New(sqlfederr.KindSchemaMismatch, "snowflake", "CastTimestampNTZColumn",
			fmt.Errorf("expected 2-field timestamp_ntz struct, got %d fields", structCol.NumField()))
	}
	epochCol, ok := structCol.Field(0).(*array.Int64)
	if !ok {
		return nil, sqlfederr.New(sqlfederr.KindSchemaMismatch, "snowflake", "CastTimestampNTZColumn",
			fmt.Errorf("timestamp_ntz epoch field is %T, want int64", structCol.Field(0)))
	}
	fracCol, ok := structCol.Field(1).(*array.Int32)
	if !ok {
		return nil, sqlfederr.New(sqlfederr.KindSchemaMismatch, "snowflake", "CastTimestampNTZColumn",
			fmt.Errorf("timestamp_ntz fraction field is %T, want int32", structCol.Field(1)))
	}

	bld := array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Millisecond})
	defer bld.Release()

	for i := 0; i < structCol.Len(); i++ {
		if structCol.IsNull(i) || epochCol.IsNull(i) {
			bld.AppendNull()
			continue
		}
		epoch := epochCol.Value(i)
		var frac int32
		if !fracCol.IsNull(i) {
			frac = fracCol.Value(i)
		}
		millis := epoch*1000 + int64(frac)/1_000_000
		bld.Append(arrow.Timestamp(millis))
	}
	return bld.NewArray(), nil
}

// CastTimestampNTZFields walks rec's schema and replaces every
// struct-encoded TIMESTAMP_NTZ column with its cast timestamp
// equivalent, returning a new record. Columns that don't need casting
// are passed through with their reference count retained.
func CastTimestampNTZFields(mem memory.Allocator, rec arrow.Record) (arrow.Record, error) {
	schema := rec.Schema()
	cols := make([]arrow.Array, rec.NumCols())
	fields := make([]arrow.Field, rec.NumCols())

	needsCast := false
	for i := 0; i < int(rec.NumCols()); i++ {
		f := schema.Field(i)
		if NeedsTimestampNTZCast(f) {
			needsCast = true
			cast, err := CastTimestampNTZColumn(mem, rec.Column(i))
			if err != nil {
				return nil, err
			}
			cols[i] = cast
			fields[i] = arrow.Field{Name: f.Name, Type: cast.DataType(), Nullable: f.Nullable}
			defer cols[i].Release()
			continue
		}
		rec.Column(i).Retain()
		cols[i] = rec.Column(i)
		fields[i] = f
		defer cols[i].Release()
	}

	if !needsCast {
		rec.Retain()
		return rec, nil
	}

	newSchema := arrow.NewSchema(fields, nil)
	return array.NewRecord(newSchema, cols, rec.NumRows()), nil
}
