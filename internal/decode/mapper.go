package decode

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nullstream/sqlfed/internal/canonical"
)

// PostgresFieldType maps a pgx field description's OID to a canonical
// DataType. This is the Go restatement of map_column_type_to_data_type:
// a flat switch rather than the macro-generated dispatch table the
// original used, since Go has no declarative macro equivalent.
func PostgresFieldType(oid uint32, typeMod int32) (canonical.DataType, error) {
	switch oid {
	case pgtype.BoolOID:
		return canonical.DataType{ID: canonical.Boolean}, nil
	case pgtype.Int2OID:
		return canonical.DataType{ID: canonical.Int16}, nil
	case pgtype.Int4OID:
		return canonical.DataType{ID: canonical.Int32}, nil
	case pgtype.Int8OID:
		return canonical.DataType{ID: canonical.Int64}, nil
	case pgtype.Float4OID:
		return canonical.DataType{ID: canonical.Float32}, nil
	case pgtype.Float8OID:
		return canonical.DataType{ID: canonical.Float64}, nil
	case pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID, pgtype.NameOID:
		return canonical.DataType{ID: canonical.Utf8}, nil
	case pgtype.ByteaOID:
		return canonical.DataType{ID: canonical.Binary}, nil
	case pgtype.DateOID:
		return canonical.DataType{ID: canonical.Date32}, nil
	case pgtype.TimestampOID:
		return canonical.DataType{ID: canonical.Timestamp, TimeUnit: arrow.Millisecond}, nil
	case pgtype.TimestamptzOID:
		return canonical.DataType{ID: canonical.Timestamp, TimeUnit: arrow.Millisecond}, nil
	case pgtype.NumericOID:
		// Precision/scale are unknown until the first non-null value is
		// decoded; see canonical.Builder.EnsureDecimalBuilder.
		return canonical.DataType{ID: canonical.Decimal128Type, Precision: 38, Scale: 0}, nil
	case pgtype.UUIDOID:
		return canonical.DataType{ID: canonical.Utf8}, nil
	case pgtype.JSONOID, pgtype.JSONBOID:
		return canonical.DataType{ID: canonical.Utf8}, nil
	case pgtype.BoolArrayOID, pgtype.Int2ArrayOID, pgtype.Int4ArrayOID, pgtype.Int8ArrayOID,
		pgtype.Float4ArrayOID, pgtype.Float8ArrayOID, pgtype.TextArrayOID, pgtype.VarcharArrayOID:
		elem, ok := postgresArrayElemType(oid)
		if !ok {
			break
		}
		return canonical.DataType{ID: canonical.ListType, Elem: &elem}, nil
	}
	// Unmapped OID: includes every composite/record type (PostgreSQL
	// reports only RECORDOID for an anonymous row value with no static
	// field list, so its shape is only known once wire data for a row
	// arrives) and any OID this mapper hasn't special-cased. Rather than
	// failing the whole query, the column is dropped: Builder never
	// builds it and NewRecordBatch prunes it, so every other column in
	// the same row still decodes.
	return canonical.DataType{ID: canonical.None}, nil
}

// postgresArrayElemType returns the canonical element type for one of
// the primitive PostgreSQL array OIDs this mapper supports.
func postgresArrayElemType(oid uint32) (canonical.DataType, bool) {
	switch oid {
	case pgtype.BoolArrayOID:
		return canonical.DataType{ID: canonical.Boolean}, true
	case pgtype.Int2ArrayOID:
		return canonical.DataType{ID: canonical.Int16}, true
	case pgtype.Int4ArrayOID:
		return canonical.DataType{ID: canonical.Int32}, true
	case pgtype.Int8ArrayOID:
		return canonical.DataType{ID: canonical.Int64}, true
	case pgtype.Float4ArrayOID:
		return canonical.DataType{ID: canonical.Float32}, true
	case pgtype.Float8ArrayOID:
		return canonical.DataType{ID: canonical.Float64}, true
	case pgtype.TextArrayOID, pgtype.VarcharArrayOID:
		return canonical.DataType{ID: canonical.Utf8}, true
	default:
		return canonical.DataType{}, false
	}
}
