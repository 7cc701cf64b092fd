// Package canonical defines the vendor-neutral columnar data model that
// every backend connector decodes into and every consumer reads from.
// It is a thin, closed-sum restatement of the subset of Arrow's type
// system this module actually needs, backed by arrow-go record batches.
package canonical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// DataTypeID enumerates the closed set of canonical scalar and nested
// types. Unlike arrow.Type, this set is deliberately small: only the
// types a supported backend can actually produce.
type DataTypeID int

const (
	Boolean DataTypeID = iota
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float32
	Float64
	Utf8
	LargeUtf8
	Binary
	LargeBinary
	Date32
	Timestamp
	Decimal128Type
	ListType
	StructType
	// None marks a column whose source type a connector's mapper could
	// not represent (an OID/native type with no canonical equivalent).
	// Builder never instantiates an array for it and NewRecordBatch
	// prunes it from the resulting RecordBatch's schema and record,
	// while the batch's row count is unaffected.
	None
)

func (id DataTypeID) String() string {
	switch id {
	case Boolean:
		return "boolean"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case UInt8:
		return "uint8"
	case UInt16:
		return "uint16"
	case UInt32:
		return "uint32"
	case UInt64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Utf8:
		return "utf8"
	case LargeUtf8:
		return "large_utf8"
	case Binary:
		return "binary"
	case LargeBinary:
		return "large_binary"
	case Date32:
		return "date32"
	case Timestamp:
		return "timestamp"
	case Decimal128Type:
		return "decimal128"
	case ListType:
		return "list"
	case StructType:
		return "struct"
	case None:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(id))
	}
}

// DataType describes one canonical field type. Precision/Scale apply
// only to Decimal128Type; TimeUnit applies only to Timestamp; Elem
// applies only to ListType; Children applies only to StructType.
type DataType struct {
	ID        DataTypeID
	Precision int32
	Scale     int32
	TimeUnit  arrow.TimeUnit
	Elem      *DataType
	Children  []Field
}

// Field is a named, nullable column type.
type Field struct {
	Name     string
	Type     DataType
	Nullable bool
}

// Schema is an ordered set of fields, the canonical analogue of a
// table's column list as reported by a connector's GetSchema.
type Schema struct {
	Fields []Field
}

// FieldByName returns the field with the given name, or false if absent.
func (s *Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ArrowType converts a canonical DataType into its arrow-go equivalent.
// This is the one direction that must always succeed: every canonical
// type was constructed to have an exact Arrow representation.
func (t DataType) ArrowType() arrow.DataType {
	switch t.ID {
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	case Int8:
		return arrow.PrimitiveTypes.Int8
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case UInt8:
		return arrow.PrimitiveTypes.Uint8
	case UInt16:
		return arrow.PrimitiveTypes.Uint16
	case UInt32:
		return arrow.PrimitiveTypes.Uint32
	case UInt64:
		return arrow.PrimitiveTypes.Uint64
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Utf8:
		return arrow.BinaryTypes.String
	case LargeUtf8:
		return arrow.BinaryTypes.LargeString
	case Binary:
		return arrow.BinaryTypes.Binary
	case LargeBinary:
		return arrow.BinaryTypes.LargeBinary
	case Date32:
		return arrow.FixedWidthTypes.Date32
	case Timestamp:
		unit := t.TimeUnit
		return &arrow.TimestampType{Unit: unit}
	case Decimal128Type:
		return &arrow.Decimal128Type{Precision: t.Precision, Scale: t.Scale}
	case ListType:
		return arrow.ListOf(t.Elem.ArrowType())
	case StructType:
		fields := make([]arrow.Field, len(t.Children))
		for i, c := range t.Children {
			fields[i] = arrow.Field{Name: c.Name, Type: c.Type.ArrowType(), Nullable: c.Nullable}
		}
		return arrow.StructOf(fields...)
	default:
		// None has no Arrow representation by design: Builder.NewRecordBatch
		// prunes None columns before a schema is ever turned into an
		// arrow.Schema, so reaching this panic means a None field escaped
		// that pruning.
		panic(fmt.Sprintf("canonical: unhandled DataTypeID %v", t.ID))
	}
}

// ArrowSchema converts the whole canonical Schema into an arrow.Schema.
func (s *Schema) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = arrow.Field{Name: f.Name, Type: f.Type.ArrowType(), Nullable: f.Nullable}
	}
	return arrow.NewSchema(fields, nil)
}

// TimestampField builds a nullable Timestamp field with the given unit,
// the shape every connector's schema mapper needs for datetime columns.
func TimestampField(name string, unit arrow.TimeUnit, nullable bool) Field {
	return Field{Name: name, Type: DataType{ID: Timestamp, TimeUnit: unit}, Nullable: nullable}
}

// Decimal128Field builds a nullable Decimal128 field. Precision/Scale
// are placeholders until the first non-null value is observed for
// vendors (PostgreSQL NUMERIC) that don't report them up front; see
// Builder.decimalScale in builder.go.
func Decimal128Field(name string, precision, scale int32, nullable bool) Field {
	return Field{Name: name, Type: DataType{ID: Decimal128Type, Precision: precision, Scale: scale}, Nullable: nullable}
}
