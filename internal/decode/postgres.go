// postgres.go decodes a stream of PostgreSQL binary-format rows into a
// canonical.RecordBatch. It reads each column's raw wire bytes via
// pgx's Rows.RawValues() rather than pgx's own typed Values(), because
// the binary NUMERIC format needs the bit-exact treatment in numeric.go
// and because every other fixed-width type's wire encoding is simple
// enough to decode directly without allocating through pgx's generic
// codec path for every row.
package decode

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nullstream/sqlfed/internal/canonical"
	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

// postgresEpochDays is the offset, in days, between the Unix epoch and
// PostgreSQL's internal epoch (2000-01-01), which Date32 and Timestamp
// wire values are counted from.
const postgresEpochDays = 10957

// postgresEpochMicros is postgresEpochDays expressed in microseconds.
const postgresEpochMicros = int64(postgresEpochDays) * 86400 * 1_000_000

// PostgresSchema builds a canonical.Schema from a pgx field description
// list, the Go analogue of columns_to_schema.
func PostgresSchema(fds []pgconnFieldDescription) (*canonical.Schema, error) {
	fields := make([]canonical.Field, len(fds))
	for i, fd := range fds {
		dt, err := PostgresFieldType(fd.DataTypeOID, fd.TypeModifier)
		if err != nil {
			return nil, err
		}
		fields[i] = canonical.Field{Name: fd.Name, Type: dt, Nullable: true}
	}
	return &canonical.Schema{Fields: fields}, nil
}

// pgconnFieldDescription mirrors the subset of pgconn.FieldDescription
// this package needs, decoupling the mapper from pgx's exact struct
// layout across versions.
type pgconnFieldDescription struct {
	Name         string
	DataTypeOID  uint32
	TypeModifier int32
}

// FieldDescriptionsFromRows extracts the subset of field metadata this
// package needs from a live pgx.Rows.
func FieldDescriptionsFromRows(rows pgx.Rows) []pgconnFieldDescription {
	fds := rows.FieldDescriptions()
	out := make([]pgconnFieldDescription, len(fds))
	for i, fd := range fds {
		out[i] = pgconnFieldDescription{Name: fd.Name, DataTypeOID: fd.DataTypeOID, TypeModifier: fd.TypeModifier}
	}
	return out
}

// DecodeRows consumes rows to completion, decoding each row's raw
// binary column values into builder. Callers own the batch builder's
// lifetime; DecodeRows only appends.
func DecodeRows(rows pgx.Rows, schema *canonical.Schema, oids []uint32, builder *canonical.Builder) error {
	rowIdx := int64(0)
	for rows.Next() {
		raw := rows.RawValues()
		for col, val := range raw {
			if err := decodePostgresValue(builder, col, oids[col], val, rowIdx); err != nil {
				return err
			}
		}
		builder.IncRow()
		rowIdx++
	}
	if err := rows.Err(); err != nil {
		return sqlfederr.New(sqlfederr.KindVendorFetch, "postgres", "DecodeRows", err)
	}
	return nil
}

// DecodeColumnValue decodes a single column's raw binary wire value
// into b, appending a null when raw is nil. It is the per-value
// primitive DecodeRows loops over; streaming callers that need to
// yield a RecordBatch before a pgx.Rows is fully drained call it
// directly instead of going through DecodeRows.
func DecodeColumnValue(b *canonical.Builder, col int, oid uint32, raw []byte, rowIdx int64) error {
	return decodePostgresValue(b, col, oid, raw, rowIdx)
}

func decodePostgresValue(b *canonical.Builder, col int, oid uint32, raw []byte, rowIdx int64) error {
	if raw == nil {
		return appendNull(b, col, oid, rowIdx)
	}

	switch oid {
	case pgtype.BoolOID:
		b.Builder(col).(*array.BooleanBuilder).Append(raw[0] != 0)
	case pgtype.Int2OID:
		b.Builder(col).(*array.Int16Builder).Append(int16(binary.BigEndian.Uint16(raw)))
	case pgtype.Int4OID:
		b.Builder(col).(*array.Int32Builder).Append(int32(binary.BigEndian.Uint32(raw)))
	case pgtype.Int8OID:
		b.Builder(col).(*array.Int64Builder).Append(int64(binary.BigEndian.Uint64(raw)))
	case pgtype.Float4OID:
		b.Builder(col).(*array.Float32Builder).Append(math.Float32frombits(binary.BigEndian.Uint32(raw)))
	case pgtype.Float8OID:
		b.Builder(col).(*array.Float64Builder).Append(math.Float64frombits(binary.BigEndian.Uint64(raw)))
	case pgtype.TextOID, pgtype.VarcharOID, pgtype.NameOID, pgtype.JSONOID:
		b.Builder(col).(*array.StringBuilder).Append(string(raw))
	case pgtype.BPCharOID:
		// BPCHAR is blank-padded to its declared width on disk; strip the
		// trailing padding so it round-trips the same as other text types.
		b.Builder(col).(*array.StringBuilder).Append(strings.TrimRight(string(raw), " "))
	case pgtype.JSONBOID:
		if len(raw) < 1 {
			return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresValue", fmt.Errorf("empty jsonb payload"))
		}
		b.Builder(col).(*array.StringBuilder).Append(string(raw[1:])) // skip version byte
	case pgtype.ByteaOID:
		b.Builder(col).(*array.BinaryBuilder).Append(raw)
	case pgtype.UUIDOID:
		if len(raw) != 16 {
			return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresValue", fmt.Errorf("uuid payload not 16 bytes: %d", len(raw)))
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresValue", err)
		}
		b.Builder(col).(*array.StringBuilder).Append(id.String())
	case pgtype.DateOID:
		days := int32(binary.BigEndian.Uint32(raw))
		b.Builder(col).(*array.Date32Builder).Append(arrowDate32(days + postgresEpochDays))
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		micros := int64(binary.BigEndian.Uint64(raw))
		unixMicros := micros + postgresEpochMicros
		if unixMicros < 0 {
			// A timestamp before the Unix epoch (e.g. a historical date
			// column) has no valid arrow.Timestamp(Millisecond) value in
			// this model; drop it as a null rather than wrapping to a
			// nonsense post-epoch instant.
			b.Builder(col).AppendNull()
			return nil
		}
		// Integer division truncates toward zero; for a non-negative
		// unixMicros that's the same as flooring to the millisecond.
		millis := unixMicros / 1000
		b.Builder(col).(*array.TimestampBuilder).Append(arrowTimestamp(millis))
	case pgtype.NumericOID:
		decoded, err := DecodeNumeric(raw)
		if err != nil {
			return err
		}
		if !b.DecimalBuilderReady(col) {
			if _, err := b.EnsureDecimalBuilder(col, decoded.Scale, rowIdx); err != nil {
				return err
			}
		}
		num, err := ToDecimal128(decoded)
		if err != nil {
			return err
		}
		b.AppendDecimalValue(col, num)
	case pgtype.BoolArrayOID, pgtype.Int2ArrayOID, pgtype.Int4ArrayOID, pgtype.Int8ArrayOID,
		pgtype.Float4ArrayOID, pgtype.Float8ArrayOID, pgtype.TextArrayOID, pgtype.VarcharArrayOID:
		elemDT, ok := postgresArrayElemType(oid)
		if !ok {
			return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresValue", fmt.Errorf("unsupported array OID %d", oid))
		}
		return decodePostgresArrayValue(b, col, elemDT.ID, raw)
	default:
		if b.IsDropped(col) {
			// The schema mapper couldn't represent this OID (most
			// commonly a composite/record type) and typed the column
			// canonical.None; NewRecordBatch prunes it from the output
			// rather than failing every row that has a value in it.
			return nil
		}
		return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresValue", fmt.Errorf("unsupported OID %d", oid))
	}
	return nil
}

// decodePostgresArrayValue decodes one PostgreSQL binary-format array
// value into column col's array.ListBuilder. Only the one-dimensional
// case is supported; multi-dimensional arrays are rare in practice for
// the primitive element types this mapper handles and are rejected
// rather than silently flattened or truncated.
func decodePostgresArrayValue(b *canonical.Builder, col int, elem canonical.DataTypeID, raw []byte) error {
	if len(raw) < 12 {
		return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresArrayValue", fmt.Errorf("array payload too short: %d bytes", len(raw)))
	}
	ndim := int32(binary.BigEndian.Uint32(raw[0:4]))
	// raw[4:8] is the has-null flag and raw[8:12] is the element OID;
	// both are redundant here since every element below carries its own
	// -1-length-means-null marker and the element type was already fixed
	// for this column at schema time.
	lb := b.Builder(col).(*array.ListBuilder)
	if ndim == 0 {
		lb.Append(true)
		return nil
	}
	if ndim != 1 {
		return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresArrayValue", fmt.Errorf("unsupported array dimensionality %d", ndim))
	}
	if len(raw) < 20 {
		return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresArrayValue", fmt.Errorf("array payload truncated"))
	}
	length := int32(binary.BigEndian.Uint32(raw[12:16]))
	off := 20
	lb.Append(true)
	vb := lb.ValueBuilder()
	for i := int32(0); i < length; i++ {
		if off+4 > len(raw) {
			return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresArrayValue", fmt.Errorf("array payload truncated"))
		}
		elemLen := int32(binary.BigEndian.Uint32(raw[off : off+4]))
		off += 4
		if elemLen < 0 {
			vb.AppendNull()
			continue
		}
		if off+int(elemLen) > len(raw) {
			return sqlfederr.New(sqlfederr.KindDecode, "postgres", "decodePostgresArrayValue", fmt.Errorf("array payload truncated"))
		}
		if err := appendArrayElement(vb, elem, raw[off:off+int(elemLen)]); err != nil {
			return err
		}
		off += int(elemLen)
	}
	return nil
}

// appendArrayElement decodes one array element's raw wire bytes into vb,
// the same binary formats decodePostgresValue's scalar cases use.
func appendArrayElement(vb array.Builder, elem canonical.DataTypeID, raw []byte) error {
	switch elem {
	case canonical.Boolean:
		vb.(*array.BooleanBuilder).Append(raw[0] != 0)
	case canonical.Int16:
		vb.(*array.Int16Builder).Append(int16(binary.BigEndian.Uint16(raw)))
	case canonical.Int32:
		vb.(*array.Int32Builder).Append(int32(binary.BigEndian.Uint32(raw)))
	case canonical.Int64:
		vb.(*array.Int64Builder).Append(int64(binary.BigEndian.Uint64(raw)))
	case canonical.Float32:
		vb.(*array.Float32Builder).Append(math.Float32frombits(binary.BigEndian.Uint32(raw)))
	case canonical.Float64:
		vb.(*array.Float64Builder).Append(math.Float64frombits(binary.BigEndian.Uint64(raw)))
	case canonical.Utf8:
		vb.(*array.StringBuilder).Append(string(raw))
	default:
		return sqlfederr.New(sqlfederr.KindDecode, "postgres", "appendArrayElement", fmt.Errorf("unsupported array element type %v", elem))
	}
	return nil
}

func appendNull(b *canonical.Builder, col int, oid uint32, rowIdx int64) error {
	if oid == pgtype.NumericOID {
		if b.DecimalBuilderReady(col) {
			b.AppendDecimalNull(col)
		}
		// Else: the column's decimal128 builder hasn't been
		// instantiated yet. Leave this null unrecorded; the next
		// non-null value's EnsureDecimalBuilder(idx, scale, rowIdx)
		// backfills it along with every other leading null, and if
		// the column turns out to be all-null, NewRecordBatch does
		// the same with scale 0.
		return nil
	}
	if b.IsDropped(col) {
		return nil
	}
	b.Builder(col).AppendNull()
	return nil
}
