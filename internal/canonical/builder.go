package canonical

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Builder accumulates decoded rows into arrow-go column builders and
// produces a RecordBatch. Every column is built eagerly from the
// connector's reported schema except Decimal128 columns, whose scale a
// source like PostgreSQL's binary NUMERIC wire format does not report
// up front: it is only known once the first non-null value arrives.
// Builder defers constructing those columns' decimal128.Builder until
// that point, and backfills the nulls seen so far.
type Builder struct {
	mem    memory.Allocator
	schema *Schema

	builders []array.Builder
	// decimalScale[i] is set once the i'th column's Decimal128 builder
	// has been instantiated with a concrete scale; -1 means unset.
	decimalScale []int32
	// isDecimal marks which columns are Decimal128Type so AppendNull
	// can cheaply skip the rest.
	isDecimal []bool
	// isDropped marks columns typed None: unlike a Decimal128 column,
	// these never get a builder at all, at any point.
	isDropped []bool
	rows      int64
}

// NewBuilder creates a Builder for schema. Decimal128 columns are left
// uninstantiated until EnsureDecimalBuilder is called; None columns are
// never instantiated and are pruned out by NewRecordBatch. A nil mem
// selects memory.DefaultAllocator.
func NewBuilder(mem memory.Allocator, schema *Schema) *Builder {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := &Builder{
		mem:          mem,
		schema:       schema,
		builders:     make([]array.Builder, len(schema.Fields)),
		decimalScale: make([]int32, len(schema.Fields)),
		isDecimal:    make([]bool, len(schema.Fields)),
		isDropped:    make([]bool, len(schema.Fields)),
	}
	for i, f := range schema.Fields {
		if f.Type.ID == None {
			b.isDropped[i] = true
			continue
		}
		if f.Type.ID == Decimal128Type {
			b.isDecimal[i] = true
			b.decimalScale[i] = -1
			continue // instantiated lazily, see EnsureDecimalBuilder
		}
		b.builders[i] = array.NewBuilder(mem, f.Type.ArrowType())
	}
	return b
}

// EnsureDecimalBuilder instantiates column idx's decimal128 builder with
// the given scale the first time a non-null NUMERIC value is decoded
// for it, backfilling nullsSoFar leading nulls so the column stays
// aligned with every other column's row count.
func (b *Builder) EnsureDecimalBuilder(idx int, scale int32, nullsSoFar int64) (*array.Decimal128Builder, error) {
	if !b.isDecimal[idx] {
		return nil, fmt.Errorf("canonical: column %d is not a decimal128 column", idx)
	}
	if b.decimalScale[idx] == -1 {
		dt := &arrow.Decimal128Type{Precision: 38, Scale: scale}
		bld := array.NewDecimal128Builder(b.mem, dt)
		for i := int64(0); i < nullsSoFar; i++ {
			bld.AppendNull()
		}
		b.builders[idx] = bld
		b.decimalScale[idx] = scale
		return bld, nil
	}
	if b.decimalScale[idx] != scale {
		return nil, fmt.Errorf("canonical: column %d decimal128 scale mismatch: builder has %d, value has %d", idx, b.decimalScale[idx], scale)
	}
	return b.builders[idx].(*array.Decimal128Builder), nil
}

// DecimalBuilderReady reports whether column idx's decimal128 builder
// has been instantiated yet.
func (b *Builder) DecimalBuilderReady(idx int) bool {
	return b.isDecimal[idx] && b.decimalScale[idx] != -1
}

// AppendDecimalNull appends a null to column idx, which must already
// have had EnsureDecimalBuilder called for it at least once. Nulls that
// arrive before that are not appended here: the decoder leaves them
// uncounted, and the first EnsureDecimalBuilder call backfills them
// through nullsSoFar (or NewRecordBatch does, with scale 0, for a
// column that stayed all-null).
func (b *Builder) AppendDecimalNull(idx int) {
	b.builders[idx].(*array.Decimal128Builder).AppendNull()
}

// AppendDecimalValue appends a decoded decimal128.Num to column idx.
func (b *Builder) AppendDecimalValue(idx int, v decimal128.Num) {
	b.builders[idx].(*array.Decimal128Builder).Append(v)
}

// Builder returns the array.Builder for a non-decimal, non-dropped
// column. Panics if called on a Decimal128 column (use
// EnsureDecimalBuilder instead) or a dropped None column (check
// IsDropped first and skip the value).
func (b *Builder) Builder(idx int) array.Builder {
	if b.isDecimal[idx] {
		panic("canonical: use EnsureDecimalBuilder for decimal128 columns")
	}
	if b.isDropped[idx] {
		panic("canonical: column has no builder, it was dropped as canonical.None")
	}
	return b.builders[idx]
}

// IsDropped reports whether column idx was typed canonical.None and so
// carries no builder; decoders must skip appending any value or null to
// it instead of calling Builder.
func (b *Builder) IsDropped(idx int) bool {
	return b.isDropped[idx]
}

// IncRow records that a logical row was appended across all columns.
// Callers must call this exactly once per source row, independent of
// how many columns that row touched.
func (b *Builder) IncRow() {
	b.rows++
}

// NewRecordBatch finalizes all column builders into arrays and wraps
// them in a RecordBatch. Decimal128 columns never touched (an
// all-projected-away NUMERIC column) are instantiated with scale 0 and
// backfilled fully null so the batch stays rectangular. Columns typed
// canonical.None are dropped entirely from the resulting schema and
// record; the row count stays intact via rowCount, which RecordBatch
// carries independent of column count, so a batch of every-column-dropped
// still reports how many rows it represents.
func (b *Builder) NewRecordBatch() (*RecordBatch, error) {
	fields := make([]Field, 0, len(b.schema.Fields))
	cols := make([]arrow.Array, 0, len(b.schema.Fields))
	for i, f := range b.schema.Fields {
		if b.isDropped[i] {
			continue
		}
		if b.isDecimal[i] && b.decimalScale[i] == -1 {
			if _, err := b.EnsureDecimalBuilder(i, 0, b.rows); err != nil {
				return nil, err
			}
		}
		if b.builders[i] == nil {
			return nil, fmt.Errorf("canonical: column %d (%s) has no builder", i, f.Name)
		}
		arr := b.builders[i].NewArray()
		defer arr.Release()
		if b.isDecimal[i] {
			// Replace the mapper's placeholder precision/scale with the
			// ones the builder was instantiated with.
			dt := arr.DataType().(*arrow.Decimal128Type)
			f.Type.Precision, f.Type.Scale = dt.Precision, dt.Scale
		}
		fields = append(fields, f)
		cols = append(cols, arr)
	}
	schema := &Schema{Fields: fields}
	rec := array.NewRecord(schema.ArrowSchema(), cols, b.rows)
	return NewRecordBatch(schema, rec, b.rows), nil
}
