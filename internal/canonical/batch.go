package canonical

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// RecordBatch wraps an arrow.Record with an explicit row count tracked
// independently of the record's columns. A batch whose every column has
// been dropped (e.g. a projection of zero columns, or a COUNT(*)-only
// query) still has to report how many rows it represents; arrow.Record
// cannot do that once NumCols() is zero, so rowCount is carried
// alongside rather than derived from column 0.
type RecordBatch struct {
	schema   *Schema
	record   arrow.Record
	rowCount int64
}

// NewRecordBatch wraps rec, recording rowCount independently so the
// batch stays well-formed even if rec's columns are later dropped.
func NewRecordBatch(schema *Schema, rec arrow.Record, rowCount int64) *RecordBatch {
	return &RecordBatch{schema: schema, record: rec, rowCount: rowCount}
}

// Schema returns the canonical schema this batch was built against.
func (b *RecordBatch) Schema() *Schema {
	return b.schema
}

// Record returns the underlying arrow.Record.
func (b *RecordBatch) Record() arrow.Record {
	return b.record
}

// NumRows returns the batch's row count, independent of column count.
func (b *RecordBatch) NumRows() int64 {
	return b.rowCount
}

// Release releases the underlying arrow.Record's buffers.
func (b *RecordBatch) Release() {
	if b.record != nil {
		b.record.Release()
	}
}

// Retain increments the underlying arrow.Record's reference count.
func (b *RecordBatch) Retain() {
	if b.record != nil {
		b.record.Retain()
	}
}
