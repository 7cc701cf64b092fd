package decode

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTimestampNTZStruct(mem memory.Allocator, epochs []int64, epochNull []bool, fracs []int32, fracNull []bool) *array.Struct {
	epochBld := array.NewInt64Builder(mem)
	defer epochBld.Release()
	fracBld := array.NewInt32Builder(mem)
	defer fracBld.Release()

	for i := range epochs {
		if epochNull[i] {
			epochBld.AppendNull()
		} else {
			epochBld.Append(epochs[i])
		}
		if fracNull[i] {
			fracBld.AppendNull()
		} else {
			fracBld.Append(fracs[i])
		}
	}

	epochArr := epochBld.NewArray()
	defer epochArr.Release()
	fracArr := fracBld.NewArray()
	defer fracArr.Release()

	return array.NewStructArray([]arrow.Array{epochArr, fracArr}, []string{"epoch", "fraction"})
}

func TestCastTimestampNTZColumn_EpochAndFractionToMillis(t *testing.T) {
	mem := memory.NewGoAllocator()

	col := buildTimestampNTZStruct(mem,
		[]int64{1696164330, 0, 1714647301},
		[]bool{false, true, false},
		[]int32{0, 0, 739000000},
		[]bool{false, true, false},
	)
	defer col.Release()

	out, err := CastTimestampNTZColumn(mem, col)
	require.NoError(t, err)
	defer out.Release()

	ts, ok := out.(*array.Timestamp)
	require.True(t, ok)
	require.Equal(t, 3, ts.Len())

	assert.Equal(t, arrow.Timestamp(1696164330000), ts.Value(0))
	assert.True(t, ts.IsNull(1))
	assert.Equal(t, arrow.Timestamp(1714647301739), ts.Value(2))
}

func TestNeedsTimestampNTZCast_DetectsMetadataKey(t *testing.T) {
	withMeta := arrow.Field{
		Name: "created_at",
		Type: arrow.StructOf(),
		Metadata: arrow.NewMetadata([]string{sfLogicalTypeKey}, []string{sfTimestampNTZ}),
	}
	assert.True(t, NeedsTimestampNTZCast(withMeta))

	without := arrow.Field{Name: "created_at", Type: arrow.PrimitiveTypes.Int64}
	assert.False(t, NeedsTimestampNTZCast(without))
}
