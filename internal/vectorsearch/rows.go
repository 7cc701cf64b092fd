package vectorsearch

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/nullstream/sqlfed/internal/canonical"
)

// rowsAsMaps reads cols out of batch into one map per row, in the
// search result's natural "named column -> scalar value" shape rather
// than exposing arrow.Record to callers that just want a primary key.
func rowsAsMaps(batch *canonical.RecordBatch, cols []string) ([]map[string]any, error) {
	rec := batch.Record()
	idxByName := make(map[string]int, len(batch.Schema().Fields))
	for i, f := range batch.Schema().Fields {
		idxByName[f.Name] = i
	}

	rows := make([]map[string]any, batch.NumRows())
	for r := range rows {
		rows[r] = make(map[string]any, len(cols))
	}

	for _, col := range cols {
		idx, ok := idxByName[col]
		if !ok {
			return nil, fmt.Errorf("vectorsearch: result batch missing column %q", col)
		}
		arr := rec.Column(idx)
		for r := 0; r < int(batch.NumRows()); r++ {
			if arr.IsNull(r) {
				rows[r][col] = nil
				continue
			}
			switch a := arr.(type) {
			case *array.String:
				rows[r][col] = a.Value(r)
			case *array.Int64:
				rows[r][col] = a.Value(r)
			case *array.Int32:
				rows[r][col] = a.Value(r)
			case *array.Float64:
				rows[r][col] = a.Value(r)
			case *array.Float32:
				rows[r][col] = a.Value(r)
			case *array.Boolean:
				rows[r][col] = a.Value(r)
			default:
				rows[r][col] = fmt.Sprintf("%v", arr)
			}
		}
	}
	return rows, nil
}
