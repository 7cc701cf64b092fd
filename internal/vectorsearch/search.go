package vectorsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/nullstream/sqlfed/internal/obs"
	"github.com/nullstream/sqlfed/internal/poolconn"
)

// EmbeddingTable is the capability interface a poolconn.Connection
// optionally also implements when its backend table has a similarity-
// searchable embedding column, the Go analogue of the original's
// get_embedding_table/EmbeddingTable trait query.
type EmbeddingTable interface {
	// EmbeddingColumns returns the table's embedding column names (the
	// original supports only one per table; this keeps the slice for
	// forward compatibility but every caller in this module only reads
	// index 0).
	EmbeddingColumns() []string
	// PrimaryKeyColumns returns the columns returned alongside the
	// similarity score to identify each result row.
	PrimaryKeyColumns() []string
}

// Limit bounds how many rows Search returns per table.
type Limit struct {
	TopN int
}

// Result holds, per queried table, the closest rows in similarity
// order; each row carries the primary-key column values, the embedding
// source column's value and its "distance".
type Result struct {
	Tables map[string][]map[string]any
}

// Search runs a nearest-neighbor query against every named table's
// embedding column for query, embedding query once per distinct model
// the tables use. Unlike the original's
// `format!("... array_distance({col}, {embedding:?}) ...")`, which
// interpolates the embedding vector's Debug-formatted text directly
// into the SQL string, every query issued here binds the embedding as
// a parameter — the original's approach is exploitable if query text
// (and therefore indirectly the embedding, through whatever inference
// endpoint a caller points at) can be influenced by untrusted input,
// and binding is no more expensive to write.
func Search(ctx context.Context, conn poolconn.Connection, store *EmbeddingModelStore, tables map[string]EmbeddingTable, modelFor func(table string) string, query string, limit Limit) (*Result, error) {
	start := time.Now()
	result := &Result{Tables: make(map[string][]map[string]any)}
	vecs := make(map[string][]float32)

	for table, embeddingTable := range tables {
		cols := embeddingTable.EmbeddingColumns()
		if len(cols) == 0 {
			continue
		}
		if len(cols) > 1 {
			obs.RecordVectorSearch(table, float64(time.Since(start).Milliseconds()), fmt.Errorf("only one embedding column per table is supported, table %s has %d", table, len(cols)))
			return nil, fmt.Errorf("vectorsearch: only one embedding column per table is supported, table %s has %d", table, len(cols))
		}

		modelName := modelFor(table)
		vec, ok := vecs[modelName]
		if !ok {
			var err error
			vec, err = store.Embed(ctx, modelName, query)
			if err != nil {
				obs.RecordVectorSearch(table, float64(time.Since(start).Milliseconds()), err)
				return nil, err
			}
			vecs[modelName] = vec
		}

		rows, err := searchTable(ctx, conn, table, cols[0], embeddingTable.PrimaryKeyColumns(), vec, limit.TopN)
		obs.RecordVectorSearch(table, float64(time.Since(start).Milliseconds()), err)
		if err != nil {
			return nil, err
		}
		result.Tables[table] = rows
	}

	return result, nil
}

func searchTable(ctx context.Context, conn poolconn.Connection, table, embeddingCol string, keyCols []string, vec []float32, topN int) ([]map[string]any, error) {
	// embeddingCol is the source text column being embedded; the vector
	// itself lives in a sibling "<embedding_column>_embedding" column,
	// so distance is computed and ordered against that, not embeddingCol.
	vectorCol := embeddingCol + "_embedding"
	selectCols := append(append(append([]string{}, keyCols...), embeddingCol), "distance")
	query := fmt.Sprintf(
		"SELECT %s, %s, %s <=> $1 AS distance FROM %s ORDER BY %s <=> $1 LIMIT $2",
		joinQuoted(keyCols), embeddingCol, vectorCol, table, vectorCol,
	)

	stream, err := conn.QueryArrow(ctx, query, pgvector.NewVector(vec), topN)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var out []map[string]any
	for {
		batch, err := stream.Next(ctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			break
		}
		rows, err := rowsAsMaps(batch, selectCols)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func joinQuoted(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
