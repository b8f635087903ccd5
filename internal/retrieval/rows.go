package retrieval

import (
	"log/slog"
	"sort"
)

// Row is one retrieved document, zipped from the parallel result columns.
type Row struct {
	ID       string         `json:"id"`
	Distance float64        `json:"distance"`
	Metadata map[string]any `json:"metadata"`
	Document string         `json:"document"`
}

// Normalize zips res into rows. Columns of unequal length are truncated to
// the shortest one with a warning; rows are never padded. Rows from several
// query texts are merged: duplicates keep their lowest distance, the result
// is sorted by ascending distance and capped at limit (when positive).
func Normalize(res QueryResult, limit int) []Row {
	return normalize(slog.Default(), res, limit)
}

func normalize(logger *slog.Logger, res QueryResult, limit int) []Row {
	sets := min(len(res.IDs), len(res.Distances), len(res.Metadatas), len(res.Documents))
	if sets != max(len(res.IDs), len(res.Distances), len(res.Metadatas), len(res.Documents)) {
		logger.Warn("query result column sets differ in length; truncating",
			"ids", len(res.IDs), "distances", len(res.Distances),
			"metadatas", len(res.Metadatas), "documents", len(res.Documents))
	}

	best := make(map[string]int)
	var rows []Row
	for s := range sets {
		ids, dists, metas, docs := res.IDs[s], res.Distances[s], res.Metadatas[s], res.Documents[s]
		n := min(len(ids), len(dists), len(metas), len(docs))
		if n != max(len(ids), len(dists), len(metas), len(docs)) {
			logger.Warn("query result columns differ in length; dropping incomplete rows",
				"query_index", s, "ids", len(ids), "distances", len(dists),
				"metadatas", len(metas), "documents", len(docs))
		}

		for i := range n {
			row := Row{ID: ids[i], Distance: dists[i], Metadata: metas[i], Document: docs[i]}
			if j, seen := best[row.ID]; seen {
				if row.Distance < rows[j].Distance {
					rows[j] = row
				}
				continue
			}
			best[row.ID] = len(rows)
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Distance < rows[j].Distance })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
