package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// exportColumns fixes the TSV column order: identity, titles, links,
// then the enrichment output fields.
var exportColumns = []string{
	"id",
	"manual_title",
	"extraction_title",
	"extraction_team",
	"imdb_url",
	"imdb_id",
	"imdb_title_es",
	"omdb_title",
	"omdb_year",
	"omdb_genre",
	"omdb_director",
	"omdb_actors",
	"omdb_plot_en",
	"omdb_plot_es",
}

// ExportTSV writes every item as one tab-separated row, ordered by id,
// with a header line first. Tabs inside values become spaces and
// newlines become literal "\n" so each item stays on a single row.
// Returns the number of data rows written.
func (s *Store) ExportTSV(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+strings.Join(exportColumns, ", ")+" FROM items ORDER BY id")
	if err != nil {
		return 0, fmt.Errorf("query export rows: %w", err)
	}
	defer rows.Close()

	if _, err := io.WriteString(w, strings.Join(exportColumns, "\t")+"\n"); err != nil {
		return 0, fmt.Errorf("write export header: %w", err)
	}

	values := make([]string, len(exportColumns))
	scan := make([]any, len(exportColumns))
	for i := range values {
		scan[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return count, fmt.Errorf("scan export row: %w", err)
		}
		fields := make([]string, len(values))
		for i, value := range values {
			fields[i] = sanitizeTSV(value)
		}
		if _, err := io.WriteString(w, strings.Join(fields, "\t")+"\n"); err != nil {
			return count, fmt.Errorf("write export row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("iterate export rows: %w", err)
	}
	return count, nil
}

func sanitizeTSV(value string) string {
	value = strings.ReplaceAll(value, "\t", " ")
	value = strings.ReplaceAll(value, "\r\n", `\n`)
	value = strings.ReplaceAll(value, "\n", `\n`)
	return value
}
