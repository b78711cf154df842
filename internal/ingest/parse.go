package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/campaignlens/campaignlens/internal/source"
)

// RawRow is one source row keyed by normalized column name. Cells missing
// from short rows are simply absent, so lookups yield "".
type RawRow map[string]string

// RawTable is the parsed source file before normalization.
type RawTable struct {
	Columns []string // normalized header names in source order
	Rows    []RawRow
}

// headerAliases maps legacy normalized headers onto the canonical schema.
// Older exports named the campaign length column "duration".
var headerAliases = map[string]string{
	"duration": "duration_days",
}

// NormalizeHeader canonicalizes a raw column name: trim, lower-case,
// strip parentheses, interior whitespace to underscores. "Ad Spend",
// "ad_spend" and "AD_SPEND" all converge on ad_spend.
func NormalizeHeader(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	s = strings.Join(strings.Fields(s), "_")
	if alias, ok := headerAliases[s]; ok {
		return alias
	}
	return s
}

// ParseCSV reads the raw export into a RawTable. The first record is the
// header; ragged data rows are tolerated (short rows leave cells absent,
// long rows have their extra cells ignored). A file with no header or no
// data rows is not usable as tabular input and fails with ErrUnreadable.
func ParseCSV(data []byte) (*RawTable, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")) // UTF-8 BOM

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: source contains no header row", source.ErrUnreadable)
		}
		return nil, fmt.Errorf("%w: parse header: %v", source.ErrUnreadable, err)
	}

	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		columns[i] = name
		// First occurrence wins on duplicate headers
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var rows []RawRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse row %d: %v", source.ErrUnreadable, len(rows)+2, err)
		}

		row := make(RawRow, len(index))
		for name, i := range index {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: source contains no data rows", source.ErrUnreadable)
	}

	return &RawTable{Columns: dedupe(columns), Rows: rows}, nil
}

// dedupe drops repeated normalized names while preserving order.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// HasColumn reports whether the table carries the normalized column.
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}
