package catalog

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"wikimap/pkg/qid"
)

// ParseRecords reads delimited catalog rows and returns the parsable ones.
// The catalog source is externally uncontrolled: rows with a missing id or
// non-finite coordinates are dropped silently, never surfaced as errors, so
// one corrupt row cannot abort a region. Only an unreadable header is fatal.
func ParseRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	cols := indexColumns(header)

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed line; skip it and keep going
			continue
		}

		rec, ok := parseRow(cols, row)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// indexColumns maps logical field names to column positions. SPARQL result
// headers sometimes keep the variable sigil ("?qid"), sometimes not ("qid");
// both spellings are accepted.
func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimPrefix(strings.TrimSpace(h), "?")
		cols[strings.ToLower(name)] = i
	}
	return cols
}

func parseRow(cols map[string]int, row []string) (Record, bool) {
	id := canonicalID(field(cols, row, "qid"))
	if id == "" {
		return Record{}, false
	}

	lat, ok := parseCoord(field(cols, row, "lat"))
	if !ok {
		return Record{}, false
	}
	lon, ok := parseCoord(field(cols, row, "lon"))
	if !ok {
		return Record{}, false
	}

	label := strings.TrimSpace(field(cols, row, "label"))
	if label == "" {
		label = id
	}

	rec := Record{
		QID:     id,
		Lat:     lat,
		Lon:     lon,
		Label:   label,
		ClassID: canonicalID(field(cols, row, "class")),
	}

	if raw := strings.TrimSpace(field(cols, row, "parents")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			rec.ParentCount = &n
		}
	}

	return rec, true
}

func field(cols map[string]int, row []string, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// canonicalID turns a bare QID or a full entity URI into an upper-cased
// Q-number. Returns "" when no canonical id can be derived.
func canonicalID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	raw = strings.ToUpper(raw)
	if !qid.IsCanonical(raw) {
		return ""
	}
	return raw
}

func parseCoord(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
