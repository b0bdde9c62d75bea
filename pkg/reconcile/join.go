package reconcile

import (
	"wikimap/pkg/catalog"
	"wikimap/pkg/osm"
)

// Feature is one reconciled catalog item.
type Feature struct {
	QID    string
	Label  string
	Status Status
	MapRef string // empty when the item is not mapped
	Lat    float64
	Lon    float64
}

// Counts summarizes a feature set per status.
type Counts struct {
	Done    int
	Missing int
	Broad   int
}

// Join classifies every catalog record against the index and returns the
// reconciled features, de-duplicated by QID. The first occurrence of an id
// wins; later rows for the same item (multi-class SPARQL fan-out) are
// dropped.
func Join(records []catalog.Record, idx osm.Index, cls *Classifier) []Feature {
	seen := make(map[string]struct{}, len(records))
	features := make([]Feature, 0, len(records))

	for _, rec := range records {
		if _, dup := seen[rec.QID]; dup {
			continue
		}
		seen[rec.QID] = struct{}{}

		status, ref := cls.Classify(rec, idx)
		features = append(features, Feature{
			QID:    rec.QID,
			Label:  rec.Label,
			Status: status,
			MapRef: ref,
			Lat:    rec.Lat,
			Lon:    rec.Lon,
		})
	}
	return features
}

// Count tallies features per status.
func Count(features []Feature) Counts {
	var c Counts
	for _, f := range features {
		switch f.Status {
		case StatusDone:
			c.Done++
		case StatusMissing:
			c.Missing++
		case StatusBroad:
			c.Broad++
		}
	}
	return c
}
