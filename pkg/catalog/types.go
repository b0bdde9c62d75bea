// Package catalog fetches and parses the knowledge-graph side of the
// reconciliation: one tabular row per geolocated Wikidata item under a
// region's administrative root.
package catalog

// Record is one parsed catalog row.
type Record struct {
	QID   string
	Lat   float64
	Lon   float64
	Label string

	// ClassID is the item's classification (P31), empty when absent.
	ClassID string
	// ParentCount is the number of distinct administrative parents (P131),
	// nil when the column is absent or unparsable.
	ParentCount *int
}
