// Package reconcile joins catalog records against the per-region map index
// and classifies each item's mapping status.
package reconcile

import (
	"wikimap/pkg/catalog"
	"wikimap/pkg/config"
	"wikimap/pkg/osm"
)

// Status is the reconciliation outcome for one catalog item.
type Status string

const (
	// StatusDone marks an item represented in the map data.
	StatusDone Status = "done"
	// StatusMissing marks an item absent from the map data.
	StatusMissing Status = "missing"
	// StatusBroad marks an item too large or ambiguous for a single-point
	// representation (mountain ranges, rivers, long routes). Broad always
	// overrides done: an already-mapped range is still flagged because its
	// point geometry is a known approximation.
	StatusBroad Status = "broad"
)

// Classifier assigns a Status to catalog records.
type Classifier struct {
	broadClasses    map[string]struct{}
	useParentCount  bool
	parentThreshold int
}

// NewClassifier builds a classifier from configuration.
func NewClassifier(cfg config.ClassifierConfig) *Classifier {
	broad := make(map[string]struct{}, len(cfg.BroadClasses))
	for _, q := range cfg.BroadClasses {
		broad[q] = struct{}{}
	}
	threshold := cfg.ParentThreshold
	if threshold < 1 {
		threshold = 1
	}
	return &Classifier{
		broadClasses:    broad,
		useParentCount:  cfg.UseParentCount,
		parentThreshold: threshold,
	}
}

// Classify looks the record up in the map index and applies the broad
// override. The returned map reference is kept even when the status is
// overridden to broad.
func (c *Classifier) Classify(rec catalog.Record, idx osm.Index) (Status, string) {
	ref, found := idx.Lookup(rec.QID)

	status := StatusMissing
	if found {
		status = StatusDone
	}
	if c.isBroad(rec) {
		status = StatusBroad
	}
	return status, ref
}

func (c *Classifier) isBroad(rec catalog.Record) bool {
	if rec.ClassID != "" {
		if _, ok := c.broadClasses[rec.ClassID]; ok {
			return true
		}
	}
	if c.useParentCount && rec.ParentCount != nil && *rec.ParentCount > c.parentThreshold {
		return true
	}
	return false
}
