// Package meta tracks per-region data freshness across runs. The merged
// metadata file is the only durable state besides the per-region layers:
// regions skipped in a run keep their previous entry untouched.
package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const cachedSuffix = " (Cached)"

// displayZone matches the historical output stamps (CET, no DST handling).
var displayZone = time.FixedZone("UTC+1", 3600)

// RegionFreshness records when a region's inputs were last fetched.
type RegionFreshness struct {
	MapDataAsOf   time.Time `json:"map_data_as_of"`
	MapDataStamp  string    `json:"map_data_stamp"`
	MapDataCached bool      `json:"map_data_cached"`
	CatalogAsOf   time.Time `json:"catalog_as_of"`
	Features      int       `json:"features"`
	Done          int       `json:"done"`
	Missing       int       `json:"missing"`
	Broad         int       `json:"broad"`
}

// RunMetadata is the persisted artifact.
type RunMetadata struct {
	RunID        string                     `json:"run_id"`
	LastUpdated  string                     `json:"last_updated"`
	Approximate  bool                       `json:"approximate"`
	RegionsCount int                        `json:"regions_count"`
	Method       string                     `json:"method"`
	Regions      map[string]RegionFreshness `json:"regions"`
}

// Tracker accumulates freshness entries for the current run on top of the
// previous run's state. It is a plain value passed through the pipeline,
// persisted once at the end.
type Tracker struct {
	path    string
	prior   map[string]RegionFreshness
	current map[string]RegionFreshness
}

// Load reads the previous run's metadata, if any. A missing file yields an
// empty tracker; a corrupt file is an error so state is not silently lost.
func Load(path string) (*Tracker, error) {
	t := &Tracker{
		path:    path,
		prior:   make(map[string]RegionFreshness),
		current: make(map[string]RegionFreshness),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var prev RunMetadata
	if err := json.Unmarshal(data, &prev); err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	if prev.Regions != nil {
		t.prior = prev.Regions
	}
	return t, nil
}

// Prior returns the previous run's entry for a region, if present.
func (t *Tracker) Prior(regionKey string) (RegionFreshness, bool) {
	f, ok := t.prior[regionKey]
	return f, ok
}

// Record stores the freshness entry for a region processed this run,
// overwriting any prior entry at persist time.
func (t *Tracker) Record(regionKey string, f RegionFreshness) {
	t.current[regionKey] = f
}

// Merged overlays this run's entries on the prior state. Regions untouched
// this run keep their previous entry; nothing is ever dropped.
func (t *Tracker) Merged() map[string]RegionFreshness {
	out := make(map[string]RegionFreshness, len(t.prior)+len(t.current))
	for k, v := range t.prior {
		out[k] = v
	}
	for k, v := range t.current {
		out[k] = v
	}
	return out
}

// Summary returns the most recent map-data timestamp across all regions and
// whether any entry is cache-derived (making the summary approximate).
func (t *Tracker) Summary() (latest time.Time, approximate bool) {
	for _, f := range t.Merged() {
		if f.MapDataAsOf.After(latest) {
			latest = f.MapDataAsOf
		}
		if f.MapDataCached {
			approximate = true
		}
	}
	return latest, approximate
}

// Persist writes the merged metadata atomically (temp file then rename).
func (t *Tracker) Persist(runID string) error {
	merged := t.Merged()
	_, approximate := t.Summary()

	md := RunMetadata{
		RunID:        runID,
		LastUpdated:  FormatStamp(time.Now()),
		Approximate:  approximate,
		RegionsCount: len(merged),
		Method:       "Overpass per-region",
		Regions:      merged,
	}

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata dir: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", t.path, err)
	}
	return nil
}

// FormatStamp renders a timestamp the way the output files always have:
// day/month/year clock in UTC+1.
func FormatStamp(ts time.Time) string {
	return ts.In(displayZone).Format("02/01/2006 15:04") + " (UTC+1)"
}

// CachedLabel marks a freshness stamp as cache-derived. Applying it again
// is a no-op, so repeated cache fallbacks never stack suffixes.
func CachedLabel(stamp string) string {
	if strings.HasSuffix(stamp, cachedSuffix) {
		return stamp
	}
	return stamp + cachedSuffix
}
