package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ToFeatureCollection converts reconciled features to a GeoJSON point layer.
// Property names match the historical output files consumed by the map
// frontend: wikidata, name, status, osm_id.
func ToFeatureCollection(features []Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		gf := geojson.NewFeature(orb.Point{f.Lon, f.Lat})
		gf.Properties = geojson.Properties{
			"wikidata": f.QID,
			"name":     f.Label,
			"status":   string(f.Status),
		}
		if f.MapRef != "" {
			gf.Properties["osm_id"] = f.MapRef
		} else {
			gf.Properties["osm_id"] = nil
		}
		fc.Append(gf)
	}
	return fc
}

// WriteFeatureCollection persists a feature collection with
// write-to-temp-then-rename discipline so an interrupted run never leaves a
// truncated layer behind.
func WriteFeatureCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal feature collection: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
