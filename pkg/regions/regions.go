// Package regions loads the static region configuration: which
// administrative units to reconcile, keyed by output file slug.
package regions

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"wikimap/pkg/qid"
)

// Region is one named administrative unit.
type Region struct {
	Key         string `yaml:"-"`
	Name        string `yaml:"name"`
	CatalogRoot string `yaml:"qid"`
	AreaID      int64  `yaml:"osm_area"`
}

// Load reads the region file. A missing or empty file is an error: without
// regions there is nothing to do, and the run must abort before touching
// any remote endpoint.
func Load(path string) ([]Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}

	var raw map[string]Region
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse regions file: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("regions file %s defines no regions", path)
	}

	list := make([]Region, 0, len(raw))
	for key, r := range raw {
		r.Key = key
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("region %q: %w", key, err)
		}
		list = append(list, r)
	}

	// Deterministic processing order
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

func (r Region) validate() error {
	if r.Name == "" {
		return fmt.Errorf("missing name")
	}
	if !qid.IsCanonical(r.CatalogRoot) {
		return fmt.Errorf("invalid catalog root %q", r.CatalogRoot)
	}
	if r.AreaID <= 0 {
		return fmt.Errorf("invalid osm area id %d", r.AreaID)
	}
	return nil
}

// Select returns the subset of regions whose keys are listed. Unknown keys
// are an error so a typo in -regions does not silently skip work.
func Select(all []Region, keys []string) ([]Region, error) {
	if len(keys) == 0 {
		return all, nil
	}

	byKey := make(map[string]Region, len(all))
	for _, r := range all {
		byKey[r.Key] = r
	}

	out := make([]Region, 0, len(keys))
	for _, k := range keys {
		r, ok := byKey[k]
		if !ok {
			return nil, fmt.Errorf("unknown region key %q", k)
		}
		out = append(out, r)
	}
	return out, nil
}
