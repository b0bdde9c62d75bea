// Package core orchestrates the per-region reconciliation run: fetch map
// data (or fall back to cache), fetch the catalog, join, emit the region
// layer, and track freshness.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"wikimap/pkg/catalog"
	"wikimap/pkg/meta"
	"wikimap/pkg/osm"
	"wikimap/pkg/reconcile"
	"wikimap/pkg/regions"
	"wikimap/pkg/store"
	"wikimap/pkg/tracker"
)

// State names one step of the per-region state machine.
type State int

const (
	StateFetchMap State = iota
	StateFetchCatalog
	StateJoin
	StateEmit
	StateDone
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateFetchMap:
		return "FETCH_MAP"
	case StateFetchCatalog:
		return "FETCH_CATALOG"
	case StateJoin:
		return "JOIN"
	case StateEmit:
		return "EMIT"
	case StateDone:
		return "DONE"
	case StateSkipped:
		return "SKIPPED"
	}
	return "UNKNOWN"
}

// MapFetcher retrieves tagged map elements for an OSM area.
type MapFetcher interface {
	FetchArea(ctx context.Context, areaID int64) ([]osm.Element, []byte, error)
}

// CatalogFetcher retrieves catalog records under an administrative root.
type CatalogFetcher interface {
	FetchRegion(ctx context.Context, rootQID string) ([]catalog.Record, error)
}

// Pipeline runs the reconciliation for a list of regions, one at a time.
type Pipeline struct {
	maps       MapFetcher
	cat        CatalogFetcher
	cache      store.MapCache
	cls        *reconcile.Classifier
	meta       *meta.Tracker
	tracker    *tracker.Tracker
	outDir     string
	politeness time.Duration
	dryRun     bool
	logger     *slog.Logger

	now func() time.Time
}

// Options configures a Pipeline.
type Options struct {
	Maps       MapFetcher
	Catalog    CatalogFetcher
	Cache      store.MapCache
	Classifier *reconcile.Classifier
	Meta       *meta.Tracker
	Tracker    *tracker.Tracker
	OutDir     string
	Politeness time.Duration
	DryRun     bool
	Logger     *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		maps:       opts.Maps,
		cat:        opts.Catalog,
		cache:      opts.Cache,
		cls:        opts.Classifier,
		meta:       opts.Meta,
		tracker:    opts.Tracker,
		outDir:     opts.OutDir,
		politeness: opts.Politeness,
		dryRun:     opts.DryRun,
		logger:     logger,
		now:        time.Now,
	}
}

// Outcome reports how one region ended.
type Outcome struct {
	Region regions.Region
	State  State
	Counts reconcile.Counts
	Cached bool
	Err    error
}

// Run processes the regions sequentially, accumulating the combined layer,
// and returns one Outcome per region. Run itself only fails on context
// cancellation; individual region failures are reported in the outcomes so
// the remaining regions still get processed.
func (p *Pipeline) Run(ctx context.Context, regs []regions.Region, combinedKey string) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(regs))
	var combined []reconcile.Feature

	for i, region := range regs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if i > 0 && p.politeness > 0 {
			time.Sleep(p.politeness)
		}

		p.logger.Info("Processing region", "region", region.Key, "name", region.Name)
		outcome, features := p.processRegion(ctx, region)
		outcomes = append(outcomes, outcome)

		if outcome.State == StateSkipped {
			p.logger.Warn("Region skipped", "region", region.Key, "error", outcome.Err)
			continue
		}

		combined = append(combined, features...)
		p.logger.Info("Region reconciled",
			"region", region.Key,
			"features", len(features),
			"done", outcome.Counts.Done,
			"missing", outcome.Counts.Missing,
			"broad", outcome.Counts.Broad,
			"cached", outcome.Cached)
	}

	if !p.dryRun && combinedKey != "" {
		path := p.outputPath(combinedKey)
		if err := reconcile.WriteFeatureCollection(path, reconcile.ToFeatureCollection(combined)); err != nil {
			return outcomes, fmt.Errorf("failed to write combined layer: %w", err)
		}
		p.logger.Info("Combined layer written", "path", path, "features", len(combined))
	}

	return outcomes, nil
}

// processRegion walks one region through the state machine. A skipped
// region writes nothing and records no metadata, so prior artifacts stay
// exactly as they were.
func (p *Pipeline) processRegion(ctx context.Context, region regions.Region) (Outcome, []reconcile.Feature) {
	outcome := Outcome{Region: region, State: StateFetchMap}

	elements, mapAsOf, mapStamp, cached, err := p.fetchMap(ctx, region)
	if err != nil {
		outcome.State = StateSkipped
		outcome.Err = err
		return outcome, nil
	}
	outcome.Cached = cached

	outcome.State = StateFetchCatalog
	records, err := p.cat.FetchRegion(ctx, region.CatalogRoot)
	if err != nil {
		outcome.State = StateSkipped
		outcome.Err = fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
		return outcome, nil
	}
	catalogAsOf := p.now()

	outcome.State = StateJoin
	idx := osm.BuildIndex(elements)
	features := reconcile.Join(records, idx, p.cls)
	outcome.Counts = reconcile.Count(features)

	outcome.State = StateEmit
	if !p.dryRun {
		path := p.outputPath(region.Key)
		if err := reconcile.WriteFeatureCollection(path, reconcile.ToFeatureCollection(features)); err != nil {
			outcome.State = StateSkipped
			outcome.Err = err
			return outcome, nil
		}

		// Output and metadata move together: the entry is recorded only
		// after the layer landed on disk.
		p.meta.Record(region.Key, meta.RegionFreshness{
			MapDataAsOf:   mapAsOf,
			MapDataStamp:  mapStamp,
			MapDataCached: cached,
			CatalogAsOf:   catalogAsOf,
			Features:      len(features),
			Done:          outcome.Counts.Done,
			Missing:       outcome.Counts.Missing,
			Broad:         outcome.Counts.Broad,
		})
	}

	outcome.State = StateDone
	return outcome, features
}

// fetchMap attempts a live Overpass fetch and degrades to the cached
// payload when the live fetch fails. Cached data keeps its original fetch
// timestamp and gets the cache annotation exactly once.
func (p *Pipeline) fetchMap(ctx context.Context, region regions.Region) (elements []osm.Element, asOf time.Time, stamp string, cached bool, err error) {
	elements, raw, err := p.maps.FetchArea(ctx, region.AreaID)
	if err == nil {
		asOf = p.now()
		if !p.dryRun {
			if cerr := p.cache.SetMapCache(ctx, region.Key, raw, asOf); cerr != nil {
				p.logger.Error("Failed to cache map payload", "region", region.Key, "error", cerr)
			}
		}
		return elements, asOf, meta.FormatStamp(asOf), false, nil
	}

	p.logger.Warn("Live map fetch failed, trying cache", "region", region.Key, "error", err)

	payload, fetchedAt, found := p.cache.GetMapCache(ctx, region.Key)
	if !found {
		return nil, time.Time{}, "", false, fmt.Errorf("%w for region %s: %w", ErrNoMapData, region.Key, err)
	}

	resp, perr := osm.ParseResponse(payload)
	if perr != nil {
		return nil, time.Time{}, "", false, fmt.Errorf("%w for region %s: cached payload unreadable: %w", ErrNoMapData, region.Key, perr)
	}

	if p.tracker != nil {
		p.tracker.TrackCacheFallback("overpass")
	}
	return resp.Elements, fetchedAt, meta.CachedLabel(meta.FormatStamp(fetchedAt)), true, nil
}

func (p *Pipeline) outputPath(key string) string {
	return filepath.Join(p.outDir, "data_"+key+".geojson")
}
