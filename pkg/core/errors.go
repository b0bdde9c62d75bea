package core

import "errors"

// ErrNoMapData signals that a region has neither live map data nor a cached
// payload to fall back to.
var ErrNoMapData = errors.New("no map data available")

// ErrCatalogUnavailable signals that the catalog fetch failed after retries.
// There is no cache concept on the catalog side; the region is skipped.
var ErrCatalogUnavailable = errors.New("catalog unavailable")
