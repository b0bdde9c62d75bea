// Package osm models Overpass map elements and builds the per-region
// wikidata index that catalog items are reconciled against.
package osm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Element is one mapped object as delivered by Overpass.
type Element struct {
	Type string            `json:"type"` // node, way, relation
	ID   int64             `json:"id"`
	Tags map[string]string `json:"tags,omitempty"`
}

// Ref returns the canonical object reference, e.g. "node/123456".
func (e Element) Ref() string {
	return e.Type + "/" + strconv.FormatInt(e.ID, 10)
}

// Response is the Overpass JSON envelope.
type Response struct {
	Elements []Element `json:"elements"`
}

// ParseResponse decodes a raw Overpass JSON payload.
func ParseResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode overpass json: %w", err)
	}
	return &resp, nil
}

// HasWikidataTag reports whether the element carries a reconciliation key:
// the "wikidata" tag itself or any namespaced variant like "brand:wikidata".
func (e Element) HasWikidataTag() bool {
	for k := range e.Tags {
		if isWikidataKey(k) {
			return true
		}
	}
	return false
}

func isWikidataKey(k string) bool {
	return k == "wikidata" || strings.HasSuffix(k, "wikidata")
}
