package osm

import (
	"wikimap/pkg/qid"
)

// Index maps a canonical Q-number to the reference of the map object
// carrying it. One QID maps to at most one reference.
type Index map[string]string

// BuildIndex scans the elements and registers every normalized wikidata id
// against the element's reference. Elements without tags or without a
// wikidata key are skipped. When the same QID appears on several elements
// the last one processed wins; Overpass gives no ordering guarantee, so
// which element that is is effectively arbitrary.
func BuildIndex(elements []Element) Index {
	idx := make(Index)
	for _, e := range elements {
		for k, v := range e.Tags {
			if !isWikidataKey(k) {
				continue
			}
			for _, id := range qid.Normalize(v) {
				idx[id] = e.Ref()
			}
		}
	}
	return idx
}

// Lookup returns the map reference for a QID, if indexed.
func (i Index) Lookup(id string) (string, bool) {
	ref, ok := i[id]
	return ref, ok
}
