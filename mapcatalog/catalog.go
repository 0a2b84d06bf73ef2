// Package mapcatalog keeps the table of maps that have ratings, cached on disk and refreshed
// from a remote source.
package mapcatalog

import (
	"maps"
	"strings"
)

// Catalog maps a normalized map name to the key the rating provider knows it by.
type Catalog map[string]string

func NormalizeName(mapName string) string {
	return strings.ToLower(strings.TrimSpace(mapName))
}

func (c Catalog) Lookup(mapName string) (string, bool) {
	key, ok := c[NormalizeName(mapName)]
	return key, ok && key != ""
}

// Equal reports whether both tables have the same length, key set and values.
func (c Catalog) Equal(other Catalog) bool {
	if len(c) != len(other) {
		return false
	}
	return maps.Equal(c, other)
}

func (c Catalog) normalized() Catalog {
	result := make(Catalog, len(c))
	for name, key := range c {
		name = NormalizeName(name)
		if name == "" {
			continue
		}
		result[name] = strings.TrimSpace(key)
	}
	return result
}
