// Package catalog loads the ordered list of entities a crawl visits.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

//go:embed default.yaml
var defaultCatalog []byte

// ErrInvalidCatalog is returned for catalogs that cannot drive a crawl.
var ErrInvalidCatalog = errors.New("invalid catalog")

type document struct {
	// Theme applies to every entity that does not set its own.
	Theme    string           `yaml:"theme"`
	Entities []crawler.Entity `yaml:"entities"`
}

// Default returns the embedded catalog.
func Default() ([]crawler.Entity, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, falling back to the embedded catalog when path
// is empty.
func Load(path string) ([]crawler.Entity, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	entities, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return entities, nil
}

// Parse decodes and validates a YAML catalog, preserving entry order.
func Parse(data []byte) ([]crawler.Entity, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if len(doc.Entities) == 0 {
		return nil, fmt.Errorf("%w: no entities", ErrInvalidCatalog)
	}

	seen := make(map[string]int, len(doc.Entities))
	entities := make([]crawler.Entity, 0, len(doc.Entities))
	for i, ent := range doc.Entities {
		ent.ID = strings.TrimSpace(ent.ID)
		ent.Name = strings.TrimSpace(ent.Name)
		if ent.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no code", ErrInvalidCatalog, i)
		}
		if prev, dup := seen[ent.ID]; dup {
			return nil, fmt.Errorf("%w: code %s repeated at entries %d and %d", ErrInvalidCatalog, ent.ID, prev, i)
		}
		seen[ent.ID] = i
		if ent.Name == "" {
			ent.Name = ent.ID
		}
		if ent.Theme == "" {
			ent.Theme = doc.Theme
		}
		entities = append(entities, ent)
	}
	return entities, nil
}
