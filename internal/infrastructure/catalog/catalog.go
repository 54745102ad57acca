// Package catalog loads the roadmap catalog from the embedded seed or from
// an operator-supplied definition file.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
)

//go:embed roadmaps.json
var seedJSON []byte

// Load builds a StaticCatalog. An empty path selects the embedded seed.
func Load(path string) (*roadmap.StaticCatalog, error) {
	data := seedJSON
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		data = b
	}

	graphs, err := roadmap.ParseDefinitions(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	cat, err := roadmap.NewStaticCatalog(graphs...)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return cat, nil
}

// Seed returns the catalog embedded in the binary.
func Seed() (*roadmap.StaticCatalog, error) {
	return Load("")
}
