package rasterapi

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// Graph node kinds. Every handle returned by the client is a node; nothing
// is computed remotely until a reduction or centroid request ships the
// graph to the platform.
const (
	nodeFilter    = "filter"
	nodeMask      = "mask"
	nodeComposite = "composite"
	nodeFormula   = "formula"
	nodeStack     = "stack"
)

type node struct {
	Kind       string                `json:"kind"`
	Collection string                `json:"collection,omitempty"`
	Region     *geojson.Geometry     `json:"region,omitempty"`
	Window     *domain.TimeWindow    `json:"window,omitempty"`
	Bands      domain.BandSet        `json:"bands,omitempty"`
	Mask       *domain.MaskStrategy  `json:"mask,omitempty"`
	Composite  *domain.CompositeSpec `json:"composite,omitempty"`
	Formula    *domain.IndexFormula  `json:"formula,omitempty"`
	Input      *node                 `json:"input,omitempty"`
	Layers     map[string]*node      `json:"layers,omitempty"`
}

// collection is a lazy filtered or masked image collection.
type collection struct {
	source string
	bands  []string // nil until masked
	graph  *node
}

func (c *collection) Source() string { return c.source }

// image is a lazy raster whose band names are tracked client-side.
type image struct {
	bands []string
	graph *node
}

func (i *image) BandNames() []string { return append([]string(nil), i.bands...) }

func regionGeometry(r domain.Region) *geojson.Geometry {
	return geojson.NewGeometry(r.Polygon())
}

func asCollection(c domain.Collection) (*collection, error) {
	col, ok := c.(*collection)
	if !ok {
		return nil, fmt.Errorf("collection %T was not created by the raster API client", c)
	}
	return col, nil
}

func asImage(img domain.Image) (*image, error) {
	i, ok := img.(*image)
	if !ok {
		return nil, fmt.Errorf("image %T was not created by the raster API client", img)
	}
	return i, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
