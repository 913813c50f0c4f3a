package domain

import (
	"context"
	"fmt"
)

// Image is an opaque, immutable raster handle. Every platform operation
// returns a new handle.
type Image interface {
	BandNames() []string
}

// Collection is an opaque handle to a filtered image collection.
type Collection interface {
	Source() string
}

// CompositeStat selects how a collection is flattened into one image.
type CompositeStat string

const (
	StatMedian        CompositeStat = "median"
	StatMean          CompositeStat = "mean"
	StatSum           CompositeStat = "sum"
	StatQualityMosaic CompositeStat = "quality_mosaic"
)

// TieLatest resolves quality mosaic ties in favour of the later image in
// chronological order (acquisition time, then image id).
const TieLatest = "latest"

// CompositeSpec describes a temporal composite.
type CompositeSpec struct {
	Stat          CompositeStat `json:"stat" yaml:"stat"`
	ReferenceBand string        `json:"reference_band,omitempty" yaml:"reference_band,omitempty"`
	TieBreak      string        `json:"tie_break,omitempty" yaml:"-"`
}

// Validate checks the statistic and its reference band.
func (s CompositeSpec) Validate() error {
	switch s.Stat {
	case StatMedian, StatMean, StatSum:
		return nil
	case StatQualityMosaic:
		if s.ReferenceBand == "" {
			return fmt.Errorf("quality mosaic needs a reference band")
		}
		return nil
	default:
		return fmt.Errorf("unknown composite statistic %q", s.Stat)
	}
}

// Reducers supported by zonal statistics.
const ReducerMean = "mean"

// DefaultMaxSamples caps the pixels visited by one reduction.
const DefaultMaxSamples = 1e8

// ZonalStatistic is a spatial reduction of one band over a region.
type ZonalStatistic struct {
	Band        string  `json:"band"`
	Reducer     string  `json:"reducer"`
	ScaleMeters float64 `json:"scale_m"`
	MaxSamples  float64 `json:"max_samples"`
}

// RasterPlatform is a session with an imagery platform. A session is created
// once, shared by concurrent pipelines and closed at shutdown, so
// implementations must be safe for concurrent use.
type RasterPlatform interface {
	// FilterCollection selects images of a collection intersecting region
	// and acquired within window.
	FilterCollection(ctx context.Context, collection string, region Region, window TimeWindow) (Collection, error)

	// Mask applies a quality strategy to every image, keeps only the bands
	// in the set and rescales non-quality bands.
	Mask(ctx context.Context, c Collection, bands BandSet, strategy MaskStrategy) (Collection, error)

	// Composite flattens a collection. An empty collection yields an image
	// with no valid pixels.
	Composite(ctx context.Context, c Collection, spec CompositeSpec) (Image, error)

	// ApplyFormula evaluates a formula per pixel into a single band named
	// after the formula.
	ApplyFormula(ctx context.Context, img Image, f IndexFormula) (Image, error)

	// Stack combines single-band images into one image whose bands are
	// named by the map keys. A pixel is valid only where every layer is.
	Stack(ctx context.Context, layers map[string]Image) (Image, error)

	// ReduceRegion reduces one band over a region. It returns ErrNoData
	// when the region holds no valid pixel.
	ReduceRegion(ctx context.Context, img Image, region Region, stat ZonalStatistic) (float64, error)

	// Centroid returns the platform's centroid of a region.
	Centroid(ctx context.Context, region Region) (Geo, error)

	// Ping checks the session is usable.
	Ping(ctx context.Context) error

	Close() error
}
