package raster

import (
	"context"
	"fmt"
	"sort"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// Composite flattens a collection onto the grid of its first image. An
// empty collection yields a fully invalid image.
//
// The quality mosaic visits images in chronological order and replaces the
// chosen image whenever the reference value is greater than or equal to the
// current best, so the later image wins ties.
func (e *Engine) Composite(ctx context.Context, c domain.Collection, spec domain.CompositeSpec) (domain.Image, error) {
	if err := e.checkOpen(ctx); err != nil {
		return nil, err
	}
	col, err := asCollection(c)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("composite %s: %w", col.source, err)
	}
	if len(col.images) == 0 {
		return emptyImage(), nil
	}

	images := col.Images()
	sortChronological(images)

	first := images[0]
	grid := first.grid
	names := first.BandNames()
	for _, img := range images[1:] {
		for _, n := range names {
			if _, ok := img.bands[n]; !ok {
				return nil, fmt.Errorf("composite %s: image %s has no band %s", col.source, img.id, n)
			}
		}
	}
	if spec.Stat == domain.StatQualityMosaic {
		if _, ok := first.bands[spec.ReferenceBand]; !ok {
			return nil, fmt.Errorf("composite %s: no reference band %s", col.source, spec.ReferenceBand)
		}
	}

	lookups := make([]func(string, int) (float64, bool), len(images))
	for i, img := range images {
		lookups[i] = resampler(img, grid)
	}

	n := grid.size()
	out := make(map[string][]float64, len(names))
	for _, name := range names {
		out[name] = make([]float64, n)
	}
	valid := make([]bool, n)

	if spec.Stat == domain.StatQualityMosaic {
		for i := 0; i < n; i++ {
			best := -1
			var bestRef float64
			for k, lookup := range lookups {
				ref, ok := lookup(spec.ReferenceBand, i)
				if !ok {
					continue
				}
				if best < 0 || ref >= bestRef {
					best, bestRef = k, ref
				}
			}
			if best < 0 {
				continue
			}
			valid[i] = true
			for _, name := range names {
				out[name][i], _ = lookups[best](name, i)
			}
		}
		return &Image{grid: grid, bands: out, valid: valid, acquired: images[len(images)-1].acquired}, nil
	}

	reduce := reducer(spec.Stat)
	values := make([]float64, 0, len(images))
	for _, name := range names {
		data := out[name]
		for i := 0; i < n; i++ {
			values = values[:0]
			for _, lookup := range lookups {
				if v, ok := lookup(name, i); ok {
					values = append(values, v)
				}
			}
			if len(values) == 0 {
				continue
			}
			data[i] = reduce(values)
			valid[i] = true
		}
	}
	return &Image{grid: grid, bands: out, valid: valid, acquired: images[len(images)-1].acquired}, nil
}

func reducer(stat domain.CompositeStat) func([]float64) float64 {
	switch stat {
	case domain.StatMean:
		return mean
	case domain.StatSum:
		return sum
	default:
		return median
	}
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func mean(values []float64) float64 {
	return sum(values) / float64(len(values))
}

// median averages the two middle values of an even-length input.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
