package raster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("raster engine closed")

// Engine is an in-memory raster platform. Collections are registered up
// front; images are immutable so operations only hold the read lock while
// resolving a collection.
type Engine struct {
	mu          sync.RWMutex
	collections map[string][]*Image
	closed      bool
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{collections: make(map[string][]*Image)}
}

// Add registers images under a collection id.
func (e *Engine) Add(collection string, images ...*Image) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collections[collection] = append(e.collections[collection], images...)
}

// Collections returns the registered collection ids, sorted.
func (e *Engine) Collections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.collections))
	for id := range e.collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// FilterCollection keeps images whose grid intersects the region bound and
// whose acquisition time falls in the window. Unknown collections filter to
// an empty collection.
func (e *Engine) FilterCollection(ctx context.Context, collection string, region domain.Region, window domain.TimeWindow) (domain.Collection, error) {
	if err := e.checkOpen(ctx); err != nil {
		return nil, err
	}

	e.mu.RLock()
	all := e.collections[collection]
	e.mu.RUnlock()

	bound := region.Bound()
	kept := make([]*Image, 0, len(all))
	for _, img := range all {
		if img.grid.Bound.Intersects(bound) && window.Contains(img.acquired) {
			kept = append(kept, img)
		}
	}
	sortChronological(kept)
	return &Collection{source: collection, images: kept}, nil
}

// Mask applies a quality strategy image by image.
func (e *Engine) Mask(ctx context.Context, c domain.Collection, bands domain.BandSet, strategy domain.MaskStrategy) (domain.Collection, error) {
	if err := e.checkOpen(ctx); err != nil {
		return nil, err
	}
	col, err := asCollection(c)
	if err != nil {
		return nil, err
	}
	if err := strategy.Validate(); err != nil {
		return nil, fmt.Errorf("mask %s: %w", col.source, err)
	}

	qualityID, hasQuality := bands.ID(domain.BandQuality)
	if strategy.NeedsQualityBand() && !hasQuality {
		return nil, fmt.Errorf("mask %s: %s strategy needs a quality band", col.source, strategy.Kind)
	}

	out := make([]*Image, 0, len(col.images))
	for _, img := range col.images {
		masked, err := maskImage(img, bands, qualityID, strategy)
		if err != nil {
			return nil, fmt.Errorf("mask %s: %w", col.source, err)
		}
		out = append(out, masked)
	}
	return &Collection{source: col.source, images: out}, nil
}

func maskImage(img *Image, bands domain.BandSet, qualityID string, strategy domain.MaskStrategy) (*Image, error) {
	selected := make(map[string][]float64, len(bands))
	for _, id := range bands {
		if id == "" {
			continue
		}
		data, ok := img.bands[id]
		if !ok {
			return nil, fmt.Errorf("image %s has no band %s", img.id, id)
		}
		if id == qualityID {
			selected[id] = data
			continue
		}
		scaled := make([]float64, len(data))
		for i, v := range data {
			scaled[i] = strategy.Rescale(v)
		}
		selected[id] = scaled
	}

	valid := make([]bool, len(img.valid))
	for i := range valid {
		valid[i] = img.valid[i]
		if valid[i] && strategy.NeedsQualityBand() {
			valid[i] = strategy.Keep(img.bands[qualityID][i])
		}
	}
	return &Image{id: img.id, acquired: img.acquired, grid: img.grid, bands: selected, valid: valid}, nil
}

// ApplyFormula evaluates f on every valid pixel.
func (e *Engine) ApplyFormula(ctx context.Context, img domain.Image, f domain.IndexFormula) (domain.Image, error) {
	if err := e.checkOpen(ctx); err != nil {
		return nil, err
	}
	src, err := asImage(img)
	if err != nil {
		return nil, err
	}
	if err := f.Expr.Validate(); err != nil {
		return nil, fmt.Errorf("apply formula %s: %w", f.Name, err)
	}
	if src.noData {
		return emptyImage(f.Name), nil
	}
	for _, b := range f.Expr.Bands() {
		if _, ok := src.bands[b]; !ok {
			return nil, fmt.Errorf("apply formula %s: image has no band %s", f.Name, b)
		}
	}

	n := src.grid.size()
	data := make([]float64, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		v, ok := f.Expr.Eval(func(band string) (float64, bool) { return src.At(band, i) })
		data[i], valid[i] = v, ok
	}
	return &Image{
		id:       src.id,
		acquired: src.acquired,
		grid:     src.grid,
		bands:    map[string][]float64{f.Name: data},
		valid:    valid,
	}, nil
}

// Stack renames single-band layers and aligns them onto the grid of the
// first layer in key order.
func (e *Engine) Stack(ctx context.Context, layers map[string]domain.Image) (domain.Image, error) {
	if err := e.checkOpen(ctx); err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, errors.New("stack: no layers")
	}

	names := make([]string, 0, len(layers))
	for name := range layers {
		names = append(names, name)
	}
	sort.Strings(names)

	srcs := make([]*Image, len(names))
	noData := false
	var grid Grid
	for i, name := range names {
		img, err := asImage(layers[name])
		if err != nil {
			return nil, err
		}
		srcs[i] = img
		if img.noData {
			noData = true
			continue
		}
		if len(img.bands) != 1 {
			return nil, fmt.Errorf("stack: layer %s has %d bands, want 1", name, len(img.bands))
		}
		if grid.Width == 0 {
			grid = img.grid
		}
	}
	if noData {
		return emptyImage(names...), nil
	}

	n := grid.size()
	bands := make(map[string][]float64, len(names))
	valid := make([]bool, n)
	for i := range valid {
		valid[i] = true
	}
	for li, name := range names {
		src := srcs[li]
		band := src.BandNames()[0]
		lookup := resampler(src, grid)
		data := make([]float64, n)
		for i := 0; i < n; i++ {
			v, ok := lookup(band, i)
			data[i] = v
			valid[i] = valid[i] && ok
		}
		bands[name] = data
	}
	return &Image{grid: grid, bands: bands, valid: valid}, nil
}

// ReduceRegion averages one band over the pixels whose centers fall inside
// the region, visiting every k-th pixel where k is the requested scale over
// the pixel size. A region smaller than one pixel samples the pixel under
// its centroid.
func (e *Engine) ReduceRegion(ctx context.Context, img domain.Image, region domain.Region, stat domain.ZonalStatistic) (float64, error) {
	if err := e.checkOpen(ctx); err != nil {
		return 0, err
	}
	src, err := asImage(img)
	if err != nil {
		return 0, err
	}
	if stat.Reducer != "" && stat.Reducer != domain.ReducerMean {
		return 0, fmt.Errorf("reduce region: unsupported reducer %q", stat.Reducer)
	}
	if src.noData {
		return 0, domain.ErrNoData
	}
	if _, ok := src.bands[stat.Band]; !ok {
		return 0, fmt.Errorf("reduce region: image has no band %s", stat.Band)
	}

	g := src.grid
	stride := 1
	if stat.ScaleMeters > 0 {
		stride = max(1, int(math.Floor(stat.ScaleMeters/g.PixelMeters())))
	}

	var sum float64
	var samples, count int
	for row := 0; row < g.Height; row += stride {
		if row%64 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		for col := 0; col < g.Width; col += stride {
			lon, lat := g.center(col, row)
			if !region.Contains(lon, lat) {
				continue
			}
			samples++
			if stat.MaxSamples > 0 && float64(samples) > stat.MaxSamples {
				return 0, fmt.Errorf("reduce region: more than %g pixels at %gm", stat.MaxSamples, stat.ScaleMeters)
			}
			if v, ok := src.At(stat.Band, row*g.Width+col); ok {
				sum += v
				count++
			}
		}
	}

	if samples == 0 {
		c := region.Centroid()
		if v, ok := src.sample(stat.Band, c.Lon, c.Lat); ok {
			return v, nil
		}
	}
	if count == 0 {
		return 0, domain.ErrNoData
	}
	return sum / float64(count), nil
}

// Centroid returns the region's own centroid.
func (e *Engine) Centroid(ctx context.Context, region domain.Region) (domain.Geo, error) {
	if err := e.checkOpen(ctx); err != nil {
		return domain.Geo{}, err
	}
	return region.Centroid(), nil
}

// Ping reports whether the engine is open.
func (e *Engine) Ping(ctx context.Context) error {
	return e.checkOpen(ctx)
}

// Close releases the registered collections.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.collections = nil
	return nil
}

func asCollection(c domain.Collection) (*Collection, error) {
	col, ok := c.(*Collection)
	if !ok || col == nil {
		return nil, fmt.Errorf("collection %T does not belong to this engine", c)
	}
	return col, nil
}

func asImage(img domain.Image) (*Image, error) {
	i, ok := img.(*Image)
	if !ok || i == nil {
		return nil, fmt.Errorf("image %T does not belong to this engine", img)
	}
	return i, nil
}
