// Package raster is an in-process implementation of domain.RasterPlatform.
// It holds small gridded collections in memory and evaluates every platform
// operation eagerly. It backs the CLI's offline mode and the tests.
package raster

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
)

// metersPerDegree approximates the length of one degree of latitude.
const metersPerDegree = 111_320.0

// Grid is a north-up lon/lat pixel grid. Row 0 is the northern edge.
type Grid struct {
	Bound  orb.Bound
	Width  int
	Height int
}

// NewGrid builds a grid over [minLon, minLat, maxLon, maxLat].
func NewGrid(bbox [4]float64, width, height int) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, fmt.Errorf("grid needs positive size, got %dx%d", width, height)
	}
	if bbox[0] >= bbox[2] || bbox[1] >= bbox[3] {
		return Grid{}, fmt.Errorf("grid bounds %v are empty", bbox)
	}
	return Grid{
		Bound:  orb.Bound{Min: orb.Point{bbox[0], bbox[1]}, Max: orb.Point{bbox[2], bbox[3]}},
		Width:  width,
		Height: height,
	}, nil
}

func (g Grid) size() int { return g.Width * g.Height }

func (g Grid) pixelWidth() float64 { return (g.Bound.Max.Lon() - g.Bound.Min.Lon()) / float64(g.Width) }
func (g Grid) pixelHeight() float64 { return (g.Bound.Max.Lat() - g.Bound.Min.Lat()) / float64(g.Height) }

// PixelMeters is the approximate pixel edge length in meters.
func (g Grid) PixelMeters() float64 {
	lat := (g.Bound.Min.Lat() + g.Bound.Max.Lat()) / 2
	w := g.pixelWidth() * metersPerDegree * math.Cos(lat*math.Pi/180)
	h := g.pixelHeight() * metersPerDegree
	return math.Max(math.Min(w, h), 1e-9)
}

// center returns the lon/lat of pixel (col, row).
func (g Grid) center(col, row int) (float64, float64) {
	lon := g.Bound.Min.Lon() + (float64(col)+0.5)*g.pixelWidth()
	lat := g.Bound.Max.Lat() - (float64(row)+0.5)*g.pixelHeight()
	return lon, lat
}

// index returns the pixel containing a lon/lat point.
func (g Grid) index(lon, lat float64) (int, bool) {
	if !g.Bound.Contains(orb.Point{lon, lat}) {
		return 0, false
	}
	col := int((lon - g.Bound.Min.Lon()) / g.pixelWidth())
	row := int((g.Bound.Max.Lat() - lat) / g.pixelHeight())
	if col == g.Width {
		col--
	}
	if row == g.Height {
		row--
	}
	return row*g.Width + col, true
}

// Image is an immutable multi-band raster. All bands share one validity
// mask; a pixel is valid only where the mask is set.
type Image struct {
	id       string
	acquired time.Time
	grid     Grid
	bands    map[string][]float64
	valid    []bool
	noData   bool
}

// NewImage builds an image from row-major band data. NaN marks an invalid
// pixel in any band.
func NewImage(id string, acquired time.Time, grid Grid, bands map[string][]float64) (*Image, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("image %s has no bands", id)
	}
	valid := make([]bool, grid.size())
	for i := range valid {
		valid[i] = true
	}
	copied := make(map[string][]float64, len(bands))
	for name, data := range bands {
		if len(data) != grid.size() {
			return nil, fmt.Errorf("image %s band %s has %d pixels, want %d", id, name, len(data), grid.size())
		}
		c := make([]float64, len(data))
		copy(c, data)
		for i, v := range c {
			if math.IsNaN(v) {
				valid[i] = false
			}
		}
		copied[name] = c
	}
	return &Image{id: id, acquired: acquired, grid: grid, bands: copied, valid: valid}, nil
}

// emptyImage is a fully invalid image carrying only band names.
func emptyImage(names ...string) *Image {
	bands := make(map[string][]float64, len(names))
	for _, n := range names {
		bands[n] = nil
	}
	return &Image{bands: bands, noData: true}
}

// ID returns the image identifier.
func (img *Image) ID() string { return img.id }

// Acquired returns the acquisition time.
func (img *Image) Acquired() time.Time { return img.acquired }

// Grid returns the pixel grid.
func (img *Image) Grid() Grid { return img.grid }

// NoData reports whether the image has no valid pixel by construction.
func (img *Image) NoData() bool { return img.noData }

// BandNames implements domain.Image.
func (img *Image) BandNames() []string {
	names := make([]string, 0, len(img.bands))
	for n := range img.bands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// At returns a band value at pixel index i and whether it is valid.
func (img *Image) At(band string, i int) (float64, bool) {
	if img.noData || !img.valid[i] {
		return 0, false
	}
	data, ok := img.bands[band]
	if !ok {
		return 0, false
	}
	return data[i], true
}

// sample looks up the pixel of img under a lon/lat point.
func (img *Image) sample(band string, lon, lat float64) (float64, bool) {
	if img.noData {
		return 0, false
	}
	i, ok := img.grid.index(lon, lat)
	if !ok {
		return 0, false
	}
	return img.At(band, i)
}

// resampler returns a nearest-neighbour lookup of src onto dst's pixels.
func resampler(src *Image, dst Grid) func(band string, i int) (float64, bool) {
	if !src.noData && src.grid == dst {
		return src.At
	}
	return func(band string, i int) (float64, bool) {
		lon, lat := dst.center(i%dst.Width, i/dst.Width)
		return src.sample(band, lon, lat)
	}
}

// Collection is an ordered, immutable list of images from one source.
type Collection struct {
	source string
	images []*Image
}

// Source implements domain.Collection.
func (c *Collection) Source() string { return c.source }

// Len returns the number of images.
func (c *Collection) Len() int { return len(c.images) }

// Images returns the images in chronological order.
func (c *Collection) Images() []*Image {
	out := make([]*Image, len(c.images))
	copy(out, c.images)
	return out
}

// sortChronological orders images by acquisition time, then id.
func sortChronological(images []*Image) {
	sort.SliceStable(images, func(i, j int) bool {
		if !images[i].acquired.Equal(images[j].acquired) {
			return images[i].acquired.Before(images[j].acquired)
		}
		return images[i].id < images[j].id
	})
}
