package raster

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// FixtureImage is the JSON form of one image. Invalid pixels are null.
type FixtureImage struct {
	ID       string                    `json:"id"`
	Acquired time.Time                 `json:"acquired"`
	BBox     [4]float64                `json:"bbox"`
	Width    int                       `json:"width"`
	Height   int                       `json:"height"`
	Bands    map[string][]domain.Value `json:"bands"`
}

// FixtureSet is a JSON document of collections keyed by collection id.
type FixtureSet struct {
	Collections map[string][]FixtureImage `json:"collections"`
}

// Load registers every image of a fixture document.
func (e *Engine) Load(r io.Reader) error {
	var set FixtureSet
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for collection, images := range set.Collections {
		for _, fi := range images {
			img, err := fi.Image()
			if err != nil {
				return fmt.Errorf("load fixture %s/%s: %w", collection, fi.ID, err)
			}
			e.Add(collection, img)
		}
	}
	return nil
}

// LoadFile registers the fixtures stored at path.
func (e *Engine) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return e.Load(f)
}

// Image converts the fixture to an engine image.
func (fi FixtureImage) Image() (*Image, error) {
	grid, err := NewGrid(fi.BBox, fi.Width, fi.Height)
	if err != nil {
		return nil, err
	}
	bands := make(map[string][]float64, len(fi.Bands))
	for name, values := range fi.Bands {
		data := make([]float64, len(values))
		for i, v := range values {
			x, ok := v.Float()
			if !ok {
				x = math.NaN()
			}
			data[i] = x
		}
		bands[name] = data
	}
	return NewImage(fi.ID, fi.Acquired, grid, bands)
}

// Fixture converts an engine image to its JSON form.
func Fixture(img *Image) FixtureImage {
	g := img.grid
	fi := FixtureImage{
		ID:       img.id,
		Acquired: img.acquired,
		BBox:     [4]float64{g.Bound.Min.Lon(), g.Bound.Min.Lat(), g.Bound.Max.Lon(), g.Bound.Max.Lat()},
		Width:    g.Width,
		Height:   g.Height,
		Bands:    make(map[string][]domain.Value, len(img.bands)),
	}
	for name := range img.bands {
		values := make([]domain.Value, g.size())
		for i := range values {
			if v, ok := img.At(name, i); ok {
				values[i] = domain.Measured(v)
			}
		}
		fi.Bands[name] = values
	}
	return fi
}

// WriteFixtures encodes a fixture document.
func WriteFixtures(w io.Writer, set FixtureSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("encode fixtures: %w", err)
	}
	return nil
}
