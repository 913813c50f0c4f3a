// Command genfixtures writes a synthetic raster fixture document for the
// in-memory engine. Each default collection gets a few scenes per year over
// the requested bounding box, with a greening trend, a warming trend and
// scattered cloud pixels so masking and compositing have work to do.
//
// Usage:
//
//	go run ./cmd/genfixtures -out data/fixtures.json \
//	  -bbox -74.10,4.55,-74.00,4.65 -years 2019,2024
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/pipeline"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/raster"
)

// Sentinel-2 scene classification codes.
const (
	sclVegetation = 4
	sclBareSoil   = 5
	sclCloudHigh  = 9
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the fixture JSON")
	bboxFlag := flag.String("bbox", "-74.10,4.55,-74.00,4.65", "minLon,minLat,maxLon,maxLat")
	yearsFlag := flag.String("years", "2019,2024", "comma-separated acquisition years")
	size := flag.Int("size", 32, "grid width and height in pixels")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	bbox, err := parseBBox(*bboxFlag)
	if err != nil {
		return err
	}
	years, err := parseYears(*yearsFlag)
	if err != nil {
		return err
	}

	set, err := generate(bbox, years, *size, rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)))
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()
	if err := raster.WriteFixtures(f, set); err != nil {
		return err
	}

	for collection, images := range set.Collections {
		log.Printf("%s: %d images", collection, len(images))
	}
	log.Printf("wrote %s", *out)
	return nil
}

func generate(bbox [4]float64, years []int, size int, rng *rand.Rand) (raster.FixtureSet, error) {
	grid, err := raster.NewGrid(bbox, size, size)
	if err != nil {
		return raster.FixtureSet{}, err
	}
	set := raster.FixtureSet{Collections: map[string][]raster.FixtureImage{}}
	base := years[0]

	add := func(collection, id string, acquired time.Time, bands map[string][]float64) error {
		img, err := raster.NewImage(id, acquired, grid, bands)
		if err != nil {
			return fmt.Errorf("image %s: %w", id, err)
		}
		set.Collections[collection] = append(set.Collections[collection], raster.Fixture(img))
		return nil
	}

	n := size * size
	for _, year := range years {
		trend := float64(year - base)
		for _, month := range []time.Month{time.March, time.June, time.September} {
			at := time.Date(year, month, 15, 15, 0, 0, 0, time.UTC)
			tag := at.Format("20060102")

			nir, red, green, blue, scl := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
			for i := range n {
				// Vegetation density rises west to east and with the years.
				col := i % size
				density := math.Min(1, 0.3+0.5*float64(col)/float64(size)+0.03*trend)
				nir[i] = reflectance(0.2+0.4*density, rng)
				red[i] = reflectance(0.15-0.1*density, rng)
				green[i] = reflectance(0.08+0.04*density, rng)
				blue[i] = reflectance(0.05, rng)
				switch r := rng.Float64(); {
				case r < 0.1:
					scl[i] = sclCloudHigh
				case density < 0.4:
					scl[i] = sclBareSoil
				default:
					scl[i] = sclVegetation
				}
			}
			err := add(pipeline.CollectionSentinel2, "S2_"+tag, at, map[string][]float64{
				"B8": nir, "B4": red, "B3": green, "B2": blue, "SCL": scl,
			})
			if err != nil {
				return set, err
			}

			lst := make([]float64, n)
			for i := range lst {
				// 14900 ≈ 24.85 °C after the 0.02 gain; warms 0.1 °C per year.
				lst[i] = 14900 + 5*trend + rng.NormFloat64()*10
			}
			if err := add(pipeline.CollectionMODISLST, "LST_"+tag, at, map[string][]float64{"LST_Day_1km": lst}); err != nil {
				return set, err
			}

			precip := make([]float64, n)
			for i := range precip {
				precip[i] = math.Max(0, 2+0.1*trend+rng.NormFloat64()*0.5)
			}
			if err := add(pipeline.CollectionGPM, "GPM_"+tag, at, map[string][]float64{"precipitationCal": precip}); err != nil {
				return set, err
			}
		}
	}
	return set, nil
}

// reflectance scales a unit reflectance to Sentinel-2 digital numbers with
// a little noise.
func reflectance(v float64, rng *rand.Rand) float64 {
	v += rng.NormFloat64() * 0.01
	return math.Round(math.Max(0, v) * 1e4)
}

func parseBBox(s string) ([4]float64, error) {
	var out [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return out, fmt.Errorf("bbox needs 4 values, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, fmt.Errorf("bbox value %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseYears(s string) ([]int, error) {
	var years []int
	for _, p := range strings.Split(s, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("year %q: %w", p, err)
		}
		years = append(years, y)
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no years given")
	}
	return years, nil
}
