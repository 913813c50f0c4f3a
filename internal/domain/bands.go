package domain

import (
	"fmt"
	"sort"
)

// Band is a logical band name, independent of any one sensor.
type Band string

const (
	BandNIR           Band = "NIR"
	BandRed           Band = "RED"
	BandGreen         Band = "GREEN"
	BandBlue          Band = "BLUE"
	BandQuality       Band = "QUALITY"
	BandThermal       Band = "THERMAL"
	BandPrecipitation Band = "PRECIPITATION"
)

// KnownBands lists every logical band a catalog may map.
var KnownBands = []Band{BandNIR, BandRed, BandGreen, BandBlue, BandQuality, BandThermal, BandPrecipitation}

// Valid reports whether b is one of the known logical bands.
func (b Band) Valid() bool {
	for _, k := range KnownBands {
		if b == k {
			return true
		}
	}
	return false
}

// BandSet maps logical bands to the platform band ids of one source.
type BandSet map[Band]string

// ID returns the platform id for a logical band.
func (s BandSet) ID(b Band) (string, bool) {
	id, ok := s[b]
	return id, ok && id != ""
}

// Require returns an error naming the first missing logical band.
func (s BandSet) Require(bands ...Band) error {
	for _, b := range bands {
		if _, ok := s.ID(b); !ok {
			return fmt.Errorf("band set missing %s", b)
		}
	}
	return nil
}

// Spectral returns the platform ids of every non-quality band, sorted.
func (s BandSet) Spectral() []string {
	ids := make([]string, 0, len(s))
	for b, id := range s {
		if b != BandQuality && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
