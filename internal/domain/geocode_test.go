package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	reverseResult GeocodingResult
	reverseErr    error
	reverseCalls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.reverseCalls++
	return m.reverseResult, m.reverseErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestEnrichWithPlaceName_NilGeocoder(t *testing.T) {
	info := RegionInfo{Centroid: Geo{Lat: 4.65, Lon: -74.1}}

	result := EnrichWithPlaceName(context.Background(), info, nil, discardLogger())

	assert.Empty(t, result.GeoSource)
	assert.Empty(t, result.PlaceName)
}

func TestEnrichWithPlaceName_Reverse(t *testing.T) {
	geo := &mockGeocoder{
		reverseResult: GeocodingResult{
			FormattedAddress: "Bogotá, Bogotá D.C., Colombia",
			PlaceName:        "Bogotá",
			Confidence:       0.98,
		},
	}
	info := RegionInfo{Centroid: Geo{Lat: 4.65, Lon: -74.1}}

	result := EnrichWithPlaceName(context.Background(), info, geo, discardLogger())

	assert.Equal(t, "Bogotá", result.PlaceName)
	assert.Equal(t, "reverse", result.GeoSource)
	assert.Equal(t, 1, geo.reverseCalls)
}

func TestEnrichWithPlaceName_FallsBackToFormattedAddress(t *testing.T) {
	geo := &mockGeocoder{
		reverseResult: GeocodingResult{FormattedAddress: "Sabana de Bogotá"},
	}

	result := EnrichWithPlaceName(context.Background(), RegionInfo{}, geo, discardLogger())

	assert.Equal(t, "Sabana de Bogotá", result.PlaceName)
	assert.Equal(t, "reverse", result.GeoSource)
}

func TestEnrichWithPlaceName_Error_GracefulDegradation(t *testing.T) {
	geo := &mockGeocoder{reverseErr: errors.New("rate limited")}
	info := RegionInfo{Centroid: Geo{Lat: 4.65, Lon: -74.1}}

	result := EnrichWithPlaceName(context.Background(), info, geo, discardLogger())

	assert.Equal(t, "failed", result.GeoSource)
	assert.Empty(t, result.PlaceName)
	assert.Equal(t, 4.65, result.Centroid.Lat) // centroid preserved
}

func TestEnrichWithPlaceName_EmptyResult(t *testing.T) {
	geo := &mockGeocoder{}

	result := EnrichWithPlaceName(context.Background(), RegionInfo{}, geo, discardLogger())

	assert.Equal(t, "original", result.GeoSource)
}
