package domain

import (
	"context"
	"log/slog"
)

// Region place-name sources recorded in RegionInfo.GeoSource.
const (
	GeoSourceReverse  = "reverse"  // named by the geocoder
	GeoSourceOriginal = "original" // geocoder found no place
	GeoSourceFailed   = "failed"   // geocoder errored
)

// GeocodingResult is a place near a coordinate.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider relevance
}

// Geocoder names a region from its centroid.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// EnrichWithPlaceName names a region from its centroid. A nil geocoder
// leaves info untouched; a failed lookup only sets GeoSource.
func EnrichWithPlaceName(ctx context.Context, info RegionInfo, geocoder Geocoder, logger *slog.Logger) RegionInfo {
	if geocoder == nil {
		return info
	}

	result, err := geocoder.ReverseGeocode(ctx, info.Centroid.Lat, info.Centroid.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", info.Centroid.Lat,
			"lon", info.Centroid.Lon,
			"error", err,
		)
		info.GeoSource = GeoSourceFailed
		return info
	}

	switch {
	case result.PlaceName != "":
		info.PlaceName = result.PlaceName
	case result.FormattedAddress != "":
		info.PlaceName = result.FormattedAddress
	default:
		info.GeoSource = GeoSourceOriginal
		return info
	}
	info.GeoSource = GeoSourceReverse
	return info
}
