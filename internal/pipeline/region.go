package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// ResolveRegion builds a region from either a bounding box or a polygon.
// Exactly one must be given.
func ResolveRegion(coords []float64, polygon [][2]float64) (domain.Region, error) {
	switch {
	case len(coords) > 0 && len(polygon) > 0:
		return domain.Region{}, &domain.InvalidRegionError{Reason: "give either coords or polygon, not both"}
	case len(polygon) > 0:
		return domain.NewPolygonRegion(polygon)
	case len(coords) > 0:
		return domain.NewRegionFromBBox(coords)
	default:
		return domain.Region{}, &domain.InvalidRegionError{Reason: "coords or polygon is required"}
	}
}

// RegionResolver derives the centroid of a validated region.
type RegionResolver struct {
	platform domain.RasterPlatform
	logger   *slog.Logger
}

// NewRegionResolver creates a RegionResolver. platform may be nil, in which
// case centroids are always computed locally.
func NewRegionResolver(platform domain.RasterPlatform, logger *slog.Logger) *RegionResolver {
	return &RegionResolver{platform: platform, logger: logger}
}

// Centroid asks the platform for the region centroid and falls back to the
// local computation when the call fails.
func (r *RegionResolver) Centroid(ctx context.Context, region domain.Region) domain.Geo {
	if r.platform == nil {
		return region.Centroid()
	}
	c, err := r.platform.Centroid(ctx, region)
	if err != nil {
		r.logger.Warn("platform centroid failed, using local centroid", "error", err)
		return region.Centroid()
	}
	return c
}
