package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/observability"
)

// maxCoarsening bounds how many times the scale is doubled.
const maxCoarsening = 32

// ZonalReducer reduces images to regional means. It never returns an error:
// platform failures, non-finite results and empty regions all become
// domain.Unavailable, and are logged and counted.
type ZonalReducer struct {
	platform   domain.RasterPlatform
	logger     *slog.Logger
	metrics    *observability.Metrics
	maxSamples float64
}

// NewZonalReducer creates a ZonalReducer. maxSamples <= 0 uses
// domain.DefaultMaxSamples.
func NewZonalReducer(platform domain.RasterPlatform, logger *slog.Logger, metrics *observability.Metrics, maxSamples float64) *ZonalReducer {
	if maxSamples <= 0 {
		maxSamples = domain.DefaultMaxSamples
	}
	return &ZonalReducer{platform: platform, logger: logger, metrics: metrics, maxSamples: maxSamples}
}

// Scale returns the scale a region is reduced at: the requested scale,
// doubled until the estimated sample count fits under the cap.
func (z *ZonalReducer) Scale(region domain.Region, scaleMeters float64) float64 {
	if scaleMeters <= 0 {
		return scaleMeters
	}
	scale := scaleMeters
	for i := 0; i < maxCoarsening && region.EstimatedSamples(scale) > z.maxSamples; i++ {
		scale *= 2
	}
	return scale
}

// Reduce returns the mean of band over region, or domain.Unavailable.
// A nil image is unavailable.
func (z *ZonalReducer) Reduce(ctx context.Context, img domain.Image, band string, region domain.Region, scaleMeters float64) domain.Value {
	if img == nil {
		return domain.Unavailable
	}

	scale := z.Scale(region, scaleMeters)
	if scale != scaleMeters {
		z.metrics.ZonalCoarsened.Inc()
		z.logger.Debug("coarsened zonal scale",
			"band", band,
			"requested_scale_m", scaleMeters,
			"scale_m", scale,
		)
	}

	stat := domain.ZonalStatistic{
		Band:        band,
		Reducer:     domain.ReducerMean,
		ScaleMeters: scale,
		MaxSamples:  z.maxSamples,
	}
	v, err := z.platform.ReduceRegion(ctx, img, region, stat)
	switch {
	case errors.Is(err, domain.ErrNoData):
		z.metrics.ZonalReductions.WithLabelValues("no_data").Inc()
		z.logger.Debug("no valid pixels in region", "band", band, "scale_m", scale)
		return domain.Unavailable
	case err != nil:
		z.metrics.ZonalReductions.WithLabelValues("error").Inc()
		z.logger.Warn("zonal reduction failed", "band", band, "scale_m", scale, "error", err)
		return domain.Unavailable
	case math.IsNaN(v) || math.IsInf(v, 0):
		z.metrics.ZonalReductions.WithLabelValues("no_data").Inc()
		z.logger.Warn("zonal reduction returned non-finite value", "band", band, "value", v)
		return domain.Unavailable
	}

	z.metrics.ZonalReductions.WithLabelValues("ok").Inc()
	return domain.Measured(v)
}
