package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// TemporalCompositor filters, masks and flattens a source over one window.
type TemporalCompositor struct {
	platform domain.RasterPlatform
	masker   *QualityMaskStage
}

func NewTemporalCompositor(platform domain.RasterPlatform, masker *QualityMaskStage) *TemporalCompositor {
	return &TemporalCompositor{platform: platform, masker: masker}
}

// Composite returns one representative image of src over window. An empty
// window yields a no-data image, not an error. A quality mosaic's reference
// band is a logical band resolved through src.Bands, and always carries the
// explicit "later image wins" tie-break.
func (c *TemporalCompositor) Composite(ctx context.Context, src Source, region domain.Region, window domain.TimeWindow) (domain.Image, error) {
	col, err := c.platform.FilterCollection(ctx, src.Collection, region, window)
	if err != nil {
		return nil, fmt.Errorf("filter %s %s: %w", src.Collection, window, err)
	}

	masked, err := c.masker.Apply(ctx, col, src)
	if err != nil {
		return nil, err
	}

	spec := src.Composite
	if spec.Stat == domain.StatQualityMosaic {
		id, ok := src.Bands.ID(domain.Band(spec.ReferenceBand))
		if !ok {
			return nil, fmt.Errorf("composite %s: reference band %s not in band set", src.Collection, spec.ReferenceBand)
		}
		spec.ReferenceBand = id
		spec.TieBreak = domain.TieLatest
	}
	img, err := c.platform.Composite(ctx, masked, spec)
	if err != nil {
		return nil, fmt.Errorf("composite %s %s: %w", src.Collection, window, err)
	}
	return img, nil
}
