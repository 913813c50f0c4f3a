package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// QualityMaskStage removes cloud-contaminated pixels from every image of a
// collection and rescales reflectance.
type QualityMaskStage struct {
	platform domain.RasterPlatform
}

func NewQualityMaskStage(platform domain.RasterPlatform) *QualityMaskStage {
	return &QualityMaskStage{platform: platform}
}

// Apply masks c with the source's strategy. Band selection always happens,
// even for sources without a quality band.
func (s *QualityMaskStage) Apply(ctx context.Context, c domain.Collection, src Source) (domain.Collection, error) {
	if src.Mask.NeedsQualityBand() {
		if err := src.Bands.Require(domain.BandQuality); err != nil {
			return nil, fmt.Errorf("mask %s: %w", src.Collection, err)
		}
	}
	masked, err := s.platform.Mask(ctx, c, src.Bands, src.Mask)
	if err != nil {
		return nil, fmt.Errorf("mask %s: %w", src.Collection, err)
	}
	return masked, nil
}
