package pipeline

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/observability"
)

// instrumentedPlatform records call durations and errors per operation.
type instrumentedPlatform struct {
	next    domain.RasterPlatform
	metrics *observability.Metrics
	clock   clockwork.Clock
}

func instrument(p domain.RasterPlatform, metrics *observability.Metrics, clock clockwork.Clock) domain.RasterPlatform {
	return &instrumentedPlatform{next: p, metrics: metrics, clock: clock}
}

func (p *instrumentedPlatform) track(op string) func(error) {
	start := p.clock.Now()
	return func(err error) {
		p.metrics.PlatformCallDuration.WithLabelValues(op).Observe(p.clock.Since(start).Seconds())
		if err != nil {
			p.metrics.PlatformErrors.WithLabelValues(op).Inc()
		}
	}
}

func (p *instrumentedPlatform) FilterCollection(ctx context.Context, collection string, region domain.Region, window domain.TimeWindow) (domain.Collection, error) {
	done := p.track("filter")
	c, err := p.next.FilterCollection(ctx, collection, region, window)
	done(err)
	return c, err
}

func (p *instrumentedPlatform) Mask(ctx context.Context, c domain.Collection, bands domain.BandSet, strategy domain.MaskStrategy) (domain.Collection, error) {
	done := p.track("mask")
	out, err := p.next.Mask(ctx, c, bands, strategy)
	done(err)
	return out, err
}

func (p *instrumentedPlatform) Composite(ctx context.Context, c domain.Collection, spec domain.CompositeSpec) (domain.Image, error) {
	done := p.track("composite")
	img, err := p.next.Composite(ctx, c, spec)
	done(err)
	return img, err
}

func (p *instrumentedPlatform) ApplyFormula(ctx context.Context, img domain.Image, f domain.IndexFormula) (domain.Image, error) {
	done := p.track("apply_formula")
	out, err := p.next.ApplyFormula(ctx, img, f)
	done(err)
	return out, err
}

func (p *instrumentedPlatform) Stack(ctx context.Context, layers map[string]domain.Image) (domain.Image, error) {
	done := p.track("stack")
	out, err := p.next.Stack(ctx, layers)
	done(err)
	return out, err
}

func (p *instrumentedPlatform) ReduceRegion(ctx context.Context, img domain.Image, region domain.Region, stat domain.ZonalStatistic) (float64, error) {
	done := p.track("reduce_region")
	v, err := p.next.ReduceRegion(ctx, img, region, stat)
	if errors.Is(err, domain.ErrNoData) {
		done(nil)
	} else {
		done(err)
	}
	return v, err
}

func (p *instrumentedPlatform) Centroid(ctx context.Context, region domain.Region) (domain.Geo, error) {
	done := p.track("centroid")
	g, err := p.next.Centroid(ctx, region)
	done(err)
	return g, err
}

func (p *instrumentedPlatform) Ping(ctx context.Context) error {
	return p.next.Ping(ctx)
}

func (p *instrumentedPlatform) Close() error {
	return p.next.Close()
}
