package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// IndexComputer evaluates formulas on composites. It is table-driven: the
// formula is data and adding an index never changes this code.
type IndexComputer struct {
	platform domain.RasterPlatform
}

func NewIndexComputer(platform domain.RasterPlatform) *IndexComputer {
	return &IndexComputer{platform: platform}
}

// Compute binds f to the source bands and evaluates it on img. The result
// has a single band named f.Name.
func (c *IndexComputer) Compute(ctx context.Context, img domain.Image, f domain.IndexFormula, bands domain.BandSet) (domain.Image, error) {
	bound, err := f.Bind(bands)
	if err != nil {
		return nil, err
	}
	out, err := c.platform.ApplyFormula(ctx, img, bound)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", f.Name, err)
	}
	return out, nil
}

// Change stacks two index images and evaluates the delta formula for kind.
// The result band is named name.
func (c *IndexComputer) Change(ctx context.Context, current, historic domain.Image, kind DeltaKind, name string) (domain.Image, error) {
	f, ok := kind.formula()
	if !ok {
		return nil, fmt.Errorf("compute change %s: no delta configured", name)
	}
	stack, err := c.platform.Stack(ctx, map[string]domain.Image{
		domain.StackCurrent:  current,
		domain.StackHistoric: historic,
	})
	if err != nil {
		return nil, fmt.Errorf("stack %s: %w", name, err)
	}
	f.Name = name
	out, err := c.platform.ApplyFormula(ctx, stack, f)
	if err != nil {
		return nil, fmt.Errorf("compute change %s: %w", name, err)
	}
	return out, nil
}
