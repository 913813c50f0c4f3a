package domain

import (
	"errors"
	"fmt"
)

// MaskKind selects how quality bits are interpreted.
type MaskKind string

const (
	MaskNone      MaskKind = "none"
	MaskBitmask   MaskKind = "bitmask"
	MaskClassCode MaskKind = "class_code"
)

// Default quality settings for Sentinel-2 L2A.
var (
	// DefaultCloudBits are the QA60 opaque cloud (10) and cirrus (11) bits.
	DefaultCloudBits = []uint{10, 11}

	// DefaultAllowedClasses are the SCL classes kept by class-code masking:
	// vegetation, bare soil, water, snow.
	DefaultAllowedClasses = []int{4, 5, 6, 11}
)

// MaskStrategy describes a per-pixel quality filter and an optional rescale
// of the remaining bands. Strategies are data so platforms can translate
// them into their own operations.
type MaskStrategy struct {
	Kind           MaskKind `json:"kind" yaml:"kind"`
	Bits           []uint   `json:"bits,omitempty" yaml:"bits,omitempty"`
	AllowedClasses []int    `json:"allowed_classes,omitempty" yaml:"allowed_classes,omitempty"`
	Scale          float64  `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// Validate checks that the strategy can be applied.
func (m MaskStrategy) Validate() error {
	switch m.Kind {
	case MaskNone, "":
	case MaskBitmask:
		if len(m.Bits) == 0 {
			return errors.New("bitmask strategy needs at least one bit")
		}
		for _, b := range m.Bits {
			if b > 62 {
				return fmt.Errorf("bit %d out of range", b)
			}
		}
	case MaskClassCode:
		if len(m.AllowedClasses) == 0 {
			return errors.New("class-code strategy needs at least one allowed class")
		}
	default:
		return fmt.Errorf("unknown mask kind %q", m.Kind)
	}
	if m.Scale < 0 {
		return fmt.Errorf("negative rescale factor %g", m.Scale)
	}
	return nil
}

// NeedsQualityBand reports whether the strategy reads a quality band.
func (m MaskStrategy) NeedsQualityBand() bool {
	return m.Kind == MaskBitmask || m.Kind == MaskClassCode
}

// Keep reports whether a pixel with quality value q survives the mask.
func (m MaskStrategy) Keep(q float64) bool {
	switch m.Kind {
	case MaskBitmask:
		bits := int64(q)
		for _, b := range m.Bits {
			if bits&(1<<b) != 0 {
				return false
			}
		}
		return true
	case MaskClassCode:
		class := int(q)
		if float64(class) != q {
			return false
		}
		for _, c := range m.AllowedClasses {
			if class == c {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Rescale applies the reflectance factor, if any.
func (m MaskStrategy) Rescale(v float64) float64 {
	if m.Scale == 0 {
		return v
	}
	return v * m.Scale
}
