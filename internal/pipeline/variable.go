package pipeline

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// DeltaKind selects how the change between windows is computed.
type DeltaKind string

const (
	DeltaNone     DeltaKind = ""
	DeltaAbsolute DeltaKind = "absolute" // current − historic
	DeltaRelative DeltaKind = "relative" // (current − historic) / (historic + ε)
)

func (k DeltaKind) formula() (domain.IndexFormula, bool) {
	switch k {
	case DeltaAbsolute:
		return domain.Delta(), true
	case DeltaRelative:
		return domain.RelativeDelta(), true
	default:
		return domain.IndexFormula{}, false
	}
}

// Source is one platform collection with its band mapping and how it is
// masked and composited.
type Source struct {
	Collection  string
	Bands       domain.BandSet
	Mask        domain.MaskStrategy
	Composite   domain.CompositeSpec
	ScaleMeters float64
}

// Metric is one reported value derived from a variable's composites.
type Metric struct {
	Key         string
	Formula     domain.IndexFormula // over logical band names
	CurrentOnly bool
	Delta       DeltaKind
	Level       domain.Classifier
	Change      domain.Classifier
	Score       *domain.ScoreRange
}

func (m Metric) hasDelta() bool { return m.Delta != DeltaNone && !m.CurrentOnly }

// Variable is one independent pipeline: a source composited once per window
// and any number of metrics computed from those composites.
type Variable struct {
	Name       string
	Source     Source
	Metrics    []Metric
	InputBands []domain.Band // band means echoed in the report
}

func (v Variable) needsHistoric() bool {
	for _, m := range v.Metrics {
		if !m.CurrentOnly {
			return true
		}
	}
	return false
}

// Validate checks that every metric can be evaluated against the source.
func (v Variable) Validate() error {
	if v.Name == "" {
		return errors.New("variable has no name")
	}
	if v.Source.Collection == "" {
		return fmt.Errorf("variable %s: source has no collection", v.Name)
	}
	if err := v.Source.Mask.Validate(); err != nil {
		return fmt.Errorf("variable %s: %w", v.Name, err)
	}
	if v.Source.Mask.NeedsQualityBand() {
		if err := v.Source.Bands.Require(domain.BandQuality); err != nil {
			return fmt.Errorf("variable %s: %s mask: %w", v.Name, v.Source.Mask.Kind, err)
		}
	}
	if err := v.Source.Composite.Validate(); err != nil {
		return fmt.Errorf("variable %s: %w", v.Name, err)
	}
	if v.Source.Composite.Stat == domain.StatQualityMosaic {
		if err := v.Source.Bands.Require(domain.Band(v.Source.Composite.ReferenceBand)); err != nil {
			return fmt.Errorf("variable %s: quality mosaic reference: %w", v.Name, err)
		}
	}
	if len(v.Metrics) == 0 {
		return fmt.Errorf("variable %s has no metrics", v.Name)
	}
	for _, m := range v.Metrics {
		if m.Key == "" {
			return fmt.Errorf("variable %s: metric without key", v.Name)
		}
		if m.Level == nil {
			return fmt.Errorf("variable %s: metric %s has no classifier", v.Name, m.Key)
		}
		if m.Delta != DeltaNone && m.Change == nil {
			return fmt.Errorf("variable %s: metric %s has a delta but no change classifier", v.Name, m.Key)
		}
		if err := m.Formula.Expr.Validate(); err != nil {
			return fmt.Errorf("variable %s: metric %s: %w", v.Name, m.Key, err)
		}
		if _, err := m.Formula.Bind(v.Source.Bands); err != nil {
			return fmt.Errorf("variable %s: %w", v.Name, err)
		}
	}
	for _, b := range v.InputBands {
		if _, ok := v.Source.Bands.ID(b); !ok {
			return fmt.Errorf("variable %s: input band %s not in band set", v.Name, b)
		}
	}
	return nil
}

// ValidateVariables checks each variable and that metric keys are unique.
func ValidateVariables(vars []Variable) error {
	if len(vars) == 0 {
		return errors.New("no variables configured")
	}
	names := map[string]bool{}
	keys := map[string]bool{}
	for _, v := range vars {
		if err := v.Validate(); err != nil {
			return err
		}
		if names[v.Name] {
			return fmt.Errorf("duplicate variable %s", v.Name)
		}
		names[v.Name] = true
		for _, m := range v.Metrics {
			if keys[m.Key] {
				return fmt.Errorf("duplicate metric key %s", m.Key)
			}
			keys[m.Key] = true
		}
	}
	return nil
}

// Default collection ids.
const (
	CollectionSentinel2 = "COPERNICUS/S2_SR_HARMONIZED"
	CollectionMODISLST  = "MODIS/061/MOD11A2"
	CollectionGPM       = "NASA/GPM_L3/IMERG_V06"
)

// DefaultVariables are vegetation (Sentinel-2), land-surface temperature
// (MODIS) and precipitation (GPM).
func DefaultVariables(evi domain.EVIConstants) []Variable {
	ndviScore := domain.NDVIScoreRange
	lstScore := domain.TemperatureScoreRange
	precipScore := domain.PrecipitationScoreRange

	return []Variable{
		{
			Name: "vegetation",
			Source: Source{
				Collection: CollectionSentinel2,
				Bands: domain.BandSet{
					domain.BandNIR:     "B8",
					domain.BandRed:     "B4",
					domain.BandGreen:   "B3",
					domain.BandBlue:    "B2",
					domain.BandQuality: "SCL",
				},
				Mask: domain.MaskStrategy{
					Kind:           domain.MaskClassCode,
					AllowedClasses: domain.DefaultAllowedClasses,
					Scale:          1e-4,
				},
				Composite:   domain.CompositeSpec{Stat: domain.StatMedian},
				ScaleMeters: 100,
			},
			Metrics: []Metric{
				{
					Key:     domain.VarVegetation,
					Formula: domain.NDVI(),
					Delta:   DeltaAbsolute,
					Level:   domain.NDVILevels,
					Change:  domain.VegetationChange,
					Score:   &ndviScore,
				},
				{
					Key:         domain.VarFloral,
					Formula:     domain.FloralNDSI(),
					CurrentOnly: true,
					Level:       domain.FloralLevels,
				},
				{
					Key:         domain.VarEVI,
					Formula:     domain.EVI(evi),
					CurrentOnly: true,
					Level:       domain.EVILabel,
				},
			},
			InputBands: []domain.Band{domain.BandNIR, domain.BandRed, domain.BandGreen, domain.BandBlue},
		},
		{
			Name: "temperature",
			Source: Source{
				Collection:  CollectionMODISLST,
				Bands:       domain.BandSet{domain.BandThermal: "LST_Day_1km"},
				Mask:        domain.MaskStrategy{Kind: domain.MaskNone},
				Composite:   domain.CompositeSpec{Stat: domain.StatMean},
				ScaleMeters: 1000,
			},
			Metrics: []Metric{
				{
					Key:     domain.VarTemperature,
					Formula: domain.LSTCelsius(domain.DefaultLSTGain),
					Delta:   DeltaAbsolute,
					Level:   domain.TemperatureLevels,
					Change:  domain.TemperatureChange,
					Score:   &lstScore,
				},
			},
		},
		{
			Name: "precipitation",
			Source: Source{
				Collection:  CollectionGPM,
				Bands:       domain.BandSet{domain.BandPrecipitation: "precipitationCal"},
				Mask:        domain.MaskStrategy{Kind: domain.MaskNone},
				Composite:   domain.CompositeSpec{Stat: domain.StatSum},
				ScaleMeters: 1000,
			},
			Metrics: []Metric{
				{
					Key:     domain.VarPrecipitation,
					Formula: domain.PrecipitationTotal(),
					Delta:   DeltaRelative,
					Level:   domain.PrecipitationLevels,
					Change:  domain.PrecipitationChange,
					Score:   &precipScore,
				},
			},
		},
	}
}

// SelectVariables returns the variables named in names, in catalog order.
// A metric key selects the variable that produces it. An empty list
// selects everything.
func SelectVariables(all []Variable, names []string) ([]Variable, error) {
	if len(names) == 0 {
		return all, nil
	}
	want := map[string]bool{}
	for _, n := range names {
		found := false
		for _, v := range all {
			if v.Name == n || v.producesKey(n) {
				want[v.Name] = true
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown variable %q: %w", n, domain.ErrValidation)
		}
	}
	out := make([]Variable, 0, len(want))
	for _, v := range all {
		if want[v.Name] {
			out = append(out, v)
		}
	}
	return out, nil
}

func (v Variable) producesKey(key string) bool {
	for _, m := range v.Metrics {
		if m.Key == key {
			return true
		}
	}
	return false
}
