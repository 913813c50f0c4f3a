package domain

// ScoreRange maps a variable onto 0..1 for side-by-side comparison of
// indicators with different units.
type ScoreRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Default score ranges.
var (
	NDVIScoreRange          = ScoreRange{Min: -0.2, Max: 1}
	TemperatureScoreRange   = ScoreRange{Min: 0, Max: 50}
	PrecipitationScoreRange = ScoreRange{Min: 0, Max: 500}
)

// Normalize clips (v − Min)/(Max − Min) to [0, 1]. Unavailable stays
// unavailable.
func (r ScoreRange) Normalize(v Value) Value {
	x, ok := v.Float()
	if !ok || r.Max <= r.Min {
		return Unavailable
	}
	s := (x - r.Min) / (r.Max - r.Min)
	switch {
	case s < 0:
		s = 0
	case s > 1:
		s = 1
	}
	return Measured(s)
}
