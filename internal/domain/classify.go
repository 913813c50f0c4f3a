package domain

import (
	"errors"
	"fmt"
)

// LabelUnavailable is the label for any value that could not be computed.
const LabelUnavailable = "could not be computed"

// Classifier maps a scalar to a human-readable category. Implementations are
// total: unavailable input yields LabelUnavailable.
type Classifier interface {
	Classify(v Value) string
}

// Bucket is one row of a level table: values below Below get Label.
type Bucket struct {
	Below float64 `json:"below" yaml:"below"`
	Label string  `json:"label" yaml:"label"`
}

// LevelClassifier tests buckets in ascending order with value < Below. A value
// equal to a threshold therefore falls into the next (higher) bucket; values
// at or above the last threshold get Top.
type LevelClassifier struct {
	Buckets []Bucket `json:"buckets" yaml:"buckets"`
	Top     string   `json:"top" yaml:"top"`
}

func (c LevelClassifier) Classify(v Value) string {
	x, ok := v.Float()
	if !ok {
		return LabelUnavailable
	}
	for _, b := range c.Buckets {
		if x < b.Below {
			return b.Label
		}
	}
	return c.Top
}

// Validate checks that thresholds are strictly ascending.
func (c LevelClassifier) Validate() error {
	if c.Top == "" {
		return errors.New("level table needs a top label")
	}
	for i, b := range c.Buckets {
		if b.Label == "" {
			return fmt.Errorf("bucket %d has no label", i)
		}
		if i > 0 && b.Below <= c.Buckets[i-1].Below {
			return fmt.Errorf("bucket thresholds must ascend: %g after %g", b.Below, c.Buckets[i-1].Below)
		}
	}
	return nil
}

// ChangeClassifier is a symmetric two-sided threshold pair applied to a
// delta. Subject names the quantity in labels, e.g. "vegetation".
type ChangeClassifier struct {
	Subject string  `json:"subject" yaml:"subject"`
	High    float64 `json:"high" yaml:"high"`
	Low     float64 `json:"low" yaml:"low"`
}

func (c ChangeClassifier) Classify(v Value) string {
	x, ok := v.Float()
	if !ok {
		return LabelUnavailable
	}
	switch {
	case x > c.High:
		return c.label("significant increase")
	case x > c.Low:
		return c.label("slight increase")
	case x < -c.High:
		return c.label("significant decrease")
	case x < -c.Low:
		return c.label("slight decrease")
	default:
		return "negligible change"
	}
}

func (c ChangeClassifier) label(kind string) string {
	if c.Subject == "" {
		return kind
	}
	return kind + " in " + c.Subject
}

// Validate checks 0 ≤ Low ≤ High.
func (c ChangeClassifier) Validate() error {
	if c.Low < 0 || c.High < c.Low {
		return fmt.Errorf("change thresholds need 0 <= low <= high, got low=%g high=%g", c.Low, c.High)
	}
	return nil
}

// FixedLabel returns Label for any available value.
type FixedLabel struct {
	Label string `json:"label" yaml:"label"`
}

func (c FixedLabel) Classify(v Value) string {
	if !v.Available() {
		return LabelUnavailable
	}
	return c.Label
}

// Default classification tables.
var (
	NDVILevels = LevelClassifier{
		Buckets: []Bucket{
			{Below: 0.1, Label: "bare soil, rock or water"},
			{Below: 0.3, Label: "sparse or stressed vegetation"},
			{Below: 0.6, Label: "moderate, healthy vegetation"},
		},
		Top: "dense, very healthy vegetation",
	}

	FloralLevels = LevelClassifier{
		Buckets: []Bucket{
			{Below: -0.1, Label: "green foliage dominant"},
			{Below: 0.1, Label: "mixed foliage, possible bloom"},
		},
		Top: "likely visible bloom",
	}

	TemperatureLevels = LevelClassifier{
		Buckets: []Bucket{
			{Below: 10, Label: "cold"},
			{Below: 25, Label: "mild"},
			{Below: 35, Label: "warm"},
		},
		Top: "hot",
	}

	PrecipitationLevels = LevelClassifier{
		Buckets: []Bucket{
			{Below: 1, Label: "negligible"},
			{Below: 10, Label: "low"},
			{Below: 50, Label: "moderate"},
		},
		Top: "high",
	}

	EVILabel = FixedLabel{Label: "enhanced vegetation index, corrected for soil and atmosphere"}

	VegetationChange    = ChangeClassifier{Subject: "vegetation", High: 0.1, Low: 0.02}
	TemperatureChange   = ChangeClassifier{Subject: "temperature", High: 2, Low: 0.5}
	PrecipitationChange = ChangeClassifier{Subject: "precipitation", High: 0.5, Low: 0.1}
)
