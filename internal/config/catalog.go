package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/pipeline"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the declarative description of every analysed variable.
type Catalog struct {
	EVI       domain.EVIConstants `yaml:"evi"`
	LSTGain   float64             `yaml:"lst_gain"`
	Variables []VariableSpec      `yaml:"variables"`
}

// VariableSpec is one catalog entry: a source and the metrics computed
// from it.
type VariableSpec struct {
	Name        string               `yaml:"name"`
	Collection  string               `yaml:"collection"`
	Bands       domain.BandSet       `yaml:"bands"`
	Mask        domain.MaskStrategy  `yaml:"mask"`
	Composite   domain.CompositeSpec `yaml:"composite"`
	ScaleMeters float64              `yaml:"scale_m"`
	InputBands  []domain.Band        `yaml:"input_bands"`
	Metrics     []MetricSpec         `yaml:"metrics"`
}

// MetricSpec names a formula and how its values are labelled. Exactly one
// of Levels and Label is set.
type MetricSpec struct {
	Key         string                   `yaml:"key"`
	Formula     string                   `yaml:"formula"`
	CurrentOnly bool                     `yaml:"current_only"`
	Delta       pipeline.DeltaKind       `yaml:"delta"`
	Levels      *domain.LevelClassifier  `yaml:"levels"`
	Label       string                   `yaml:"label"`
	Change      *domain.ChangeClassifier `yaml:"change"`
	Score       *domain.ScoreRange       `yaml:"score"`
}

// LoadCatalog reads the catalog at path, or the built-in catalog when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(bytes.NewReader(defaultCatalog))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}

// ParseCatalog decodes a YAML catalog. Unknown fields are rejected.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if c.EVI == (domain.EVIConstants{}) {
		c.EVI = domain.DefaultEVIConstants
	}
	if c.LSTGain == 0 {
		c.LSTGain = domain.DefaultLSTGain
	}
	return &c, nil
}

// Build resolves formulas and classifiers into runnable variables and
// validates the result. Any error here is a configuration error.
func (c *Catalog) Build() ([]pipeline.Variable, error) {
	formulas := domain.Formulas(c.EVI, c.LSTGain)

	vars := make([]pipeline.Variable, 0, len(c.Variables))
	for _, vs := range c.Variables {
		v, err := vs.build(formulas)
		if err != nil {
			return nil, fmt.Errorf("catalog variable %q: %w", vs.Name, err)
		}
		vars = append(vars, v)
	}
	if err := pipeline.ValidateVariables(vars); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return vars, nil
}

func (vs VariableSpec) build(formulas map[string]domain.IndexFormula) (pipeline.Variable, error) {
	for b := range vs.Bands {
		if !b.Valid() {
			return pipeline.Variable{}, fmt.Errorf("unknown band %q", b)
		}
	}
	if err := vs.Composite.Validate(); err != nil {
		return pipeline.Variable{}, err
	}
	if vs.ScaleMeters <= 0 {
		return pipeline.Variable{}, errors.New("scale_m must be positive")
	}

	v := pipeline.Variable{
		Name: vs.Name,
		Source: pipeline.Source{
			Collection:  vs.Collection,
			Bands:       vs.Bands,
			Mask:        vs.Mask,
			Composite:   vs.Composite,
			ScaleMeters: vs.ScaleMeters,
		},
		InputBands: vs.InputBands,
	}
	for _, ms := range vs.Metrics {
		m, err := ms.build(formulas)
		if err != nil {
			return pipeline.Variable{}, fmt.Errorf("metric %q: %w", ms.Key, err)
		}
		v.Metrics = append(v.Metrics, m)
	}
	return v, nil
}

func (ms MetricSpec) build(formulas map[string]domain.IndexFormula) (pipeline.Metric, error) {
	f, ok := formulas[ms.Formula]
	if !ok {
		return pipeline.Metric{}, fmt.Errorf("unknown formula %q", ms.Formula)
	}
	m := pipeline.Metric{
		Key:         ms.Key,
		Formula:     f,
		CurrentOnly: ms.CurrentOnly,
		Delta:       ms.Delta,
		Score:       ms.Score,
	}

	switch {
	case ms.Levels != nil && ms.Label != "":
		return pipeline.Metric{}, errors.New("set levels or label, not both")
	case ms.Levels != nil:
		if err := ms.Levels.Validate(); err != nil {
			return pipeline.Metric{}, err
		}
		m.Level = *ms.Levels
	case ms.Label != "":
		m.Level = domain.FixedLabel{Label: ms.Label}
	default:
		return pipeline.Metric{}, errors.New("levels or label is required")
	}

	switch ms.Delta {
	case pipeline.DeltaNone:
		if ms.Change != nil {
			return pipeline.Metric{}, errors.New("change thresholds without a delta")
		}
	case pipeline.DeltaAbsolute, pipeline.DeltaRelative:
		if ms.CurrentOnly {
			return pipeline.Metric{}, errors.New("current-only metric cannot have a delta")
		}
		if ms.Change == nil {
			return pipeline.Metric{}, errors.New("delta needs change thresholds")
		}
		if err := ms.Change.Validate(); err != nil {
			return pipeline.Metric{}, err
		}
		m.Change = *ms.Change
	default:
		return pipeline.Metric{}, fmt.Errorf("unknown delta %q", ms.Delta)
	}

	if ms.Score != nil && ms.Score.Max <= ms.Score.Min {
		return pipeline.Metric{}, fmt.Errorf("score range needs min < max, got %g..%g", ms.Score.Min, ms.Score.Max)
	}
	return m, nil
}
