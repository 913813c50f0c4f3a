// Package pipeline turns an analysis request into a report: it resolves the
// region, runs one independent pipeline per variable and assembles the
// results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/observability"
)

var errMissingResult = errors.New("variable produced no result")

// DefaultTimeout is the analysis deadline when none is configured.
const DefaultTimeout = 60 * time.Second

// Publisher delivers finished reports downstream.
type Publisher interface {
	Publish(ctx context.Context, report domain.AnalysisReport) error
}

// Options configures an Analyzer. Zero values select defaults.
type Options struct {
	Variables   []Variable
	Geocoder    domain.Geocoder // nil disables place names
	Publisher   Publisher       // nil disables publishing
	Clock       clockwork.Clock
	Timeout     time.Duration
	Concurrency int // <= 0 runs every variable at once
	MaxSamples  float64
	EVI         domain.EVIConstants
	NewID       func() string
}

// Analyzer runs complete analyses against one raster platform session.
type Analyzer struct {
	platform     domain.RasterPlatform
	variables    []Variable
	geocoder     domain.Geocoder
	publisher    Publisher
	clock        clockwork.Clock
	evi          domain.EVIConstants
	newID        func() string
	resolver     *RegionResolver
	runner       *variableRunner
	orchestrator *Orchestrator
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewAnalyzer wires the stages around platform. Every platform call is
// timed through metrics.
func NewAnalyzer(platform domain.RasterPlatform, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Analyzer, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.EVI == (domain.EVIConstants{}) {
		opts.EVI = domain.DefaultEVIConstants
	}
	if opts.Variables == nil {
		opts.Variables = DefaultVariables(opts.EVI)
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if err := ValidateVariables(opts.Variables); err != nil {
		return nil, fmt.Errorf("validate variables: %w", err)
	}

	p := instrument(platform, metrics, opts.Clock)
	masker := NewQualityMaskStage(p)
	return &Analyzer{
		platform:  p,
		variables: opts.Variables,
		geocoder:  opts.Geocoder,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		evi:       opts.EVI,
		newID:     opts.NewID,
		resolver:  NewRegionResolver(p, logger),
		runner: &variableRunner{
			compositor: NewTemporalCompositor(p, masker),
			indexer:    NewIndexComputer(p),
			reducer:    NewZonalReducer(p, logger, metrics, opts.MaxSamples),
			logger:     logger,
		},
		orchestrator: NewOrchestrator(opts.Timeout, opts.Concurrency, logger),
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// Variables returns the configured variables in catalog order.
func (a *Analyzer) Variables() []Variable {
	return a.variables
}

// Analyze validates req and runs every selected variable. Validation
// failures return an error wrapping domain.ErrValidation before any
// platform call. Once validated, Analyze always returns a complete report:
// variables that fail or time out are reported as unavailable.
func (a *Analyzer) Analyze(ctx context.Context, req AnalysisRequest) (domain.AnalysisReport, error) {
	in, vars, err := req.parse(a.variables)
	if err != nil {
		a.metrics.AnalysesTotal.WithLabelValues("invalid").Inc()
		return domain.AnalysisReport{}, err
	}

	a.metrics.AnalysesInFlight.Inc()
	defer a.metrics.AnalysesInFlight.Dec()
	start := a.clock.Now()

	id := a.newID()
	logger := a.logger.With("analysis_id", id)
	logger.Info("analysis started",
		"bbox", in.Region.BBox(),
		"historic", in.Historic.String(),
		"current", in.Current.String(),
		"variables", len(vars),
	)

	centroid := a.resolver.Centroid(ctx, in.Region)
	info := domain.NewRegionInfo(in.Region, centroid)
	info = domain.EnrichWithPlaceName(ctx, info, a.geocoder, logger)

	tasks := make([]Task, len(vars))
	for i, v := range vars {
		tasks[i] = Task{
			Name: v.Name,
			Run: func(ctx context.Context) (VariableOutput, error) {
				return a.runner.Run(ctx, v, in)
			},
		}
	}
	results := a.orchestrator.Run(ctx, tasks)

	report := Assemble(ReportHeader{
		ID:            id,
		GeneratedAt:   a.clock.Now().UTC(),
		Region:        info,
		Historic:      in.Historic,
		Current:       in.Current,
		EVI:           a.evi,
		Visualization: req.Visualization,
	}, vars, results)

	for _, name := range report.VariableNames() {
		a.metrics.VariableOutcomes.WithLabelValues(name, string(report.Variables[name].Status)).Inc()
	}
	a.metrics.AnalysesTotal.WithLabelValues("complete").Inc()
	elapsed := a.clock.Since(start)
	a.metrics.AnalysisDuration.Observe(elapsed.Seconds())
	logger.Info("analysis complete", "duration", elapsed, "place", info.PlaceName)

	a.publish(ctx, logger, report)
	return report, nil
}

// publish is best-effort: a delivery failure never fails the analysis.
func (a *Analyzer) publish(ctx context.Context, logger *slog.Logger, report domain.AnalysisReport) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, report); err != nil {
		a.metrics.ReportsPublished.WithLabelValues("error").Inc()
		logger.Error("publish report", "error", err)
		return
	}
	a.metrics.ReportsPublished.WithLabelValues("success").Inc()
}

// CheckReadiness reports whether the platform session is usable.
func (a *Analyzer) CheckReadiness(ctx context.Context) error {
	if err := a.platform.Ping(ctx); err != nil {
		return fmt.Errorf("raster platform not ready: %w", err)
	}
	return nil
}

// Close releases the platform session.
func (a *Analyzer) Close() error {
	return a.platform.Close()
}
