package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/observability"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/pipeline"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/raster"
)

var testBBox = [4]float64{-74.002, 4.600, -74.000, 4.602}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return t
}

func uniform(v float64) []float64 { return []float64{v, v, v, v} }

func addImage(t *testing.T, e *raster.Engine, collection, id, acquired string, bands map[string][]float64) {
	t.Helper()
	g, err := raster.NewGrid(testBBox, 2, 2)
	require.NoError(t, err)
	img, err := raster.NewImage(id, day(acquired), g, bands)
	require.NoError(t, err)
	e.Add(collection, img)
}

// s2 builds raw Sentinel-2 bands from reflectances; every pixel is clear.
func s2(nir, red, green, blue float64) map[string][]float64 {
	return map[string][]float64{
		"B8":  uniform(nir * 1e4),
		"B4":  uniform(red * 1e4),
		"B3":  uniform(green * 1e4),
		"B2":  uniform(blue * 1e4),
		"SCL": uniform(4),
	}
}

// newTestEngine holds one historic (2020) and one current (2024) scene for
// every default collection.
func newTestEngine(t *testing.T) *raster.Engine {
	t.Helper()
	e := raster.NewEngine()
	addImage(t, e, pipeline.CollectionSentinel2, "s2-hist", "2020-06-10", s2(0.5, 0.2, 0.1, 0.05))
	addImage(t, e, pipeline.CollectionSentinel2, "s2-cur", "2024-06-10", s2(0.6, 0.15, 0.1, 0.05))
	addImage(t, e, pipeline.CollectionMODISLST, "lst-hist", "2020-06-10", map[string][]float64{"LST_Day_1km": uniform(14950)})
	addImage(t, e, pipeline.CollectionMODISLST, "lst-cur", "2024-06-10", map[string][]float64{"LST_Day_1km": uniform(15000)})
	addImage(t, e, pipeline.CollectionGPM, "gpm-hist", "2020-06-10", map[string][]float64{"precipitationCal": uniform(0)})
	addImage(t, e, pipeline.CollectionGPM, "gpm-cur", "2024-06-10", map[string][]float64{"precipitationCal": uniform(5)})
	return e
}

func testRequest() pipeline.AnalysisRequest {
	return pipeline.AnalysisRequest{
		Coords:        testBBox[:],
		HistoricStart: "2020-01-01",
		HistoricEnd:   "2021-01-01",
		CurrentStart:  "2024-01-01",
		CurrentEnd:    "2025-01-01",
	}
}

func newTestAnalyzer(t *testing.T, p domain.RasterPlatform, opts pipeline.Options) *pipeline.Analyzer {
	t.Helper()
	if opts.NewID == nil {
		opts.NewID = func() string { return "test-id" }
	}
	a, err := pipeline.NewAnalyzer(p, opts, discardLogger(), newTestMetrics())
	require.NoError(t, err)
	return a
}

// --- mocks ---

var errInjected = errors.New("injected platform failure")

// faultyPlatform fails every filter on one collection.
type faultyPlatform struct {
	domain.RasterPlatform
	failCollection string
}

func (p *faultyPlatform) FilterCollection(ctx context.Context, collection string, region domain.Region, window domain.TimeWindow) (domain.Collection, error) {
	if collection == p.failCollection {
		return nil, errInjected
	}
	return p.RasterPlatform.FilterCollection(ctx, collection, region, window)
}

// panickyPlatform panics while compositing one collection.
type panickyPlatform struct {
	domain.RasterPlatform
	collection string
}

func (p *panickyPlatform) Composite(ctx context.Context, c domain.Collection, spec domain.CompositeSpec) (domain.Image, error) {
	if c.Source() == p.collection {
		panic("composite exploded")
	}
	return p.RasterPlatform.Composite(ctx, c, spec)
}

// stallingPlatform blocks filters on one collection until released,
// ignoring its context.
type stallingPlatform struct {
	domain.RasterPlatform
	collection string
	release    chan struct{}
}

func (p *stallingPlatform) FilterCollection(ctx context.Context, collection string, region domain.Region, window domain.TimeWindow) (domain.Collection, error) {
	if collection == p.collection {
		<-p.release
	}
	return p.RasterPlatform.FilterCollection(ctx, collection, region, window)
}

// reduceErrPlatform fails every reduction.
type reduceErrPlatform struct {
	domain.RasterPlatform
}

func (p *reduceErrPlatform) ReduceRegion(context.Context, domain.Image, domain.Region, domain.ZonalStatistic) (float64, error) {
	return 0, errInjected
}

type mockPublisher struct {
	mu      sync.Mutex
	err     error
	reports []domain.AnalysisReport
}

func (m *mockPublisher) Publish(_ context.Context, r domain.AnalysisReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

type mockGeocoder struct {
	result domain.GeocodingResult
	err    error
}

func (m *mockGeocoder) ReverseGeocode(context.Context, float64, float64) (domain.GeocodingResult, error) {
	return m.result, m.err
}
