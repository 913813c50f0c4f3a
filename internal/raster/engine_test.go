package raster

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

var testBBox = [4]float64{-74.002, 4.600, -74.000, 4.602}

func testGrid(t *testing.T) Grid {
	t.Helper()
	g, err := NewGrid(testBBox, 2, 2)
	require.NoError(t, err)
	return g
}

func testRegion(t *testing.T) domain.Region {
	t.Helper()
	r, err := domain.NewRegion(testBBox[0], testBBox[1], testBBox[2], testBBox[3])
	require.NoError(t, err)
	return r
}

func testWindow(t *testing.T, start, end string) domain.TimeWindow {
	t.Helper()
	w, err := domain.ParseTimeWindow("", start, end)
	require.NoError(t, err)
	return w
}

func day(s string) time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return t
}

func mustImage(t *testing.T, id, acquired string, bands map[string][]float64) *Image {
	t.Helper()
	img, err := NewImage(id, day(acquired), testGrid(t), bands)
	require.NoError(t, err)
	return img
}

func uniform(v float64) []float64 { return []float64{v, v, v, v} }

func composite(t *testing.T, e *Engine, images []*Image, spec domain.CompositeSpec) *Image {
	t.Helper()
	ctx := context.Background()
	e.Add("c", images...)
	col, err := e.FilterCollection(ctx, "c", testRegion(t), testWindow(t, "2024-01-01", "2025-01-01"))
	require.NoError(t, err)
	out, err := e.Composite(ctx, col, spec)
	require.NoError(t, err)
	return out.(*Image)
}

func TestNewImage_Validation(t *testing.T) {
	_, err := NewImage("a", day("2024-01-01"), testGrid(t), map[string][]float64{"B": {1, 2}})
	require.Error(t, err)

	_, err = NewImage("a", day("2024-01-01"), testGrid(t), nil)
	require.Error(t, err)

	_, err = NewGrid([4]float64{1, 1, 0, 2}, 2, 2)
	require.Error(t, err)
}

func TestFilterCollection(t *testing.T) {
	e := NewEngine()
	e.Add("s2",
		mustImage(t, "b", "2024-03-01", map[string][]float64{"B": uniform(1)}),
		mustImage(t, "a", "2024-03-01", map[string][]float64{"B": uniform(1)}),
		mustImage(t, "early", "2024-01-15", map[string][]float64{"B": uniform(1)}),
		mustImage(t, "outside", "2024-06-01", map[string][]float64{"B": uniform(1)}),
	)

	got, err := e.FilterCollection(context.Background(), "s2", testRegion(t), testWindow(t, "2024-01-01", "2024-06-01"))
	require.NoError(t, err)

	col := got.(*Collection)
	ids := []string{}
	for _, img := range col.Images() {
		ids = append(ids, img.ID())
	}
	assert.Equal(t, []string{"early", "a", "b"}, ids, "chronological then by id, end exclusive")
	assert.Equal(t, "s2", col.Source())

	far, err := domain.NewRegion(10, 10, 11, 11)
	require.NoError(t, err)
	got, err = e.FilterCollection(context.Background(), "s2", far, testWindow(t, "2024-01-01", "2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, 0, got.(*Collection).Len())
}

func TestMask_ClassCodeAndRescale(t *testing.T) {
	e := NewEngine()
	e.Add("s2", mustImage(t, "a", "2024-03-01", map[string][]float64{
		"B8":  {4000, 5000, 6000, 7000},
		"B4":  {1000, 1000, 1000, 1000},
		"SCL": {4, 9, 5, 3},
		"B1":  uniform(1),
	}))
	ctx := context.Background()
	col, err := e.FilterCollection(ctx, "s2", testRegion(t), testWindow(t, "2024-01-01", "2024-06-01"))
	require.NoError(t, err)

	bands := domain.BandSet{domain.BandNIR: "B8", domain.BandRed: "B4", domain.BandQuality: "SCL"}
	strategy := domain.MaskStrategy{Kind: domain.MaskClassCode, AllowedClasses: domain.DefaultAllowedClasses, Scale: 1e-4}
	masked, err := e.Mask(ctx, col, bands, strategy)
	require.NoError(t, err)

	img := masked.(*Collection).Images()[0]
	assert.Equal(t, []string{"B4", "B8", "SCL"}, img.BandNames(), "unselected bands dropped")

	v, ok := img.At("B8", 0)
	require.True(t, ok)
	assert.InDelta(t, 0.4, v, 1e-12)
	q, ok := img.At("SCL", 0)
	require.True(t, ok)
	assert.Equal(t, 4.0, q, "quality band not rescaled")

	_, ok = img.At("B8", 1)
	assert.False(t, ok, "cloud shadow class masked")
	_, ok = img.At("B8", 3)
	assert.False(t, ok)
}

func TestMask_Bitmask(t *testing.T) {
	e := NewEngine()
	e.Add("s2", mustImage(t, "a", "2024-03-01", map[string][]float64{
		"B8":   uniform(1),
		"QA60": {0, 1 << 10, 1 << 11, 1 << 5},
	}))
	ctx := context.Background()
	col, err := e.FilterCollection(ctx, "s2", testRegion(t), testWindow(t, "2024-01-01", "2024-06-01"))
	require.NoError(t, err)

	masked, err := e.Mask(ctx, col, domain.BandSet{domain.BandNIR: "B8", domain.BandQuality: "QA60"},
		domain.MaskStrategy{Kind: domain.MaskBitmask, Bits: domain.DefaultCloudBits})
	require.NoError(t, err)

	img := masked.(*Collection).Images()[0]
	var kept []bool
	for i := 0; i < 4; i++ {
		_, ok := img.At("B8", i)
		kept = append(kept, ok)
	}
	assert.Equal(t, []bool{true, false, false, true}, kept)
}

func TestMask_Errors(t *testing.T) {
	e := NewEngine()
	e.Add("s2", mustImage(t, "a", "2024-03-01", map[string][]float64{"B8": uniform(1)}))
	ctx := context.Background()
	col, err := e.FilterCollection(ctx, "s2", testRegion(t), testWindow(t, "2024-01-01", "2024-06-01"))
	require.NoError(t, err)

	_, err = e.Mask(ctx, col, domain.BandSet{domain.BandNIR: "B8"}, domain.MaskStrategy{Kind: domain.MaskBitmask, Bits: []uint{10}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality band")

	_, err = e.Mask(ctx, col, domain.BandSet{domain.BandNIR: "B8", domain.BandRed: "B4"}, domain.MaskStrategy{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no band B4")
}

func TestComposite_Statistics(t *testing.T) {
	images := func() []*Image {
		return []*Image{
			mustImage(t, "1", "2024-02-01", map[string][]float64{"P": {1, 1, 1, math.NaN()}}),
			mustImage(t, "2", "2024-03-01", map[string][]float64{"P": {2, 4, 1, math.NaN()}}),
			mustImage(t, "3", "2024-04-01", map[string][]float64{"P": {3, 10, 1, math.NaN()}}),
			mustImage(t, "4", "2024-05-01", map[string][]float64{"P": {10, 20, 1, math.NaN()}}),
		}
	}

	tests := []struct {
		stat domain.CompositeStat
		want []float64
	}{
		{domain.StatMedian, []float64{2.5, 7, 1}},
		{domain.StatMean, []float64{4, 8.75, 1}},
		{domain.StatSum, []float64{16, 35, 4}},
	}
	for _, tt := range tests {
		t.Run(string(tt.stat), func(t *testing.T) {
			img := composite(t, NewEngine(), images(), domain.CompositeSpec{Stat: tt.stat})
			for i, want := range tt.want {
				v, ok := img.At("P", i)
				require.True(t, ok)
				assert.InDelta(t, want, v, 1e-12)
			}
			_, ok := img.At("P", 3)
			assert.False(t, ok, "pixel invalid in every image stays invalid")
		})
	}
}

func TestComposite_MedianOdd(t *testing.T) {
	img := composite(t, NewEngine(), []*Image{
		mustImage(t, "1", "2024-02-01", map[string][]float64{"P": uniform(5)}),
		mustImage(t, "2", "2024-03-01", map[string][]float64{"P": uniform(1)}),
		mustImage(t, "3", "2024-04-01", map[string][]float64{"P": uniform(3)}),
	}, domain.CompositeSpec{Stat: domain.StatMedian})

	v, ok := img.At("P", 0)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestComposite_OrderIndependent(t *testing.T) {
	a := mustImage(t, "a", "2024-02-01", map[string][]float64{"P": {1, 2, 3, 4}})
	b := mustImage(t, "b", "2024-03-01", map[string][]float64{"P": {4, 3, 2, 1}})
	c := mustImage(t, "c", "2024-04-01", map[string][]float64{"P": {0, 9, 0, 9}})

	for _, stat := range []domain.CompositeStat{domain.StatMedian, domain.StatMean, domain.StatSum} {
		x := composite(t, NewEngine(), []*Image{a, b, c}, domain.CompositeSpec{Stat: stat})
		y := composite(t, NewEngine(), []*Image{c, a, b}, domain.CompositeSpec{Stat: stat})
		for i := 0; i < 4; i++ {
			vx, _ := x.At("P", i)
			vy, _ := y.At("P", i)
			assert.Equal(t, vx, vy, "%s pixel %d", stat, i)
		}
	}
}

func TestComposite_QualityMosaicLaterWinsTies(t *testing.T) {
	early := mustImage(t, "early", "2024-02-01", map[string][]float64{"NDVI": {0.5, 0.9, 0.5, 0.1}, "B": uniform(1)})
	late := mustImage(t, "late", "2024-03-01", map[string][]float64{"NDVI": {0.5, 0.2, 0.7, math.NaN()}, "B": uniform(2)})

	spec := domain.CompositeSpec{Stat: domain.StatQualityMosaic, ReferenceBand: "NDVI", TieBreak: domain.TieLatest}
	for _, order := range [][]*Image{{early, late}, {late, early}} {
		img := composite(t, NewEngine(), order, spec)

		want := []float64{2, 1, 2, 1}
		for i, w := range want {
			v, ok := img.At("B", i)
			require.True(t, ok)
			assert.Equal(t, w, v, "pixel %d", i)
		}
	}
}

func TestComposite_EmptyCollectionIsNoData(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	col, err := e.FilterCollection(ctx, "missing", testRegion(t), testWindow(t, "2024-01-01", "2024-06-01"))
	require.NoError(t, err)

	img, err := e.Composite(ctx, col, domain.CompositeSpec{Stat: domain.StatMedian})
	require.NoError(t, err)
	assert.True(t, img.(*Image).NoData())

	ndvi, err := e.ApplyFormula(ctx, img, domain.NDVI())
	require.NoError(t, err)
	assert.Equal(t, []string{"NDVI"}, ndvi.BandNames())

	_, err = e.ReduceRegion(ctx, ndvi, testRegion(t), domain.ZonalStatistic{Band: "NDVI", Reducer: domain.ReducerMean})
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestComposite_InvalidSpec(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	col, err := e.FilterCollection(ctx, "c", testRegion(t), testWindow(t, "2024-01-01", "2024-06-01"))
	require.NoError(t, err)

	_, err = e.Composite(ctx, col, domain.CompositeSpec{Stat: domain.StatQualityMosaic})
	assert.Error(t, err)
	_, err = e.Composite(ctx, col, domain.CompositeSpec{Stat: "max"})
	assert.Error(t, err)
}

func TestApplyFormulaStackReduce_Delta(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	region := testRegion(t)

	current := mustImage(t, "cur", "2024-05-01", map[string][]float64{"B8": uniform(0.6), "B4": uniform(0.15)})
	historic := mustImage(t, "hist", "2020-05-01", map[string][]float64{"B8": uniform(0.5), "B4": uniform(0.2)})

	ndvi, err := domain.NDVI().Bind(domain.BandSet{domain.BandNIR: "B8", domain.BandRed: "B4"})
	require.NoError(t, err)

	curNDVI, err := e.ApplyFormula(ctx, current, ndvi)
	require.NoError(t, err)
	histNDVI, err := e.ApplyFormula(ctx, historic, ndvi)
	require.NoError(t, err)

	stack, err := e.Stack(ctx, map[string]domain.Image{domain.StackCurrent: curNDVI, domain.StackHistoric: histNDVI})
	require.NoError(t, err)
	assert.Equal(t, []string{"current", "historic"}, stack.BandNames())

	delta, err := e.ApplyFormula(ctx, stack, domain.Delta())
	require.NoError(t, err)

	got, err := e.ReduceRegion(ctx, delta, region, domain.ZonalStatistic{Band: "delta", Reducer: domain.ReducerMean, ScaleMeters: 100, MaxSamples: 1e8})
	require.NoError(t, err)
	assert.InDelta(t, (0.45/0.75)-(0.3/0.7), got, 1e-9)
}

func TestReduceRegion(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	img := mustImage(t, "a", "2024-05-01", map[string][]float64{"T": {10, 20, 30, math.NaN()}})
	stat := domain.ZonalStatistic{Band: "T", Reducer: domain.ReducerMean, ScaleMeters: 100, MaxSamples: 1e8}

	t.Run("mean of valid pixels", func(t *testing.T) {
		got, err := e.ReduceRegion(ctx, img, testRegion(t), stat)
		require.NoError(t, err)
		assert.InDelta(t, 20, got, 1e-12)
	})

	t.Run("polygon selects pixel centers", func(t *testing.T) {
		// Western half of the grid: pixels 0 and 2.
		poly, err := domain.NewPolygonRegion([][2]float64{{-74.002, 4.600}, {-74.001, 4.600}, {-74.001, 4.602}, {-74.002, 4.602}})
		require.NoError(t, err)
		got, err := e.ReduceRegion(ctx, img, poly, stat)
		require.NoError(t, err)
		assert.InDelta(t, 20, got, 1e-12)
	})

	t.Run("region smaller than a pixel", func(t *testing.T) {
		tiny, err := domain.NewRegion(-74.0018, 4.6012, -74.0017, 4.6013)
		require.NoError(t, err)
		got, err := e.ReduceRegion(ctx, img, tiny, stat)
		require.NoError(t, err)
		assert.Equal(t, 10.0, got)
	})

	t.Run("sample cap", func(t *testing.T) {
		capped := stat
		capped.MaxSamples = 2
		_, err := e.ReduceRegion(ctx, img, testRegion(t), capped)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNoData)
	})

	t.Run("unknown band", func(t *testing.T) {
		bad := stat
		bad.Band = "X"
		_, err := e.ReduceRegion(ctx, img, testRegion(t), bad)
		require.Error(t, err)
	})

	t.Run("unsupported reducer", func(t *testing.T) {
		bad := stat
		bad.Reducer = "max"
		_, err := e.ReduceRegion(ctx, img, testRegion(t), bad)
		require.Error(t, err)
	})
}

func TestEngine_Close(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Ping(context.Background()))
	require.NoError(t, e.Close())

	assert.ErrorIs(t, e.Ping(context.Background()), ErrClosed)
	_, err := e.Centroid(context.Background(), testRegion(t))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngine_ContextCancelled(t *testing.T) {
	e := NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.FilterCollection(ctx, "c", testRegion(t), testWindow(t, "2024-01-01", "2024-06-01"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFixtures_RoundTrip(t *testing.T) {
	img := mustImage(t, "a", "2024-05-01", map[string][]float64{"T": {10, math.NaN(), 30, 40}})

	var buf bytes.Buffer
	require.NoError(t, WriteFixtures(&buf, FixtureSet{Collections: map[string][]FixtureImage{"lst": {Fixture(img)}}}))
	assert.Contains(t, buf.String(), "null")

	e := NewEngine()
	require.NoError(t, e.Load(&buf))
	assert.Equal(t, []string{"lst"}, e.Collections())

	col, err := e.FilterCollection(context.Background(), "lst", testRegion(t), testWindow(t, "2024-01-01", "2024-06-01"))
	require.NoError(t, err)
	loaded := col.(*Collection).Images()[0]

	_, ok := loaded.At("T", 1)
	assert.False(t, ok)
	v, ok := loaded.At("T", 3)
	require.True(t, ok)
	assert.Equal(t, 40.0, v)
	assert.Equal(t, img.Grid(), loaded.Grid())
}
