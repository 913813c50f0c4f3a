package rasterapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testRegion(t *testing.T) domain.Region {
	t.Helper()
	r, err := domain.NewRegion(-74.002, 4.600, -74.000, 4.602)
	require.NoError(t, err)
	return r
}

func testWindow(t *testing.T) domain.TimeWindow {
	t.Helper()
	w, err := domain.ParseTimeWindow("current", "2024-01-01", "2025-01-01")
	require.NoError(t, err)
	return w
}

// ndviImage builds filter → mask → composite → NDVI without any request.
func ndviImage(t *testing.T, c *Client) domain.Image {
	t.Helper()
	ctx := context.Background()
	bands := domain.BandSet{domain.BandNIR: "B8", domain.BandRed: "B4", domain.BandQuality: "SCL"}

	col, err := c.FilterCollection(ctx, "COPERNICUS/S2_SR_HARMONIZED", testRegion(t), testWindow(t))
	require.NoError(t, err)
	col, err = c.Mask(ctx, col, bands, domain.MaskStrategy{Kind: domain.MaskClassCode, AllowedClasses: []int{4}, Scale: 1e-4})
	require.NoError(t, err)
	img, err := c.Composite(ctx, col, domain.CompositeSpec{Stat: domain.StatMedian})
	require.NoError(t, err)
	assert.Equal(t, []string{"B4", "B8", "SCL"}, img.BandNames())

	f, err := domain.NDVI().Bind(bands)
	require.NoError(t, err)
	img, err = c.ApplyFormula(ctx, img, f)
	require.NoError(t, err)
	return img
}

func TestClient_GraphIsBuiltLocally(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	img := ndviImage(t, testClient(srv.URL))
	assert.Equal(t, []string{"NDVI"}, img.BandNames())
	assert.Zero(t, calls.Load())
}

func TestClient_ReduceRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathReduce, r.URL.Path)

		var req struct {
			Image  map[string]any `json:"image"`
			Region map[string]any `json:"region"`
			Stat   map[string]any `json:"stat"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, nodeFormula, req.Image["kind"])
		input := req.Image["input"].(map[string]any)
		assert.Equal(t, nodeComposite, input["kind"])
		assert.Equal(t, nodeMask, input["input"].(map[string]any)["kind"])
		assert.Equal(t, "Polygon", req.Region["type"])
		assert.Equal(t, "NDVI", req.Stat["band"])

		_, _ = w.Write([]byte(`{"value": 0.42}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	v, err := c.ReduceRegion(context.Background(), ndviImage(t, c), testRegion(t),
		domain.ZonalStatistic{Band: "NDVI", Reducer: domain.ReducerMean, ScaleMeters: 100})
	require.NoError(t, err)
	assert.Equal(t, 0.42, v)
}

func TestClient_ReduceRegion_NullIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"value": null}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.ReduceRegion(context.Background(), ndviImage(t, c), testRegion(t), domain.ZonalStatistic{Band: "NDVI"})
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestClient_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("computation timed out\n"))
			},
			wantMsg: "status 500: computation timed out",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"value":`))
			},
			wantMsg: "decode response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := testClient(srv.URL)
			_, err := c.ReduceRegion(context.Background(), ndviImage(t, c), testRegion(t), domain.ZonalStatistic{Band: "NDVI"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUpstream)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_CancelledContextIsNotUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	img := ndviImage(t, c)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.ReduceRegion(ctx, img, testRegion(t), domain.ZonalStatistic{Band: "NDVI"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrUpstream)
}

func TestClient_Centroid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathCentroid, r.URL.Path)
		_, _ = w.Write([]byte(`{"lat": 4.601, "lon": -74.001}`))
	}))
	defer srv.Close()

	g, err := testClient(srv.URL).Centroid(context.Background(), testRegion(t))
	require.NoError(t, err)
	assert.Equal(t, domain.Geo{Lat: 4.601, Lon: -74.001}, g)
}

func TestClient_PingAndClose(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathHealth, r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	require.NoError(t, c.Ping(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	assert.ErrorIs(t, c.Ping(context.Background()), domain.ErrUpstream)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errClosed)
	_, err := c.FilterCollection(context.Background(), "x", testRegion(t), testWindow(t))
	assert.ErrorIs(t, err, errClosed)
}

func TestClient_LocalValidation(t *testing.T) {
	c := testClient("http://unused")
	ctx := context.Background()

	col, err := c.FilterCollection(ctx, "S2", testRegion(t), testWindow(t))
	require.NoError(t, err)

	_, err = c.Mask(ctx, col, domain.BandSet{domain.BandNIR: "B8"}, domain.MaskStrategy{Kind: domain.MaskBitmask, Bits: []uint{10}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a quality band")

	_, err = c.Composite(ctx, col, domain.CompositeSpec{Stat: "max"})
	require.Error(t, err)

	_, err = c.Stack(ctx, nil)
	require.Error(t, err)
}

func TestClient_StackNamesBandsByLayer(t *testing.T) {
	c := testClient("http://unused")
	img := ndviImage(t, c)

	stacked, err := c.Stack(context.Background(), map[string]domain.Image{
		domain.StackHistoric: img,
		domain.StackCurrent:  img,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.StackCurrent, domain.StackHistoric}, stacked.BandNames())
}
