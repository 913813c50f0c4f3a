// Package rasterapi implements domain.RasterPlatform against a remote
// imagery service. Collection and image operations build an expression
// graph locally; only reductions and centroid requests reach the network.
package rasterapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

const (
	pathReduce   = "/v1/reduce"
	pathCentroid = "/v1/centroid"
	pathHealth   = "/v1/health"

	maxErrorBody = 1024
)

var errClosed = errors.New("raster API session closed")

// Client is a remote raster platform session. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	closed     atomic.Bool
}

// NewClient creates a session against baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *Client) checkOpen(ctx context.Context) error {
	if c.closed.Load() {
		return errClosed
	}
	return ctx.Err()
}

// FilterCollection records a filter node.
func (c *Client) FilterCollection(ctx context.Context, name string, region domain.Region, window domain.TimeWindow) (domain.Collection, error) {
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}
	w := window
	return &collection{
		source: name,
		graph: &node{
			Kind:       nodeFilter,
			Collection: name,
			Region:     regionGeometry(region),
			Window:     &w,
		},
	}, nil
}

// Mask records a mask node. The strategy is validated locally so malformed
// catalogs fail before any request is sent.
func (c *Client) Mask(ctx context.Context, col domain.Collection, bands domain.BandSet, strategy domain.MaskStrategy) (domain.Collection, error) {
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}
	in, err := asCollection(col)
	if err != nil {
		return nil, err
	}
	if err := strategy.Validate(); err != nil {
		return nil, fmt.Errorf("mask %s: %w", in.source, err)
	}
	if _, ok := bands.ID(domain.BandQuality); strategy.NeedsQualityBand() && !ok {
		return nil, fmt.Errorf("mask %s: %s strategy needs a quality band", in.source, strategy.Kind)
	}

	ids := make([]string, 0, len(bands))
	for _, id := range bands {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	s := strategy
	return &collection{
		source: in.source,
		bands:  ids,
		graph:  &node{Kind: nodeMask, Bands: bands, Mask: &s, Input: in.graph},
	}, nil
}

// Composite records a composite node.
func (c *Client) Composite(ctx context.Context, col domain.Collection, spec domain.CompositeSpec) (domain.Image, error) {
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}
	in, err := asCollection(col)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("composite %s: %w", in.source, err)
	}
	s := spec
	return &image{
		bands: in.bands,
		graph: &node{Kind: nodeComposite, Composite: &s, Input: in.graph},
	}, nil
}

// ApplyFormula records a formula node producing one band named after f.
func (c *Client) ApplyFormula(ctx context.Context, img domain.Image, f domain.IndexFormula) (domain.Image, error) {
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}
	in, err := asImage(img)
	if err != nil {
		return nil, err
	}
	if err := f.Expr.Validate(); err != nil {
		return nil, fmt.Errorf("apply formula %s: %w", f.Name, err)
	}
	formula := f
	return &image{
		bands: []string{f.Name},
		graph: &node{Kind: nodeFormula, Formula: &formula, Input: in.graph},
	}, nil
}

// Stack records a stack node whose bands are the layer names.
func (c *Client) Stack(ctx context.Context, layers map[string]domain.Image) (domain.Image, error) {
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, errors.New("stack: no layers")
	}
	graphs := make(map[string]*node, len(layers))
	for name, layer := range layers {
		in, err := asImage(layer)
		if err != nil {
			return nil, err
		}
		graphs[name] = in.graph
	}
	return &image{
		bands: sortedKeys(graphs),
		graph: &node{Kind: nodeStack, Layers: graphs},
	}, nil
}

type reduceRequest struct {
	Image  *node                 `json:"image"`
	Region *geojson.Geometry     `json:"region"`
	Stat   domain.ZonalStatistic `json:"stat"`
}

type reduceResponse struct {
	Value *float64 `json:"value"`
}

// ReduceRegion ships the image graph for evaluation. A null value means the
// region held no valid pixel.
func (c *Client) ReduceRegion(ctx context.Context, img domain.Image, region domain.Region, stat domain.ZonalStatistic) (float64, error) {
	if err := c.checkOpen(ctx); err != nil {
		return 0, err
	}
	in, err := asImage(img)
	if err != nil {
		return 0, err
	}

	var resp reduceResponse
	req := reduceRequest{Image: in.graph, Region: regionGeometry(region), Stat: stat}
	if err := c.post(ctx, pathReduce, req, &resp); err != nil {
		return 0, fmt.Errorf("reduce region: %w", err)
	}
	if resp.Value == nil {
		return 0, domain.ErrNoData
	}
	return *resp.Value, nil
}

type centroidRequest struct {
	Region *geojson.Geometry `json:"region"`
}

// Centroid asks the platform for the region's centroid.
func (c *Client) Centroid(ctx context.Context, region domain.Region) (domain.Geo, error) {
	if err := c.checkOpen(ctx); err != nil {
		return domain.Geo{}, err
	}
	var resp domain.Geo
	if err := c.post(ctx, pathCentroid, centroidRequest{Region: regionGeometry(region)}, &resp); err != nil {
		return domain.Geo{}, fmt.Errorf("centroid: %w", err)
	}
	return resp, nil
}

// Ping checks the platform health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.checkOpen(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathHealth, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, nil)
}

// Close ends the session. Later calls fail.
func (c *Client) Close() error {
	c.closed.Store(true)
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do sends req and decodes a 200 response into out. Transport failures and
// non-200 statuses are wrapped in domain.ErrUpstream; a cancelled context is
// returned as is.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Debug("raster API request failed", "path", req.URL.Path, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", domain.ErrUpstream, resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrUpstream, err)
	}
	return nil
}
