package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/pipeline"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

type analyzeFlags struct {
	bbox          []float64
	polygon       string
	historic      string
	current       string
	variables     []string
	format        string
	visualization string
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			if f.format != formatJSON && f.format != formatCSV {
				return fmt.Errorf("unknown format %q", f.format)
			}

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // one-shot command

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			report, err := a.analyzer.Analyze(ctx, req)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, f.format)
		},
	}

	fl := cmd.Flags()
	fl.Float64SliceVar(&f.bbox, "bbox", nil, "bounding box as minLon,minLat,maxLon,maxLat")
	fl.StringVar(&f.polygon, "polygon", "", `polygon vertices as "lon,lat;lon,lat;..."`)
	fl.StringVar(&f.historic, "historic", "", "historic window as START/END (YYYY-MM-DD)")
	fl.StringVar(&f.current, "current", "", "current window as START/END (YYYY-MM-DD)")
	fl.StringSliceVar(&f.variables, "variables", nil, "variables to compute (default all)")
	fl.StringVar(&f.format, "format", formatJSON, "output format: json or csv")
	fl.StringVar(&f.visualization, "visualization", "", "opaque JSON echoed in the report")
	cmd.MarkFlagsMutuallyExclusive("bbox", "polygon")
	_ = cmd.MarkFlagRequired("historic")
	_ = cmd.MarkFlagRequired("current")
	return cmd
}

func (f analyzeFlags) request() (pipeline.AnalysisRequest, error) {
	req := pipeline.AnalysisRequest{
		Coords:    f.bbox,
		Variables: f.variables,
	}
	if f.polygon != "" {
		poly, err := parsePolygon(f.polygon)
		if err != nil {
			return req, err
		}
		req.Polygon = poly
	}

	var err error
	if req.HistoricStart, req.HistoricEnd, err = splitWindow("historic", f.historic); err != nil {
		return req, err
	}
	if req.CurrentStart, req.CurrentEnd, err = splitWindow("current", f.current); err != nil {
		return req, err
	}
	if f.visualization != "" {
		req.Visualization = json.RawMessage(f.visualization)
	}
	return req, nil
}

func splitWindow(name, s string) (string, string, error) {
	start, end, ok := strings.Cut(s, "/")
	if !ok {
		return "", "", fmt.Errorf("--%s must be START/END, got %q", name, s)
	}
	return strings.TrimSpace(start), strings.TrimSpace(end), nil
}

func parsePolygon(s string) ([][2]float64, error) {
	var out [][2]float64
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		lonStr, latStr, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("polygon vertex %q is not lon,lat", pair)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			return nil, fmt.Errorf("polygon vertex %q: %w", pair, err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return nil, fmt.Errorf("polygon vertex %q: %w", pair, err)
		}
		out = append(out, [2]float64{lon, lat})
	}
	return out, nil
}

func writeReport(w io.Writer, report domain.AnalysisReport, format string) error {
	if format == formatCSV {
		rows := report.Rows()
		b, err := gocsv.MarshalBytes(&rows)
		if err != nil {
			return fmt.Errorf("encode csv: %w", err)
		}
		_, err = w.Write(b)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
