package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Status describes how a variable's computation ended.
type Status string

const (
	StatusOK          Status = "ok"          // every applicable value computed
	StatusPartial     Status = "partial"     // some values unavailable
	StatusUnavailable Status = "unavailable" // no valid pixels anywhere
	StatusFailed      Status = "failed"      // the pipeline errored or panicked
	StatusTimeout     Status = "timeout"     // the analysis deadline passed first
)

// Variable keys reported by the default catalog.
const (
	VarVegetation    = "vegetation"
	VarFloral        = "floral"
	VarEVI           = "evi"
	VarTemperature   = "temperature"
	VarPrecipitation = "precipitation"
)

// VariableResult holds the reduced values and labels of one variable.
// Values are independently unavailable; a current-only variable leaves
// Historic and Delta unavailable.
type VariableResult struct {
	Current       Value  `json:"current"`
	Historic      Value  `json:"historic"`
	Delta         Value  `json:"delta"`
	CurrentLabel  string `json:"current_label"`
	DeltaLabel    string `json:"delta_label,omitempty"`
	CurrentScore  Value  `json:"current_score"`
	HistoricScore Value  `json:"historic_score"`
	Status        Status `json:"status"`
	Error         string `json:"error,omitempty"`
}

// UnavailableResult is the placeholder for a variable whose pipeline did
// not produce values.
func UnavailableResult(status Status, err error) VariableResult {
	r := VariableResult{
		CurrentLabel: LabelUnavailable,
		Status:       status,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// RegionInfo is the region metadata echoed in a report.
type RegionInfo struct {
	BBox      [4]float64   `json:"bbox"`
	Polygon   [][2]float64 `json:"polygon,omitempty"`
	Centroid  Geo          `json:"centroid"`
	AreaKm2   float64      `json:"area_km2"`
	PlaceName string       `json:"place_name,omitempty"`
	GeoSource string       `json:"geo_source,omitempty"` // "reverse", "original", "failed"
}

// NewRegionInfo describes r with the given centroid.
func NewRegionInfo(r Region, centroid Geo) RegionInfo {
	return RegionInfo{
		BBox:     r.BBox(),
		Polygon:  r.Vertices(),
		Centroid: centroid,
		AreaKm2:  r.AreaSquareMeters() / 1e6,
	}
}

// Inputs echoes the raw band means and formula constants behind the
// derived indices.
type Inputs struct {
	BandMeans map[Band]Value `json:"band_means,omitempty"`
	EVI       EVIConstants   `json:"evi_constants"`
}

// AnalysisReport is the complete result of one analysis.
type AnalysisReport struct {
	ID             string                    `json:"id"`
	GeneratedAt    time.Time                 `json:"generated_at"`
	Region         RegionInfo                `json:"region"`
	HistoricWindow TimeWindow                `json:"historic_window"`
	CurrentWindow  TimeWindow                `json:"current_window"`
	Variables      map[string]VariableResult `json:"variables"`
	Inputs         Inputs                    `json:"inputs"`
	Visualization  json.RawMessage           `json:"visualization,omitempty"`
}

// VariableNames returns the report's variable keys, sorted.
func (r AnalysisReport) VariableNames() []string {
	names := make([]string, 0, len(r.Variables))
	for k := range r.Variables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// VariableRow is the flat per-variable form used for CSV output.
type VariableRow struct {
	ReportID     string `csv:"report_id"`
	Variable     string `csv:"variable"`
	Current      Value  `csv:"current"`
	Historic     Value  `csv:"historic"`
	Delta        Value  `csv:"delta"`
	CurrentLabel string `csv:"current_label"`
	DeltaLabel   string `csv:"delta_label"`
	Status       Status `csv:"status"`
}

// Rows flattens the report into one row per variable, sorted by name.
func (r AnalysisReport) Rows() []VariableRow {
	names := r.VariableNames()
	rows := make([]VariableRow, 0, len(names))
	for _, n := range names {
		v := r.Variables[n]
		rows = append(rows, VariableRow{
			ReportID:     r.ID,
			Variable:     n,
			Current:      v.Current,
			Historic:     v.Historic,
			Delta:        v.Delta,
			CurrentLabel: v.CurrentLabel,
			DeltaLabel:   v.DeltaLabel,
			Status:       v.Status,
		})
	}
	return rows
}
