package pipeline

import (
	"encoding/json"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// AnalysisRequest is the caller's input. Region is either Coords
// ([minLon, minLat, maxLon, maxLat]) or Polygon ([[lon, lat], ...]); dates
// are ISO YYYY-MM-DD and windows are half-open.
type AnalysisRequest struct {
	Coords        []float64       `json:"coords,omitempty"`
	Polygon       [][2]float64    `json:"polygon,omitempty"`
	HistoricStart string          `json:"historic_start"`
	HistoricEnd   string          `json:"historic_end"`
	CurrentStart  string          `json:"current_start"`
	CurrentEnd    string          `json:"current_end"`
	Variables     []string        `json:"variables,omitempty"`
	Visualization json.RawMessage `json:"visualization,omitempty"`
}

// parse validates the request against the configured variables.
func (r AnalysisRequest) parse(all []Variable) (analysisInput, []Variable, error) {
	region, err := ResolveRegion(r.Coords, r.Polygon)
	if err != nil {
		return analysisInput{}, nil, err
	}
	historic, err := domain.ParseTimeWindow("historic", r.HistoricStart, r.HistoricEnd)
	if err != nil {
		return analysisInput{}, nil, err
	}
	current, err := domain.ParseTimeWindow("current", r.CurrentStart, r.CurrentEnd)
	if err != nil {
		return analysisInput{}, nil, err
	}
	vars, err := SelectVariables(all, r.Variables)
	if err != nil {
		return analysisInput{}, nil, err
	}
	if len(r.Visualization) > 0 && !json.Valid(r.Visualization) {
		return analysisInput{}, nil, &domain.InvalidRequestError{Field: "visualization", Reason: "not valid JSON"}
	}
	return analysisInput{Region: region, Historic: historic, Current: current}, vars, nil
}
