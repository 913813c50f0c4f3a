package pipeline

import (
	"encoding/json"
	"time"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// ReportHeader is everything in a report that does not come from the
// variable pipelines.
type ReportHeader struct {
	ID            string
	GeneratedAt   time.Time
	Region        domain.RegionInfo
	Historic      domain.TimeWindow
	Current       domain.TimeWindow
	EVI           domain.EVIConstants
	Visualization json.RawMessage
}

// Assemble merges task results into a report. Every metric key of every
// variable is present: a failed task fills its keys with unavailable
// placeholders carrying the task's status. Unavailable values stay null.
func Assemble(h ReportHeader, vars []Variable, results []TaskResult) domain.AnalysisReport {
	report := domain.AnalysisReport{
		ID:             h.ID,
		GeneratedAt:    h.GeneratedAt,
		Region:         h.Region,
		HistoricWindow: h.Historic,
		CurrentWindow:  h.Current,
		Variables:      make(map[string]domain.VariableResult),
		Inputs: domain.Inputs{
			BandMeans: make(map[domain.Band]domain.Value),
			EVI:       h.EVI,
		},
		Visualization: h.Visualization,
	}

	for i, v := range vars {
		var res TaskResult
		if i < len(results) {
			res = results[i]
		} else {
			res = TaskResult{Name: v.Name, Err: errMissingResult, Status: domain.StatusFailed}
		}

		for _, m := range v.Metrics {
			if res.Err != nil {
				report.Variables[m.Key] = m.unavailable(res.Status, res.Err)
				continue
			}
			r, ok := res.Output.Results[m.Key]
			if !ok {
				r = m.unavailable(domain.StatusFailed, errMissingResult)
			}
			report.Variables[m.Key] = r
		}

		for _, b := range v.InputBands {
			val, ok := res.Output.BandMeans[b]
			if !ok {
				val = domain.Unavailable
			}
			report.Inputs.BandMeans[b] = val
		}
	}
	return report
}

// unavailable is the placeholder for m when its task produced nothing. It
// carries the same label keys a computed result would.
func (m Metric) unavailable(status domain.Status, err error) domain.VariableResult {
	r := domain.UnavailableResult(status, err)
	if m.hasDelta() {
		r.DeltaLabel = domain.LabelUnavailable
	}
	return r
}
