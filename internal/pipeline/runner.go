package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// Window names used for per-window branches.
const (
	windowCurrent  = domain.StackCurrent
	windowHistoric = domain.StackHistoric
)

// VariableOutput is what one variable pipeline produces.
type VariableOutput struct {
	Results   map[string]domain.VariableResult
	BandMeans map[domain.Band]domain.Value
}

// analysisInput is a validated request.
type analysisInput struct {
	Region   domain.Region
	Historic domain.TimeWindow
	Current  domain.TimeWindow
}

// variableRunner runs the stages of one variable:
// composite per window → index → zonal reduce (current, historic, delta) → classify.
type variableRunner struct {
	compositor *TemporalCompositor
	indexer    *IndexComputer
	reducer    *ZonalReducer
	logger     *slog.Logger
}

// Run executes v. A failed window branch only degrades the values that
// depend on it; Run errors only when no branch produced a composite.
func (r *variableRunner) Run(ctx context.Context, v Variable, in analysisInput) (VariableOutput, error) {
	logger := r.logger.With("variable", v.Name)

	windows := map[string]domain.TimeWindow{windowCurrent: in.Current}
	if v.needsHistoric() {
		windows[windowHistoric] = in.Historic
	}

	composites := make(map[string]domain.Image, len(windows))
	branchErrs := make(map[string]error, len(windows))
	for _, name := range []string{windowHistoric, windowCurrent} {
		w, ok := windows[name]
		if !ok {
			continue
		}
		img, err := r.compositor.Composite(ctx, v.Source, in.Region, w)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return VariableOutput{}, ctxErr
			}
			logger.Warn("window branch failed", "window", name, "error", err)
			branchErrs[name] = fmt.Errorf("%s window: %w", name, err)
			continue
		}
		composites[name] = img
	}
	if len(composites) == 0 {
		return VariableOutput{}, fmt.Errorf("variable %s: %w", v.Name, errors.Join(branchErrs[windowHistoric], branchErrs[windowCurrent]))
	}

	out := VariableOutput{
		Results:   make(map[string]domain.VariableResult, len(v.Metrics)),
		BandMeans: make(map[domain.Band]domain.Value, len(v.InputBands)),
	}
	for _, m := range v.Metrics {
		out.Results[m.Key] = r.metric(ctx, logger, v, m, in.Region, composites, branchErrs)
	}

	current := composites[windowCurrent]
	for _, b := range v.InputBands {
		id, _ := v.Source.Bands.ID(b)
		out.BandMeans[b] = r.reducer.Reduce(ctx, current, id, in.Region, v.Source.ScaleMeters)
	}
	return out, nil
}

func (r *variableRunner) metric(ctx context.Context, logger *slog.Logger, v Variable, m Metric, region domain.Region, composites map[string]domain.Image, branchErrs map[string]error) domain.VariableResult {
	var errs []error
	if err := branchErrs[windowCurrent]; err != nil {
		errs = append(errs, err)
	}
	if err := branchErrs[windowHistoric]; err != nil && !m.CurrentOnly {
		errs = append(errs, err)
	}

	index := func(window string) domain.Image {
		img, ok := composites[window]
		if !ok {
			return nil
		}
		out, err := r.indexer.Compute(ctx, img, m.Formula, v.Source.Bands)
		if err != nil {
			logger.Warn("index computation failed", "metric", m.Key, "window", window, "error", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", m.Key, window, err))
			return nil
		}
		return out
	}

	scale := v.Source.ScaleMeters
	res := domain.VariableResult{
		Current:  domain.Unavailable,
		Historic: domain.Unavailable,
		Delta:    domain.Unavailable,
	}

	curIdx := index(windowCurrent)
	res.Current = r.reducer.Reduce(ctx, curIdx, m.Formula.Name, region, scale)
	expected := 1

	if !m.CurrentOnly {
		histIdx := index(windowHistoric)
		res.Historic = r.reducer.Reduce(ctx, histIdx, m.Formula.Name, region, scale)
		expected++

		if m.Delta != DeltaNone {
			expected++
			if curIdx != nil && histIdx != nil {
				change, err := r.indexer.Change(ctx, curIdx, histIdx, m.Delta, m.Key+"_delta")
				if err != nil {
					logger.Warn("change computation failed", "metric", m.Key, "error", err)
					errs = append(errs, err)
				} else {
					res.Delta = r.reducer.Reduce(ctx, change, m.Key+"_delta", region, scale)
				}
			}
		}
	}

	res.CurrentLabel = m.Level.Classify(res.Current)
	if m.hasDelta() {
		res.DeltaLabel = m.Change.Classify(res.Delta)
	}
	if m.Score != nil {
		res.CurrentScore = m.Score.Normalize(res.Current)
		res.HistoricScore = m.Score.Normalize(res.Historic)
	}

	available := 0
	for _, val := range []domain.Value{res.Current, res.Historic, res.Delta}[:expected] {
		if val.Available() {
			available++
		}
	}
	res.Status = metricStatus(available, expected, len(errs) > 0)
	if len(errs) > 0 {
		res.Error = errors.Join(errs...).Error()
	}
	return res
}

func metricStatus(available, expected int, failed bool) domain.Status {
	switch {
	case available == 0 && failed:
		return domain.StatusFailed
	case available == 0:
		return domain.StatusUnavailable
	case available < expected || failed:
		return domain.StatusPartial
	default:
		return domain.StatusOK
	}
}
