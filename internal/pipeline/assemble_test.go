package pipeline_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/pipeline"
)

func TestAssemble_FailedTaskFillsEveryMetric(t *testing.T) {
	vars := pipeline.DefaultVariables(domain.DefaultEVIConstants)
	results := []pipeline.TaskResult{
		{Name: "vegetation", Err: fmt.Errorf("variable vegetation: %w", domain.ErrTimeout), Status: domain.StatusTimeout},
		{Name: "temperature", Output: pipeline.VariableOutput{Results: map[string]domain.VariableResult{
			"temperature": {Current: domain.Measured(21), Status: domain.StatusOK},
		}}},
		// precipitation missing
	}

	report := pipeline.Assemble(pipeline.ReportHeader{
		ID:          "r1",
		GeneratedAt: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		EVI:         domain.DefaultEVIConstants,
	}, vars, results)

	require.ElementsMatch(t, []string{"vegetation", "floral", "evi", "temperature", "precipitation"}, report.VariableNames())
	for _, key := range []string{"vegetation", "floral", "evi"} {
		v := report.Variables[key]
		assert.Equal(t, domain.StatusTimeout, v.Status, key)
		assert.Equal(t, domain.LabelUnavailable, v.CurrentLabel, key)
		assert.False(t, v.Current.Available(), key)
		assert.Contains(t, v.Error, "deadline", key)
	}
	assert.Equal(t, domain.LabelUnavailable, report.Variables["vegetation"].DeltaLabel)
	assert.Empty(t, report.Variables["floral"].DeltaLabel)
	assert.Empty(t, report.Variables["evi"].DeltaLabel)
	assert.Equal(t, domain.StatusOK, report.Variables["temperature"].Status)
	assert.Equal(t, domain.StatusFailed, report.Variables["precipitation"].Status)
	assert.Equal(t, domain.LabelUnavailable, report.Variables["precipitation"].DeltaLabel)

	for _, b := range []domain.Band{domain.BandNIR, domain.BandRed, domain.BandGreen, domain.BandBlue} {
		val, ok := report.Inputs.BandMeans[b]
		require.True(t, ok, b)
		assert.False(t, val.Available(), b)
	}
}

func TestReport_Rows(t *testing.T) {
	report := pipeline.Assemble(pipeline.ReportHeader{ID: "r1"},
		pipeline.DefaultVariables(domain.DefaultEVIConstants), nil)

	rows := report.Rows()
	require.Len(t, rows, 5)
	assert.Equal(t, "evi", rows[0].Variable)
	assert.Equal(t, "vegetation", rows[4].Variable)
	for _, r := range rows {
		assert.Equal(t, "r1", r.ReportID)
	}
}
