package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	assert.False(t, Unavailable.Available())
	assert.False(t, Measured(math.NaN()).Available())
	assert.False(t, Measured(math.Inf(-1)).Available())

	zero := Measured(0)
	assert.True(t, zero.Available(), "zero is a measurement")

	assert.Equal(t, Measured(1.5), Measured(2).Sub(Measured(0.5)))
	assert.Equal(t, Unavailable, Measured(2).Sub(Unavailable))
	assert.Equal(t, Unavailable, Unavailable.Sub(Measured(2)))
}

func TestValue_JSONPreservesNull(t *testing.T) {
	r := VariableResult{Current: Measured(0), Historic: Unavailable}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 0.0, raw["current"])
	assert.Nil(t, raw["historic"])
	assert.Contains(t, raw, "historic")

	var back VariableResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Measured(0), back.Current)
	assert.Equal(t, Unavailable, back.Historic)
}

func TestValue_CSV(t *testing.T) {
	s, err := Measured(0.25).MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "0.25", s)

	s, err = Unavailable.MarshalCSV()
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestAnalysisReport_Rows(t *testing.T) {
	report := AnalysisReport{
		ID: "r-1",
		Variables: map[string]VariableResult{
			VarTemperature: {Current: Measured(21), Status: StatusOK},
			VarEVI:         UnavailableResult(StatusFailed, nil),
		},
	}

	rows := report.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, VarEVI, rows[0].Variable)
	assert.Equal(t, LabelUnavailable, rows[0].CurrentLabel)
	assert.Equal(t, StatusFailed, rows[0].Status)
	assert.Equal(t, VarTemperature, rows[1].Variable)
	assert.Equal(t, "r-1", rows[1].ReportID)
}
