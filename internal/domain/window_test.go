package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeWindow(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		w, err := ParseTimeWindow("historic", "2020-01-01", "2020-12-31")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), w.Start)
		assert.Equal(t, "2020-01-01/2020-12-31", w.String())
	})

	t.Run("start equals end is empty but valid", func(t *testing.T) {
		w, err := ParseTimeWindow("current", "2024-05-01", "2024-05-01")
		require.NoError(t, err)
		assert.True(t, w.Empty())
	})

	t.Run("reversed", func(t *testing.T) {
		_, err := ParseTimeWindow("current", "2024-05-02", "2024-05-01")
		require.Error(t, err)

		var invalid *InvalidWindowError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "current", invalid.Window)
		assert.True(t, IsValidation(err))
		assert.Contains(t, err.Error(), "invalid current window")
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := ParseTimeWindow("historic", "2024-13-01", "2024-12-01")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad start date")
	})
}

func TestTimeWindow_ContainsIsHalfOpen(t *testing.T) {
	w, err := ParseTimeWindow("", "2024-01-01", "2024-02-01")
	require.NoError(t, err)

	assert.True(t, w.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestTimeWindow_JSON(t *testing.T) {
	w, err := ParseTimeWindow("", "2023-06-01", "2023-09-01")
	require.NoError(t, err)

	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2023-06-01","end":"2023-09-01"}`, string(data))

	var back TimeWindow
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, w, back)
}
