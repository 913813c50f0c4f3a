package domain

import (
	"encoding/json"
	"time"
)

// DateLayout is the ISO calendar date format used for window bounds.
const DateLayout = "2006-01-02"

// TimeWindow is a half-open date range [Start, End) in UTC.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow truncates both bounds to UTC dates and checks Start ≤ End.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	w := TimeWindow{Start: truncateDate(start), End: truncateDate(end)}
	if w.Start.IsZero() || w.End.IsZero() {
		return TimeWindow{}, &InvalidWindowError{Reason: "start and end are required"}
	}
	if w.End.Before(w.Start) {
		return TimeWindow{}, &InvalidWindowError{Reason: "start " + w.Start.Format(DateLayout) + " is after end " + w.End.Format(DateLayout)}
	}
	return w, nil
}

// ParseTimeWindow parses two ISO dates (YYYY-MM-DD). name labels errors, e.g.
// "historic" or "current".
func ParseTimeWindow(name, start, end string) (TimeWindow, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return TimeWindow{}, &InvalidWindowError{Window: name, Reason: "bad start date " + quote(start)}
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return TimeWindow{}, &InvalidWindowError{Window: name, Reason: "bad end date " + quote(end)}
	}
	w, err := NewTimeWindow(s, e)
	if err != nil {
		if we, ok := err.(*InvalidWindowError); ok {
			we.Window = name
		}
		return TimeWindow{}, err
	}
	return w, nil
}

func truncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func quote(s string) string { return `"` + s + `"` }

// Contains reports whether t falls in [Start, End).
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Empty reports whether the window admits no instants.
func (w TimeWindow) Empty() bool { return !w.Start.Before(w.End) }

func (w TimeWindow) String() string {
	return w.Start.Format(DateLayout) + "/" + w.End.Format(DateLayout)
}

type windowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (w TimeWindow) MarshalJSON() ([]byte, error) {
	return json.Marshal(windowJSON{Start: w.Start.Format(DateLayout), End: w.End.Format(DateLayout)})
}

func (w *TimeWindow) UnmarshalJSON(data []byte) error {
	var raw windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeWindow("", raw.Start, raw.End)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
