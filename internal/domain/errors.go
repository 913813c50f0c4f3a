package domain

import "errors"

var (
	// ErrValidation is the root of all input validation failures. Validation
	// errors are reported to the caller before any computation starts.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream marks a failed call into the raster platform.
	ErrUpstream = errors.New("raster platform call failed")

	// ErrNoData is returned by a reduction that found no valid pixels.
	ErrNoData = errors.New("no valid pixels")

	// ErrTimeout marks a variable pipeline that outlived the analysis deadline.
	ErrTimeout = errors.New("analysis deadline exceeded")
)

// InvalidRegionError reports a malformed bounding box or polygon.
type InvalidRegionError struct {
	Reason string
}

func (e *InvalidRegionError) Error() string { return "invalid region: " + e.Reason }

func (e *InvalidRegionError) Unwrap() error { return ErrValidation }

// InvalidWindowError reports a malformed time window.
type InvalidWindowError struct {
	Window string
	Reason string
}

func (e *InvalidWindowError) Error() string {
	if e.Window == "" {
		return "invalid time window: " + e.Reason
	}
	return "invalid " + e.Window + " window: " + e.Reason
}

func (e *InvalidWindowError) Unwrap() error { return ErrValidation }

// InvalidRequestError reports any other malformed request field.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string { return "invalid " + e.Field + ": " + e.Reason }

func (e *InvalidRequestError) Unwrap() error { return ErrValidation }

// IsValidation reports whether err is (or wraps) a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
