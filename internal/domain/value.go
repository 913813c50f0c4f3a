package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a scalar measurement that may be unavailable. The zero Value is
// unavailable. Non-finite inputs are treated as unavailable.
type Value struct {
	v  float64
	ok bool
}

// Unavailable is the sentinel for a value that could not be computed.
var Unavailable = Value{}

// Measured wraps a computed scalar.
func Measured(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable
	}
	return Value{v: v, ok: true}
}

// Float returns the scalar and whether it is available.
func (v Value) Float() (float64, bool) { return v.v, v.ok }

// Available reports whether the value was computed.
func (v Value) Available() bool { return v.ok }

// Sub returns v − o, unavailable if either side is.
func (v Value) Sub(o Value) Value {
	if !v.ok || !o.ok {
		return Unavailable
	}
	return Measured(v.v - o.v)
}

func (v Value) String() string {
	if !v.ok {
		return "unavailable"
	}
	return strconv.FormatFloat(v.v, 'g', -1, 64)
}

// MarshalJSON writes null for unavailable values.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Unavailable
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Measured(f)
	return nil
}

// MarshalCSV writes an empty cell for unavailable values.
func (v Value) MarshalCSV() (string, error) {
	if !v.ok {
		return "", nil
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64), nil
}
