// Package decimal implements the fixed-precision float contract shared by
// every JSON document the evaluator writes.
//
// Values are rounded half away from zero to Places decimal places and
// written in the shortest form that round-trips, with ".0" appended to
// integral values so readers never confuse a float field with a count:
//
//	100        -> 100.0
//	2/3*100    -> 66.666667
//	0.0000004  -> 0.0
package decimal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Places is the number of decimal places kept.
const Places = 6

var scale = math.Pow10(Places)

// Round rounds v half away from zero to Places decimal places.
func Round(v float64) float64 {
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0 // drop the sign of negative zero
	}
	return r
}

// Format renders v under the float contract.
func Format(v float64) string {
	s := strconv.FormatFloat(Round(v), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Marshal is the MarshalJSON body for float types following the contract.
// NaN and infinities have no JSON representation and are rejected.
func Marshal(v float64) ([]byte, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("cannot encode %v as a JSON number", v)
	}
	return []byte(Format(v)), nil
}

// Unmarshal parses a JSON number into a float.
func Unmarshal(data []byte) (float64, error) {
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q: %w", data, err)
	}
	return v, nil
}
