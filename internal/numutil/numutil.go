// Package numutil provides the step/tick arithmetic used when converting
// between strategy-level sizes and venue-native quantities. Rounding is
// always downward so a submitted quantity never exceeds what the caller
// authorized.
package numutil

import (
	"math"
	"strconv"
	"strings"
)

// floorEpsilon counteracts binary representation error for exact
// multiples of a step before flooring.
const floorEpsilon = 1e-12

// defaultPrecision is used when a step value carries no usable
// precision information.
const defaultPrecision = 8

// PrecisionFromStep returns the number of decimal digits implied by a
// step or tick value, e.g. 0.001 -> 3, 1e-06 -> 6, 1 -> 0. Venues do
// not always supply explicit precision fields, so it must be inferable
// from the step alone. Non-finite or non-positive steps yield a
// conservative default of 8.
func PrecisionFromStep(step float64) int {
	if math.IsNaN(step) || math.IsInf(step, 0) || step <= 0 {
		return defaultPrecision
	}

	s := strconv.FormatFloat(step, 'g', -1, 64)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa := s[:i]
		exp, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return defaultPrecision
		}
		frac := 0
		if d := strings.IndexByte(mantissa, '.'); d >= 0 {
			frac = len(mantissa) - d - 1
		}
		p := frac - exp
		if p < 0 {
			p = 0
		}
		return p
	}
	if d := strings.IndexByte(s, '.'); d >= 0 {
		return len(s) - d - 1
	}
	return 0
}

// FormatNumber renders v with at most precision fractional digits and
// trims trailing zeros and a trailing decimal point. Precision is
// clamped to [0, 12]; non-finite input renders as "0".
func FormatNumber(v float64, precision int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	if precision < 0 {
		precision = 0
	}
	if precision > 12 {
		precision = 12
	}
	out := strconv.FormatFloat(v, 'f', precision, 64)
	if strings.ContainsRune(out, '.') {
		out = strings.TrimRight(out, "0")
		out = strings.TrimRight(out, ".")
	}
	return out
}

// FloorToStep rounds v down to the nearest multiple of step. It never
// rounds up, which keeps submitted quantities and prices within what the
// caller authorized. A non-positive or non-finite step returns v
// unchanged.
func FloorToStep(v, step float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	if math.IsNaN(step) || math.IsInf(step, 0) || step <= 0 {
		return v
	}
	return math.Floor(v/step+floorEpsilon) * step
}

// SafeParseFloat parses a venue-supplied numeric string and returns
// fallback when the result is missing or not finite.
func SafeParseFloat(s string, fallback float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
