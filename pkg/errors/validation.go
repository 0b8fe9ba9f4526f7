package errors

import (
	"math"
	"strings"
	"unicode"
)

// MaxDecimals bounds the fractional digits accepted for formatted output.
// strconv handles more, but anything past float64 precision is noise.
const MaxDecimals = 17

// ValidateTimeline validates the bounds and step count of a regular timeline.
//
// The rules:
//   - nstep must be positive (a zero step count would divide by zero)
//   - min and max must be finite
//
// min >= max is NOT an error: such a timeline is simply empty.
func ValidateTimeline(min, max float64, nstep int) error {
	if nstep <= 0 {
		return New(ErrCodeInvalidTimeline, "step count must be positive, got %d", nstep)
	}
	if !isFinite(min) || !isFinite(max) {
		return New(ErrCodeInvalidTimeline, "timeline bounds must be finite, got [%g, %g)", min, max)
	}
	return nil
}

// ValidateLengths checks that every edge length is finite and strictly positive.
// Degenerate geometry is tolerated by the block model itself; this check backs
// strict mode only.
func ValidateLengths(lengths [3]float64) error {
	axes := [3]string{"x", "y", "z"}
	for i, l := range lengths {
		if !isFinite(l) {
			return New(ErrCodeInvalidGeometry, "length along %s is not finite", axes[i])
		}
		if l <= 0 {
			return New(ErrCodeInvalidGeometry, "length along %s must be positive, got %g", axes[i], l)
		}
	}
	return nil
}

// ValidateMassDensity checks that a mass density is finite and non-negative.
func ValidateMassDensity(density float64) error {
	if !isFinite(density) {
		return New(ErrCodeInvalidGeometry, "mass density is not finite")
	}
	if density < 0 {
		return New(ErrCodeInvalidGeometry, "mass density must be non-negative, got %g", density)
	}
	return nil
}

// ValidateFinite checks that every value of field is finite. Runs accept
// NaN and infinite block input; stored records, which are JSON, do not.
func ValidateFinite(field string, vals ...float64) error {
	for _, v := range vals {
		if !isFinite(v) {
			return New(ErrCodeInvalidInput, "%s must be finite, got %g", field, v)
		}
	}
	return nil
}

// ValidateDecimals checks a fixed-decimal precision.
func ValidateDecimals(decimals int) error {
	if decimals < 0 || decimals > MaxDecimals {
		return New(ErrCodeInvalidInput, "decimals must be within [0, %d], got %d", MaxDecimals, decimals)
	}
	return nil
}

// ValidateOutputPath validates a path the CLI or API is about to write to.
//
// Validation rules:
//   - Path cannot be empty
//   - No null bytes or control characters
//   - Must not name a directory (trailing separator)
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "output path cannot be empty")
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "output path contains invalid characters")
		}
	}
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		return New(ErrCodeInvalidInput, "output path %q names a directory", path)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
