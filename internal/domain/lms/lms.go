// Package lms implements the LMS (Box-Cox power) transform that turns a raw
// measurement into a Z-score against a reference distribution.
//
// Only the L != 0 form is implemented:
//
//	Z = ((X/M)^L - 1) / (L * S)
//
// The logarithmic form used when L == 0 is not supported and such parameters
// are rejected with ErrInvalidParameters.
package lms

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameters reports inputs the transform cannot be applied to.
var ErrInvalidParameters = errors.New("invalid LMS parameters")

// Compute returns the Z-score of measurement x for parameters l, m, s.
func Compute(x, l, m, s float64) (float64, error) {
	names := [...]string{"X", "L", "M", "S"}
	for i, v := range [...]float64{x, l, m, s} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %s is not finite", ErrInvalidParameters, names[i])
		}
	}
	switch {
	case s == 0:
		return 0, fmt.Errorf("%w: S was zero", ErrInvalidParameters)
	case l == 0:
		return 0, fmt.Errorf("%w: L was zero", ErrInvalidParameters)
	case m <= 0:
		return 0, fmt.Errorf("%w: M must be positive, got %g", ErrInvalidParameters, m)
	case x <= 0:
		return 0, fmt.Errorf("%w: X must be positive, got %g", ErrInvalidParameters, x)
	}

	z := (math.Pow(x/m, l) - 1) / (l * s)
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, fmt.Errorf("%w: result is not finite", ErrInvalidParameters)
	}
	return z, nil
}
