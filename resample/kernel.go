// Package resample implements the resampling kernels, the half-scale
// reducer and the parallel Hermite coordinator.
package resample

import (
	"context"
	"math"

	"github.com/leeforge/resizer/errors"
	"github.com/leeforge/resizer/pixel"
)

// Params fixes the output of a single resample call.
type Params struct {
	Width  int
	Height int
	// Debug enables per-call diagnostics.
	Debug bool
}

func (p Params) validate() error {
	if p.Width < 1 || p.Height < 1 {
		return errors.Newf(errors.ErrorTypeInvalidTargetSize, "cannot resample to %dx%d", p.Width, p.Height).
			WithDetail("width", p.Width).
			WithDetail("height", p.Height)
	}
	return nil
}

// Kernel resamples src into a new buffer of exactly p.Width x p.Height.
// src is not modified.
type Kernel interface {
	Resample(ctx context.Context, src *pixel.Buffer, p Params) (*pixel.Buffer, error)
}

func prepare(src *pixel.Buffer, p Params) error {
	if err := src.Validate(); err != nil {
		return err
	}
	return p.validate()
}

// clampByte converts v to a byte the way a clamped byte array stores a
// number: round half to even, then clamp to [0, 255]. NaN becomes 0.
func clampByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	v = math.RoundToEven(v)
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
