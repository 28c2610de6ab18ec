// Package sizing derives target dimensions from a source size and a set of
// competing constraints.
package sizing

import (
	"math"

	"github.com/leeforge/resizer/errors"
)

// WebKitPixelCeiling is the largest offscreen surface, in pixels, that iOS
// WebKit will allocate.
const WebKitPixelCeiling = 16777216

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Pixels returns Width*Height.
func (s Size) Pixels() int {
	return s.Width * s.Height
}

// Constraints bound the solved size. Zero values for MaxSizeKB, ScaleRatio and
// PixelCeiling mean unset.
type Constraints struct {
	MaxWidth     int
	MaxHeight    int
	MaxSizeKB    int
	ScaleRatio   float64
	PixelCeiling int
}

// Target is the solved output size.
type Target struct {
	Size
	// Candidate is the unfloored width the solver settled on.
	Candidate float64
	// TooSmall is set when a dimension was clamped up to 1.
	TooSmall bool
}

// Solve computes the target size for src under c.
//
// The width candidate is the tightest of the source width, MaxWidth, the
// width implied by MaxHeight, the MaxSizeKB pixel budget and ScaleRatio.
// Height follows the source aspect ratio and never exceeds MaxHeight.
// Dimensions that floor below 1 are clamped to 1 and flagged through TooSmall.
func Solve(src Size, c Constraints) (Target, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return Target{}, errors.Newf(errors.ErrorTypeEmptySourceBuffer,
			"source size %dx%d has no pixels", src.Width, src.Height)
	}

	w := float64(src.Width)
	h := float64(src.Height)
	ratio := w / h

	candidate := math.Min(w, math.Min(float64(c.MaxWidth), ratio*float64(c.MaxHeight)))

	if c.MaxSizeKB > 0 && float64(c.MaxSizeKB)*1000 < w*h {
		candidate = math.Min(candidate, math.Floor(float64(c.MaxSizeKB)*1000/h))
	}
	if c.ScaleRatio != 0 {
		candidate = math.Min(candidate, math.Floor(c.ScaleRatio*w))
	}

	if math.IsNaN(candidate) || math.IsInf(candidate, 0) {
		return Target{}, errors.New(errors.ErrorTypeInvalidTargetSize, "target width is not a number").
			WithDetail("source_width", src.Width).
			WithDetail("source_height", src.Height)
	}

	height := TargetHeight(src.Height, candidate/w, c.MaxHeight)

	t := Target{Candidate: candidate, Size: Size{Width: int(math.Floor(candidate)), Height: height}}
	if t.Width < 1 {
		t.Width = 1
		t.TooSmall = true
	}
	if t.Height < 1 {
		t.Height = 1
		t.TooSmall = true
	}

	if c.PixelCeiling > 0 && t.Pixels() > c.PixelCeiling {
		return Target{}, errors.New(errors.ErrorTypeOversizeForPlatform, "image size is too large for the platform").
			WithDetail("width", t.Width).
			WithDetail("height", t.Height).
			WithDetail("ceiling", c.PixelCeiling)
	}
	return t, nil
}

// TargetHeight scales srcHeight by scale, floors it and caps it at maxHeight.
func TargetHeight(srcHeight int, scale float64, maxHeight int) int {
	h := int(math.Floor(float64(srcHeight) * scale))
	if h > maxHeight {
		return maxHeight
	}
	return h
}

// PreShrink reports the size a decoded source must be reduced to before it
// can be drawn on a surface limited to ceiling pixels. Both sides are scaled
// by sqrt(ceiling/pixels). ok is false when no reduction is needed.
func PreShrink(src Size, ceiling int) (Size, bool) {
	if ceiling <= 0 || src.Pixels() <= ceiling {
		return src, false
	}
	scale := math.Sqrt(float64(ceiling) / float64(src.Pixels()))
	out := Size{
		Width:  int(math.Floor(float64(src.Width) * scale)),
		Height: int(math.Floor(float64(src.Height) * scale)),
	}
	if out.Width < 1 {
		out.Width = 1
	}
	if out.Height < 1 {
		out.Height = 1
	}
	return out, true
}
