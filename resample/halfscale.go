package resample

import (
	"golang.org/x/image/draw"

	"github.com/leeforge/resizer/pixel"
)

// HalfScale draws src into a buffer of half its width and height, both
// floored, with bilinear filtering. At an exact 2x ratio each destination
// pixel averages a 2x2 source block.
func HalfScale(src *pixel.Buffer) *pixel.Buffer {
	dst := pixel.New(src.Width/2, src.Height/2)
	if dst.Width == 0 || dst.Height == 0 {
		return dst
	}
	draw.BiLinear.Scale(dst.Image(), dst.Image().Bounds(), src.Image(), src.Image().Bounds(), draw.Src, nil)
	return dst
}

// ReduceByHalf halves src while its width is at least twice targetWidth and
// both sides can still be halved. It returns the reduced buffer and the
// number of halvings; src itself is returned when no step applies.
func ReduceByHalf(src *pixel.Buffer, targetWidth int) (*pixel.Buffer, int) {
	if targetWidth < 1 {
		targetWidth = 1
	}
	cur := src
	steps := 0
	for cur.Width >= 2*targetWidth && cur.Height >= 2 {
		cur = HalfScale(cur)
		steps++
	}
	return cur, steps
}
