package resample

import (
	"context"
	"math"

	"github.com/leeforge/resizer/pixel"
)

// Bilinear blends the four nearest source samples of each destination pixel.
// The horizontal scale dst/src is applied to both axes.
type Bilinear struct{}

// Resample implements Kernel.
func (Bilinear) Resample(_ context.Context, src *pixel.Buffer, p Params) (*pixel.Buffer, error) {
	if err := prepare(src, p); err != nil {
		return nil, err
	}
	dst := pixel.New(p.Width, p.Height)
	bilinearInto(src, dst)
	return dst, nil
}

func bilinearInto(src, dst *pixel.Buffer) {
	scale := float64(dst.Width) / float64(src.Width)
	maxX := src.Width - 1
	maxY := src.Height - 1
	sp := src.Pix
	dp := dst.Pix

	for i := 0; i < dst.Height; i++ {
		iyv := float64(i) / scale
		iy0 := min(int(math.Floor(iyv)), maxY)
		iy1 := min(int(math.Ceil(iyv)), maxY)
		dy := iyv - float64(iy0)
		row0 := iy0 * src.Width
		row1 := iy1 * src.Width

		for j := 0; j < dst.Width; j++ {
			ixv := float64(j) / scale
			ix0 := min(int(math.Floor(ixv)), maxX)
			ix1 := min(int(math.Ceil(ixv)), maxX)
			dx := ixv - float64(ix0)

			s00 := (row0 + ix0) * 4
			s10 := (row0 + ix1) * 4
			s01 := (row1 + ix0) * 4
			s11 := (row1 + ix1) * 4
			d := (i*dst.Width + j) * 4

			for c := 0; c < 4; c++ {
				dp[d+c] = clampByte(blend(
					float64(sp[s00+c]), float64(sp[s10+c]),
					float64(sp[s01+c]), float64(sp[s11+c]),
					dx, dy,
				))
			}
		}
	}
}

func blend(f00, f10, f01, f11, x, y float64) float64 {
	ux := 1 - x
	uy := 1 - y
	return f00*ux*uy + f10*x*uy + f01*ux*y + f11*x*y
}
