package resample

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/resizer/logging"
	"github.com/leeforge/resizer/pixel"
)

// alphaColorDiscount scales the color weight of partially transparent source
// samples by alpha/alphaColorDiscount. It is 250, not 255, and must stay so.
const alphaColorDiscount = 250

// geometry holds the global ratios of one Hermite resample. Every band of a
// parallel resample shares the same geometry, which keeps band output
// identical to a single pass.
type geometry struct {
	srcW, srcH     int
	dstW, dstH     int
	ratioW, ratioH float64
	halfW, halfH   float64
}

func newGeometry(srcW, srcH, dstW, dstH int) geometry {
	g := geometry{
		srcW:   srcW,
		srcH:   srcH,
		dstW:   dstW,
		dstH:   dstH,
		ratioW: float64(srcW) / float64(dstW),
		ratioH: float64(srcH) / float64(dstH),
	}
	g.halfW = math.Ceil(g.ratioW / 2)
	g.halfH = math.Ceil(g.ratioH / 2)
	return g
}

// windowY returns the source rows [start, stop) read by destination row j.
func (g geometry) windowY(j int) (int, int) {
	start := int(math.Floor(float64(j) * g.ratioH))
	stop := min(int(math.Ceil(float64(j+1)*g.ratioH)), g.srcH)
	return start, stop
}

// sourceRows returns the source rows read by destination rows [destStart, destEnd).
func (g geometry) sourceRows(destStart, destEnd int) (int, int) {
	start, _ := g.windowY(destStart)
	_, stop := g.windowY(destEnd - 1)
	return min(start, g.srcH-1), stop
}

// hermiteRows writes destination rows [destStart, destEnd) into out.
// src holds whole source rows beginning at global row srcStart and must cover
// g.sourceRows(destStart, destEnd). ctx is checked once per row.
func hermiteRows(ctx context.Context, g geometry, src []uint8, srcStart int, out []uint8, destStart, destEnd int) error {
	stride := g.srcW * 4

	for j := destStart; j < destEnd; j++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		centerY := float64(j) * g.ratioH
		yy0, yy1 := g.windowY(j)

		for i := 0; i < g.dstW; i++ {
			centerX := float64(i) * g.ratioW
			xx0 := int(math.Floor(centerX))
			xx1 := min(int(math.Ceil(float64(i+1)*g.ratioW)), g.srcW)

			var weights, weightsAlpha, gr, gg, gb, ga float64

			for yy := yy0; yy < yy1; yy++ {
				dy := math.Abs(centerY-float64(yy)) / g.halfH
				w0 := dy * dy
				row := (yy - srcStart) * stride

				for xx := xx0; xx < xx1; xx++ {
					dx := math.Abs(centerX-float64(xx)) / g.halfW
					w := math.Sqrt(w0 + dx*dx)
					if w >= 1 {
						continue
					}
					weight := 2*w*w*w - 3*w*w + 1

					p := row + xx*4
					alpha := src[p+3]
					ga += weight * float64(alpha)
					weightsAlpha += weight

					if alpha < 255 {
						weight = weight * float64(alpha) / alphaColorDiscount
					}
					gr += weight * float64(src[p])
					gg += weight * float64(src[p+1])
					gb += weight * float64(src[p+2])
					weights += weight
				}
			}

			o := ((j-destStart)*g.dstW + i) * 4
			if weights > 0 && weightsAlpha > 0 {
				out[o] = clampByte(gr / weights)
				out[o+1] = clampByte(gg / weights)
				out[o+2] = clampByte(gb / weights)
				out[o+3] = clampByte(ga / weightsAlpha)
				continue
			}

			// Empty support: take the window's top-left sample for the
			// channels that have no weight.
			n := (min(yy0, g.srcH-1)-srcStart)*stride + min(xx0, g.srcW-1)*4
			if weights > 0 {
				out[o] = clampByte(gr / weights)
				out[o+1] = clampByte(gg / weights)
				out[o+2] = clampByte(gb / weights)
			} else {
				out[o], out[o+1], out[o+2] = src[n], src[n+1], src[n+2]
			}
			if weightsAlpha > 0 {
				out[o+3] = clampByte(ga / weightsAlpha)
			} else {
				out[o+3] = src[n+3]
			}
		}
	}
	return nil
}

// HermiteSingle runs the Hermite filter over the whole buffer on the calling
// goroutine.
type HermiteSingle struct {
	Logger logging.Logger
}

// Resample implements Kernel. The pass is not interruptible.
func (k HermiteSingle) Resample(_ context.Context, src *pixel.Buffer, p Params) (*pixel.Buffer, error) {
	if err := prepare(src, p); err != nil {
		return nil, err
	}

	g := newGeometry(src.Width, src.Height, p.Width, p.Height)
	logger := k.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if p.Debug {
		logger.Debug("hermite single: start",
			zap.Int("src_width", g.srcW), zap.Int("src_height", g.srcH),
			zap.Int("dst_width", g.dstW), zap.Int("dst_height", g.dstH),
			zap.Float64("ratio_h", g.ratioH))
	}

	start := time.Now()
	dst := pixel.New(p.Width, p.Height)
	if err := hermiteRows(context.Background(), g, src.Pix, 0, dst.Pix, 0, g.dstH); err != nil {
		return nil, err
	}

	if p.Debug {
		logger.Debug("hermite single: done", zap.Duration("elapsed", time.Since(start)))
	}
	return dst, nil
}
