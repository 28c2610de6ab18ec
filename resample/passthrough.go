package resample

import (
	"context"

	"github.com/nfnt/resize"

	"github.com/leeforge/resizer/pixel"
)

// Passthrough hands the resample to a generic image scaler with no custom
// kernel. It trades quality for speed.
type Passthrough struct{}

// Resample implements Kernel.
func (Passthrough) Resample(_ context.Context, src *pixel.Buffer, p Params) (*pixel.Buffer, error) {
	if err := prepare(src, p); err != nil {
		return nil, err
	}
	if src.Width == p.Width && src.Height == p.Height {
		return src.Clone(), nil
	}
	scaled := resize.Resize(uint(p.Width), uint(p.Height), src.Image(), resize.Bilinear)
	return pixel.FromImage(scaled), nil
}
