package codec

import (
	"bytes"
	"context"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	webp "github.com/chai2010/webp"
	"golang.org/x/image/bmp"

	"github.com/leeforge/resizer/errors"
	"github.com/leeforge/resizer/pixel"
)

// Encoder writes pixel buffers in one of the supported containers.
type Encoder struct{}

// NewEncoder returns an Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Supports reports whether mimeType can be encoded.
func (e *Encoder) Supports(mimeType string) bool {
	switch mimeType {
	case MimeJPEG, MimePNG, MimeGIF, MimeBMP, MimeWebP:
		return true
	}
	return false
}

// Encode encodes buf as mimeType. quality in [0, 1] applies to the lossy
// formats and is ignored by the others.
func (e *Encoder) Encode(ctx context.Context, buf *pixel.Buffer, mimeType string, quality float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	img := buf.Image()
	var out bytes.Buffer
	var err error

	switch mimeType {
	case MimeJPEG:
		err = jpeg.Encode(&out, img, &jpeg.Options{Quality: JPEGQuality(quality)})
	case MimePNG:
		err = png.Encode(&out, img)
	case MimeGIF:
		err = gif.Encode(&out, img, nil)
	case MimeBMP:
		err = bmp.Encode(&out, img)
	case MimeWebP:
		err = webp.Encode(&out, img, &webp.Options{Quality: float32(percent(quality))})
	default:
		return nil, errors.Newf(errors.ErrorTypeEncodeFailure, "unsupported output type %q", mimeType).
			WithDetail("mime", mimeType)
	}
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeEncodeFailure, "encode "+mimeType)
	}
	return out.Bytes(), nil
}

// JPEGQuality maps a quality in [0, 1] onto the encoder's 1-100 scale.
func JPEGQuality(quality float64) int {
	q := int(percent(quality))
	if q < 1 {
		return 1
	}
	return q
}

func percent(quality float64) float64 {
	if math.IsNaN(quality) || quality < 0 {
		return 0
	}
	if quality > 1 {
		return 100
	}
	return math.Round(quality * 100)
}
