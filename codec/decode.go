// Package codec decodes source images into pixel buffers and encodes
// buffers into image containers.
package codec

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	webp "github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"

	"github.com/leeforge/resizer/errors"
	"github.com/leeforge/resizer/pixel"
)

// Supported MIME types.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeBMP  = "image/bmp"
	MimeWebP = "image/webp"
)

// DefaultMaxBytes bounds how much of a source Decode reads.
const DefaultMaxBytes = 64 << 20

// Decoder turns an encoded image into a pixel buffer.
type Decoder struct {
	// AutoOrient applies the EXIF orientation of JPEG sources.
	AutoOrient bool
	// MaxBytes caps the source size. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// NewDecoder returns a Decoder with EXIF auto-orientation enabled.
func NewDecoder() *Decoder {
	return &Decoder{AutoOrient: true, MaxBytes: DefaultMaxBytes}
}

// Decode reads r fully, sniffs its content type and decodes it. The returned
// string is the detected MIME type.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (*pixel.Buffer, string, error) {
	img, mime, err := d.DecodeImage(ctx, r)
	if err != nil {
		return nil, mime, err
	}
	buf := pixel.FromImage(img)
	if err := buf.Validate(); err != nil {
		return nil, mime, err
	}
	return buf, mime, nil
}

// DecodeImage is Decode without the conversion to a pixel buffer.
func (d *Decoder) DecodeImage(ctx context.Context, r io.Reader) (image.Image, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	limit := d.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, "", errors.WrapWithType(err, errors.ErrorTypeDecodeFailure, "read source")
	}
	if int64(len(data)) > limit {
		return nil, "", errors.Newf(errors.ErrorTypeDecodeFailure, "source exceeds %d bytes", limit)
	}
	if len(data) == 0 {
		return nil, "", errors.New(errors.ErrorTypeEmptySourceBuffer, "source is empty")
	}

	mime := mimetype.Detect(data).String()
	img, err := decodeAs(mime, data)
	if err != nil {
		return nil, mime, err
	}

	if d.AutoOrient && mimetype.EqualsAny(mime, MimeJPEG) {
		img = ApplyOrientation(img, Orientation(bytes.NewReader(data)))
	}
	return img, mime, nil
}

func decodeAs(mime string, data []byte) (image.Image, error) {
	r := bytes.NewReader(data)

	var (
		img image.Image
		err error
	)
	switch mime {
	case MimeJPEG:
		img, err = jpeg.Decode(r)
	case MimePNG:
		img, err = png.Decode(r)
	case MimeGIF:
		img, err = gif.Decode(r)
	case MimeBMP:
		img, err = bmp.Decode(r)
	case MimeWebP:
		img, err = webp.Decode(r)
	default:
		return nil, errors.Newf(errors.ErrorTypeDecodeFailure, "unsupported source type %q", mime).
			WithDetail("mime", mime)
	}
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeDecodeFailure, "decode "+mime)
	}
	return img, nil
}
