// Package pixel holds the raster substrate every resampling stage reads and
// writes: a tightly packed, straight-alpha RGBA8 buffer.
package pixel

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/leeforge/resizer/errors"
)

// BytesPerPixel is the size of one RGBA8 sample.
const BytesPerPixel = 4

// Buffer is a row-major RGBA8 raster with no row padding.
// Color channels are not premultiplied by alpha.
//
// A Buffer is owned by exactly one pipeline stage at a time. Rows returns a
// view that shares memory with its parent; the parent must not be written
// while the view is in use.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a zeroed buffer of the given size.
func New(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*BytesPerPixel),
	}
}

// FromPix wraps pix without copying. len(pix) must equal width*height*4.
func FromPix(width, height int, pix []uint8) (*Buffer, error) {
	b := &Buffer{Width: width, Height: height, Pix: pix}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Stride is the number of bytes per row.
func (b *Buffer) Stride() int {
	return b.Width * BytesPerPixel
}

// Validate reports EmptySourceBuffer when the buffer has no drawable pixels
// or its data length disagrees with its dimensions.
func (b *Buffer) Validate() error {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return errors.New(errors.ErrorTypeEmptySourceBuffer, "buffer has no drawable pixels")
	}
	if want := b.Width * b.Height * BytesPerPixel; len(b.Pix) != want {
		return errors.Newf(errors.ErrorTypeEmptySourceBuffer,
			"buffer data length %d does not match %dx%d", len(b.Pix), b.Width, b.Height).
			WithDetail("want", want)
	}
	return nil
}

// Rows returns a view of rows [start, end) sharing b's memory.
// Bounds are clamped to the buffer.
func (b *Buffer) Rows(start, end int) *Buffer {
	if start < 0 {
		start = 0
	}
	if end > b.Height {
		end = b.Height
	}
	if end < start {
		end = start
	}
	stride := b.Stride()
	return &Buffer{
		Width:  b.Width,
		Height: end - start,
		Pix:    b.Pix[start*stride : end*stride : end*stride],
	}
}

// WriteRows copies pix, which must hold whole rows of b's width, into b
// starting at row start. Rows past the bottom edge are dropped.
// It returns the number of rows written.
func (b *Buffer) WriteRows(start int, pix []uint8) int {
	stride := b.Stride()
	if stride == 0 || start < 0 || start >= b.Height {
		return 0
	}
	rows := len(pix) / stride
	if start+rows > b.Height {
		rows = b.Height - start
	}
	copy(b.Pix[start*stride:(start+rows)*stride], pix[:rows*stride])
	return rows
}

// Offset returns the index of pixel (x, y) in Pix.
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * BytesPerPixel
}

// At returns the pixel at (x, y).
func (b *Buffer) At(x, y int) color.NRGBA {
	i := b.Offset(x, y)
	p := b.Pix[i : i+4 : i+4]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// Set writes the pixel at (x, y).
func (b *Buffer) Set(x, y int, c color.NRGBA) {
	i := b.Offset(x, y)
	p := b.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}

// Fill sets every pixel to c.
func (b *Buffer) Fill(c color.NRGBA) {
	for i := 0; i+3 < len(b.Pix); i += BytesPerPixel {
		b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Image exposes the buffer as an *image.NRGBA sharing its memory.
func (b *Buffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Stride(),
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// FromImage copies img into a new Buffer. Images of any color model are
// converted to straight-alpha RGBA8.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	dst := New(bounds.Dx(), bounds.Dy())
	if dst.Width == 0 || dst.Height == 0 {
		return dst
	}

	if src, ok := img.(*image.NRGBA); ok {
		stride := dst.Stride()
		for y := 0; y < dst.Height; y++ {
			off := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*stride:(y+1)*stride], src.Pix[off:off+stride])
		}
		return dst
	}

	draw.Draw(dst.Image(), image.Rect(0, 0, dst.Width, dst.Height), img, bounds.Min, draw.Src)
	return dst
}
