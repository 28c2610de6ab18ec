// Package resizer sequences the downsizing pipeline: platform pre-shrink,
// size solving, half-scale reduction, the selected kernel and the encode
// handoff.
package resizer

import (
	"context"
	"image"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/leeforge/resizer/codec"
	"github.com/leeforge/resizer/concurrency"
	"github.com/leeforge/resizer/errors"
	"github.com/leeforge/resizer/logging"
	"github.com/leeforge/resizer/metrics"
	"github.com/leeforge/resizer/pixel"
	"github.com/leeforge/resizer/resample"
	"github.com/leeforge/resizer/sizing"
)

// Decoder turns an encoded source into a pixel buffer and reports its MIME type.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (*pixel.Buffer, string, error)
}

// Encoder turns a pixel buffer into an encoded artifact.
type Encoder interface {
	Encode(ctx context.Context, buf *pixel.Buffer, mimeType string, quality float64) ([]byte, error)
}

// Result is the output of one resize call. Exactly one of Buffer and Data is
// set: Buffer when the configuration selects raw output, Data otherwise.
type Result struct {
	Buffer         *pixel.Buffer
	Data           []byte
	MimeType       string
	Width          int
	Height         int
	Algorithm      Algorithm
	HalfScaleSteps int
	PreShrunk      bool
}

// Resizer runs the pipeline. It is safe for concurrent use; Hermite
// resamples on one Resizer are serialised on its engine.
type Resizer struct {
	logger  logging.Logger
	metrics *metrics.Collector
	decoder Decoder
	encoder Encoder
	workers int
	hermite *resample.Hermite
}

// Option configures a Resizer.
type Option func(*Resizer)

// WithLogger sets the diagnostics logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Resizer) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Resizer) {
		r.metrics = c
	}
}

// WithWorkers sets the Hermite worker count. One worker disables the
// parallel path.
func WithWorkers(n int) Option {
	return func(r *Resizer) {
		r.workers = n
	}
}

// WithDecoder replaces the default decoder.
func WithDecoder(d Decoder) Option {
	return func(r *Resizer) {
		r.decoder = d
	}
}

// WithEncoder replaces the default encoder.
func WithEncoder(e Encoder) Option {
	return func(r *Resizer) {
		r.encoder = e
	}
}

// New creates a Resizer. By default it decodes and encodes with the codec
// package and runs Hermite on concurrency.DefaultSize workers.
func New(opts ...Option) *Resizer {
	r := &Resizer{
		logger:  logging.NewNop(),
		decoder: codec.NewDecoder(),
		encoder: codec.NewEncoder(),
		workers: concurrency.DefaultSize(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.hermite = resample.NewHermite(
		concurrency.NewPool(r.workers),
		resample.WithHermiteLogger(r.logger.Named("hermite")),
		resample.WithHermiteMetrics(r.metrics),
	)
	return r
}

// Hermite returns the engine used for AlgorithmHermite.
func (r *Resizer) Hermite() *resample.Hermite {
	return r.hermite
}

// Close reclaims any Hermite workers still running.
func (r *Resizer) Close() {
	r.hermite.Close()
}

// Resize decodes src and runs the pipeline on it.
func (r *Resizer) Resize(ctx context.Context, src io.Reader, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	buf, mime, err := r.decoder.Decode(ctx, src)
	if err != nil {
		r.metrics.IncCounter(metrics.ResizeFailuresTotal, map[string]string{"type": string(errors.TypeOf(err))})
		return nil, err
	}
	if cfg.Debug {
		r.logger.Debug("resizer: decoded source",
			zap.String("mime", mime), zap.Int("width", buf.Width), zap.Int("height", buf.Height))
	}
	return r.ResizeBuffer(ctx, buf, cfg)
}

// ResizeImage copies img into a pixel buffer and runs the pipeline on it.
func (r *Resizer) ResizeImage(ctx context.Context, img image.Image, cfg Config) (*Result, error) {
	return r.ResizeBuffer(ctx, pixel.FromImage(img), cfg)
}

// ResizeBuffer runs the pipeline on buf. Ownership of buf passes to the
// call; when no stage needs to touch it, it is returned as Result.Buffer.
func (r *Resizer) ResizeBuffer(ctx context.Context, buf *pixel.Buffer, cfg Config) (res *Result, err error) {
	algorithm, err := ParseAlgorithm(string(cfg.Algorithm))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		errType := ""
		if err != nil {
			errType = string(errors.TypeOf(err))
		}
		r.metrics.RecordResize(string(algorithm), time.Since(start), errType)
	}()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	res = &Result{Algorithm: algorithm}
	cur := buf

	if size, ok := sizing.PreShrink(sizing.Size{Width: cur.Width, Height: cur.Height}, cfg.PixelCeiling); ok {
		if cfg.Debug {
			r.logger.Debug("resizer: source exceeds the platform pixel ceiling",
				zap.Int("width", cur.Width), zap.Int("height", cur.Height),
				zap.Int("to_width", size.Width), zap.Int("to_height", size.Height))
		}
		cur = preShrink(cur, size)
		res.PreShrunk = true
	}

	target, err := sizing.Solve(sizing.Size{Width: cur.Width, Height: cur.Height}, cfg.Constraints())
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		r.logger.Debug("resizer: solved target size",
			zap.Int("src_width", cur.Width), zap.Int("src_height", cur.Height),
			zap.Float64("width", target.Candidate), zap.Int("height", target.Height))
		if target.TooSmall {
			r.logger.Warn("resizer: image size is too small", zap.Int("width", target.Width), zap.Int("height", target.Height))
		}
	}
	if cfg.ProcessByHalf {
		from := cur.Width
		cur, res.HalfScaleSteps = resample.ReduceByHalf(cur, target.Width)
		r.metrics.ObserveHistogram(metrics.HalfScaleSteps, float64(res.HalfScaleSteps), nil)
		if cfg.Debug && res.HalfScaleSteps > 0 {
			r.logger.Debug("resizer: scaled by half",
				zap.Int("from_width", from), zap.Int("to_width", cur.Width), zap.Int("steps", res.HalfScaleSteps))
		}
	}

	if cur.Width > target.Width {
		p := resample.Params{
			Width:  target.Width,
			Height: max(sizing.TargetHeight(cur.Height, float64(target.Width)/float64(cur.Width), cfg.MaxHeight), 1),
			Debug:  cfg.Debug,
		}
		if cfg.Debug {
			r.logger.Debug("resizer: resampling",
				zap.String("algorithm", string(algorithm)),
				zap.Int("from_width", cur.Width), zap.Int("to_width", p.Width), zap.Int("to_height", p.Height))
		}
		cur, err = r.kernel(algorithm).Resample(ctx, cur, p)
		if err != nil {
			return nil, err
		}
	}

	res.Width = cur.Width
	res.Height = cur.Height

	if !cfg.Encodes() {
		res.Buffer = cur
		return res, nil
	}

	res.Data, err = r.encoder.Encode(ctx, cur, cfg.MimeType, cfg.Quality)
	if err != nil {
		return nil, err
	}
	res.MimeType = cfg.MimeType
	return res, nil
}

// CalculateSize returns the size a source of src would be resized to under
// cfg, without touching pixels.
func CalculateSize(src sizing.Size, cfg Config) (sizing.Size, error) {
	target, err := sizing.Solve(src, cfg.Constraints())
	if err != nil {
		return sizing.Size{}, err
	}
	return target.Size, nil
}

func (r *Resizer) kernel(a Algorithm) resample.Kernel {
	switch a {
	case AlgorithmBilinear:
		return resample.Bilinear{}
	case AlgorithmHermite:
		return r.hermite
	case AlgorithmHermiteSingle:
		return resample.HermiteSingle{Logger: r.logger.Named("hermite")}
	case AlgorithmNone:
		return resample.Passthrough{}
	}
	panic("resizer: unhandled algorithm " + string(a))
}

func preShrink(src *pixel.Buffer, size sizing.Size) *pixel.Buffer {
	dst := pixel.New(size.Width, size.Height)
	draw.ApproxBiLinear.Scale(dst.Image(), dst.Image().Bounds(), src.Image(), src.Image().Bounds(), draw.Src, nil)
	return dst
}
