package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/leeforge/resizer/codec"
	"github.com/leeforge/resizer/concurrency"
	"github.com/leeforge/resizer/config"
	"github.com/leeforge/resizer/errors"
	"github.com/leeforge/resizer/json"
	"github.com/leeforge/resizer/logging"
	"github.com/leeforge/resizer/metrics"
	"github.com/leeforge/resizer/pixel"
	"github.com/leeforge/resizer/resizer"
	"github.com/leeforge/resizer/storage"
)

// report is one line of the JSON summary written to stdout.
type report struct {
	Source         string                `json:"source"`
	RequestID      string                `json:"request_id"`
	SourceMime     string                `json:"source_mime,omitempty"`
	SourceWidth    int                   `json:"source_width,omitempty"`
	SourceHeight   int                   `json:"source_height,omitempty"`
	Width          int                   `json:"width,omitempty"`
	Height         int                   `json:"height,omitempty"`
	MimeType       string                `json:"mime_type,omitempty"`
	Algorithm      string                `json:"algorithm,omitempty"`
	HalfScaleSteps int                   `json:"half_scale_steps,omitempty"`
	PreShrunk      bool                  `json:"pre_shrunk,omitempty"`
	Output         *storage.UploadOutput `json:"output,omitempty"`
	DurationMS     int64                 `json:"duration_ms"`
	Error          *errors.AppError      `json:"error,omitempty"`
}

type cliOptions struct {
	configPath  string
	out         string
	folder      string
	workers     int
	noOrient    bool
	showMetrics bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, opts, flagKeys := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: resizer [flags] <source>...")
		fs.PrintDefaults()
		return 2
	}
	if opts.out != "" && fs.NArg() > 1 {
		fmt.Fprintln(stderr, "❌ --out accepts a single source")
		return 2
	}

	loadOpts := config.DefaultOptions()
	if opts.configPath != "" {
		loadOpts.BasePath = opts.configPath
	}
	loadOpts.Optional = true
	loadOpts.Flags = make(map[string]*pflag.Flag, len(flagKeys))
	for key, name := range flagKeys {
		loadOpts.Flags[key] = fs.Lookup(name)
	}

	cfg, err := config.Load(loadOpts)
	if err != nil {
		fmt.Fprintf(stderr, "❌ %s\n", errors.Format(err))
		return 1
	}
	resizeCfg := cfg.Resize()
	if !resizeCfg.Encodes() {
		fmt.Fprintln(stderr, "❌ mime type must name an encoded format")
		return 2
	}

	logCfg := cfg.Logging()
	if resizeCfg.Debug {
		logCfg.Level = "debug"
	}
	logger := logging.NewLogger(logCfg)
	defer logger.Sync()
	logging.SetGlobal(logger)

	sink, err := openSink(cfg.Storage(), opts.out)
	if err != nil {
		logger.Error("storage unavailable", zap.Error(err))
		return 1
	}

	decoder := codec.NewDecoder()
	decoder.AutoOrient = !opts.noOrient
	collector := metrics.NewCollector()

	r := resizer.New(
		resizer.WithLogger(logger),
		resizer.WithMetrics(collector),
		resizer.WithDecoder(decoder),
		resizer.WithWorkers(opts.workers),
	)
	defer r.Close()

	j := &job{
		resizer: r,
		decoder: decoder,
		sink:    sink,
		cfg:     resizeCfg,
		out:     opts.out,
		folder:  opts.folder,
	}

	reports := make([]report, 0, fs.NArg())
	failed := 0
	for _, source := range fs.Args() {
		reqID := uuid.NewString()
		jobCtx := logging.SetRequestID(ctx, reqID)
		jobCtx = logging.ToContext(jobCtx, logging.WithContext(logger, jobCtx).With(zap.String("source", source)))

		rep := j.process(jobCtx, source)
		rep.RequestID = reqID
		if rep.Error != nil {
			failed++
		}
		reports = append(reports, rep)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		logger.Error("write report", zap.Error(err))
		return 1
	}
	if opts.showMetrics {
		fmt.Fprint(stderr, collector.PrometheusFormat())
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func newFlagSet(stderr io.Writer) (*pflag.FlagSet, *cliOptions, map[string]string) {
	def := resizer.DefaultConfig()
	opts := &cliOptions{}

	fs := pflag.NewFlagSet("resizer", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	fs.StringVarP(&opts.configPath, "config", "c", "", "directory holding config.yaml (default $CONFIG_PATH or ./config)")
	fs.StringVarP(&opts.out, "out", "o", "", "write the single result to this file instead of the configured storage")
	fs.StringVar(&opts.folder, "folder", "resized", "storage folder for generated object keys")
	fs.IntVar(&opts.workers, "workers", concurrency.DefaultSize(), "hermite worker count; 1 disables the parallel path")
	fs.BoolVar(&opts.noOrient, "no-auto-orient", false, "ignore EXIF orientation")
	fs.BoolVar(&opts.showMetrics, "metrics", false, "print metrics in Prometheus text format to stderr")

	fs.StringP("algorithm", "a", string(def.Algorithm), "bilinear, hermite, hermite_single or none")
	fs.Bool("process-by-half", def.ProcessByHalf, "halve the image while it is at least twice the target width")
	fs.Int("max-width", def.MaxWidth, "maximum output width")
	fs.Int("max-height", def.MaxHeight, "maximum output height")
	fs.Int("max-size-kb", def.MaxSizeKB, "output pixel budget in thousands of pixels; 0 is unset")
	fs.Float64("scale-ratio", def.ScaleRatio, "cap the output width at this fraction of the source; 0 is unset")
	fs.Int("pixel-ceiling", def.PixelCeiling, "largest drawable surface in pixels; 0 is unconstrained")
	fs.Float64P("quality", "q", def.Quality, "encoder quality in [0,1]")
	fs.StringP("mime-type", "t", def.MimeType, "output MIME type")
	fs.BoolP("debug", "d", def.Debug, "emit pipeline diagnostics")

	keys := map[string]string{
		"resize.algorithm":       "algorithm",
		"resize.process_by_half": "process-by-half",
		"resize.max_width":       "max-width",
		"resize.max_height":      "max-height",
		"resize.max_size_kb":     "max-size-kb",
		"resize.scale_ratio":     "scale-ratio",
		"resize.pixel_ceiling":   "pixel-ceiling",
		"resize.quality":         "quality",
		"resize.mime_type":       "mime-type",
		"resize.debug":           "debug",
	}
	return fs, opts, keys
}

func openSink(cfg storage.Config, out string) (storage.Provider, error) {
	if out != "" {
		return storage.NewLocalProvider(filepath.Dir(out), "")
	}
	return storage.New(cfg)
}

type job struct {
	resizer *resizer.Resizer
	decoder *codec.Decoder
	sink    storage.Provider
	cfg     resizer.Config
	out     string
	folder  string
}

func (j *job) process(ctx context.Context, source string) (rep report) {
	logger := logging.FromContext(ctx)
	start := time.Now()
	rep.Source = source

	defer func() {
		rep.DurationMS = time.Since(start).Milliseconds()
		if rep.Error != nil {
			logger.Error("resize failed", zap.String("error", errors.Format(rep.Error)))
			return
		}
		logger.Info("resized",
			zap.Int("width", rep.Width), zap.Int("height", rep.Height),
			zap.Int64("duration_ms", rep.DurationMS))
	}()

	buf, err := j.decode(ctx, source, &rep)
	if err != nil {
		rep.Error = errors.FromError(err)
		return rep
	}

	res, err := j.resizer.ResizeBuffer(ctx, buf, j.cfg)
	if err != nil {
		rep.Error = errors.FromError(err)
		return rep
	}
	rep.Width = res.Width
	rep.Height = res.Height
	rep.MimeType = res.MimeType
	rep.Algorithm = string(res.Algorithm)
	rep.HalfScaleSteps = res.HalfScaleSteps
	rep.PreShrunk = res.PreShrunk

	key := storage.ObjectKey(j.folder, res.MimeType)
	if j.out != "" {
		key = filepath.Base(j.out)
	}
	out, err := j.sink.Upload(ctx, storage.UploadInput{
		Body:        bytes.NewReader(res.Data),
		Key:         key,
		ContentType: res.MimeType,
	})
	if err != nil {
		rep.Error = errors.FromError(err)
		return rep
	}
	rep.Output = &out
	return rep
}

func (j *job) decode(ctx context.Context, source string, rep *report) (*pixel.Buffer, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeDecodeFailure, "open source")
	}
	defer f.Close()

	buf, mime, err := j.decoder.Decode(ctx, f)
	if err != nil {
		return nil, err
	}
	rep.SourceMime = mime
	rep.SourceWidth = buf.Width
	rep.SourceHeight = buf.Height
	return buf, nil
}
