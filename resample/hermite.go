package resample

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/resizer/concurrency"
	"github.com/leeforge/resizer/errors"
	"github.com/leeforge/resizer/logging"
	"github.com/leeforge/resizer/metrics"
	"github.com/leeforge/resizer/pixel"
)

// State is the phase of the most recent parallel resample on a Hermite engine.
type State int32

const (
	StateIdle State = iota
	StatePartitioned
	StateDispatched
	StateCollecting
	StateMerged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePartitioned:
		return "partitioned"
	case StateDispatched:
		return "dispatched"
	case StateCollecting:
		return "collecting"
	case StateMerged:
		return "merged"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WorkItem is one band of a parallel Hermite resample.
type WorkItem struct {
	BandIndex int
	// Source is a read-only view of the source rows the band's destination
	// rows read, beginning at SourceStartRow.
	Source         *pixel.Buffer
	SourceStartRow int
	DestStartRow   int
	DestRowCount   int
}

// BandResult carries the destination rows computed for one band.
type BandResult struct {
	BandIndex int
	Pixels    []uint8
	Err       error
}

// GetError implements concurrency.Result.
func (r *BandResult) GetError() error {
	return r.Err
}

// Partition splits a resample of src to dstW x dstH into at most cores bands.
//
// Source rows are cut into blocks of ceil(srcH/cores/2)*2 rows. Band c owns
// the destination rows from ceil(offset_c/ratio_h) up to the next band's
// start, and its Source view extends past its block far enough to cover every
// window those rows read. Bands that own no destination rows are dropped.
func Partition(src *pixel.Buffer, dstW, dstH, cores int) []WorkItem {
	if cores < 1 {
		cores = 1
	}
	g := newGeometry(src.Width, src.Height, dstW, dstH)
	block := int(math.Ceil(float64(src.Height)/float64(cores)/2)) * 2

	starts := make([]int, 0, cores+1)
	for c := 0; c < cores; c++ {
		offset := c * block
		if offset >= src.Height {
			break
		}
		starts = append(starts, min(int(math.Ceil(float64(offset)/g.ratioH)), dstH))
	}
	starts = append(starts, dstH)

	items := make([]WorkItem, 0, len(starts)-1)
	for c := 0; c+1 < len(starts); c++ {
		destStart, destEnd := starts[c], starts[c+1]
		if destEnd <= destStart {
			continue
		}
		srcStart, srcStop := g.sourceRows(destStart, destEnd)
		items = append(items, WorkItem{
			BandIndex:      len(items),
			Source:         src.Rows(srcStart, srcStop),
			SourceStartRow: srcStart,
			DestStartRow:   destStart,
			DestRowCount:   destEnd - destStart,
		})
	}
	return items
}

// Hermite is the Hermite resample engine. It splits a resample into bands run
// on its worker pool, or runs a single pass when only one worker is
// available.
//
// Calls on one engine are serialised. A call abandoned through its context
// leaves its workers cancelled; the next call reclaims any that are still
// tracked before dispatching.
type Hermite struct {
	pool    *concurrency.Pool
	logger  logging.Logger
	metrics *metrics.Collector
	jobFor  func(g geometry, item WorkItem, debug bool) concurrency.Job

	mu    sync.Mutex
	state atomic.Int32
}

// HermiteOption configures a Hermite engine.
type HermiteOption func(*Hermite)

// WithHermiteLogger sets the diagnostics logger.
func WithHermiteLogger(logger logging.Logger) HermiteOption {
	return func(h *Hermite) {
		h.logger = logger
	}
}

// WithHermiteMetrics sets the metrics collector.
func WithHermiteMetrics(c *metrics.Collector) HermiteOption {
	return func(h *Hermite) {
		h.metrics = c
	}
}

// NewHermite creates an engine that dispatches bands on pool. A nil pool
// gets concurrency.DefaultSize workers.
func NewHermite(pool *concurrency.Pool, opts ...HermiteOption) *Hermite {
	if pool == nil {
		pool = concurrency.NewPool(concurrency.DefaultSize())
	}
	h := &Hermite{
		pool:   pool,
		logger: logging.NewNop(),
	}
	h.jobFor = h.bandJob
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Workers returns the number of bands a parallel resample is split into.
func (h *Hermite) Workers() int {
	return h.pool.Size()
}

// State returns the phase of the last parallel resample.
func (h *Hermite) State() State {
	return State(h.state.Load())
}

func (h *Hermite) setState(s State) {
	h.state.Store(int32(s))
}

// Resample implements Kernel. It runs the parallel path when the engine has
// more than one worker and the single pass otherwise.
func (h *Hermite) Resample(ctx context.Context, src *pixel.Buffer, p Params) (*pixel.Buffer, error) {
	if h.Workers() <= 1 {
		h.metrics.IncCounter(metrics.HermiteFallbackTotal, nil)
		return h.ResampleSingle(ctx, src, p)
	}
	return h.ResampleParallel(ctx, src, p)
}

// ResampleSingle runs the Hermite filter inline with no partitioning.
func (h *Hermite) ResampleSingle(ctx context.Context, src *pixel.Buffer, p Params) (*pixel.Buffer, error) {
	return HermiteSingle{Logger: h.logger}.Resample(ctx, src, p)
}

// ResampleParallel partitions the resample into bands, runs one job per band
// and merges the results. Any band failure fails the whole call and
// terminates the remaining bands. If ctx is done before every band has
// reported, the outstanding bands are abandoned and ctx.Err() is returned.
func (h *Hermite) ResampleParallel(ctx context.Context, src *pixel.Buffer, p Params) (*pixel.Buffer, error) {
	if err := prepare(src, p); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := h.pool.TerminateAll(); n > 0 {
		h.metrics.AddCounter(metrics.HermiteReclaimedTotal, float64(n), nil)
		h.logger.Warn("hermite: reclaimed leftover workers", zap.Int("count", n))
	}

	start := time.Now()
	g := newGeometry(src.Width, src.Height, p.Width, p.Height)
	items := Partition(src, p.Width, p.Height, h.Workers())
	h.setState(StatePartitioned)
	h.metrics.SetGauge(metrics.HermiteBands, float64(len(items)), nil)

	if p.Debug {
		h.logger.Debug("hermite multi: start",
			zap.Int("cores", h.Workers()),
			zap.Int("src_width", g.srcW), zap.Int("src_height", g.srcH),
			zap.Int("dst_width", g.dstW), zap.Int("dst_height", g.dstH),
			zap.Float64("ratio_h", g.ratioH))
		for _, item := range items {
			h.logger.Debug("hermite multi: source split",
				zap.Int("band", item.BandIndex),
				zap.Int("src_start", item.SourceStartRow),
				zap.Int("src_rows", item.Source.Height),
				zap.Int("dst_start", item.DestStartRow),
				zap.Int("dst_rows", item.DestRowCount))
		}
	}

	results := make(chan concurrency.Result, len(items))
	handles := make([]*concurrency.Handle, 0, len(items))
	for _, item := range items {
		handles = append(handles, h.pool.Spawn(ctx, h.jobFor(g, item, p.Debug), results))
	}
	h.setState(StateDispatched)
	// Finished bands are released; unfinished ones are terminated.
	defer func() {
		for _, hd := range handles {
			h.pool.Terminate(hd)
		}
	}()

	dst := pixel.New(p.Width, p.Height)
	h.setState(StateCollecting)
	for remaining := len(items); remaining > 0; {
		select {
		case <-ctx.Done():
			h.setState(StateFailed)
			return nil, ctx.Err()
		case r := <-results:
			remaining--
			if err := r.GetError(); err != nil {
				h.setState(StateFailed)
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				appErr := errors.WrapWithType(err, errors.ErrorTypeWorkerFailure, "hermite band failed")
				if br, ok := r.(*BandResult); ok {
					appErr.WithDetail("band", br.BandIndex)
				}
				return nil, appErr
			}
			br, ok := r.(*BandResult)
			if !ok {
				h.setState(StateFailed)
				return nil, errors.New(errors.ErrorTypeWorkerFailure, "hermite band returned no pixels")
			}
			dst.WriteRows(items[br.BandIndex].DestStartRow, br.Pixels)
		}
	}

	h.setState(StateMerged)
	if p.Debug {
		h.logger.Debug("hermite multi: done", zap.Duration("elapsed", time.Since(start)))
	}
	return dst, nil
}

// Close terminates any workers still tracked by the engine's pool.
func (h *Hermite) Close() {
	h.pool.TerminateAll()
}

func (h *Hermite) bandJob(g geometry, item WorkItem, debug bool) concurrency.Job {
	return concurrency.JobFunc(func(ctx context.Context) concurrency.Result {
		start := time.Now()
		out := make([]uint8, item.DestRowCount*g.dstW*pixel.BytesPerPixel)
		err := hermiteRows(ctx, g, item.Source.Pix, item.SourceStartRow, out,
			item.DestStartRow, item.DestStartRow+item.DestRowCount)
		if debug {
			h.logger.Debug("hermite worker: done",
				zap.Int("band", item.BandIndex),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		}
		return &BandResult{BandIndex: item.BandIndex, Pixels: out, Err: err}
	})
}
