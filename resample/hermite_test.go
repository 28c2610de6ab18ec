package resample

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leeforge/resizer/concurrency"
	"github.com/leeforge/resizer/errors"
	"github.com/leeforge/resizer/logging"
	"github.com/leeforge/resizer/metrics"
	"github.com/leeforge/resizer/pixel"
)

func TestPartitionCoversDestination(t *testing.T) {
	geometries := []struct{ sw, sh, dw, dh, cores int }{
		{400, 400, 100, 100, 4},
		{301, 217, 97, 61, 4},
		{301, 217, 97, 61, 3},
		{640, 11, 64, 3, 4},
		{50, 3, 10, 1, 4},
		{1000, 999, 333, 123, 2},
	}

	for _, tc := range geometries {
		src := pixel.New(tc.sw, tc.sh)
		items := Partition(src, tc.dw, tc.dh, tc.cores)
		g := newGeometry(tc.sw, tc.sh, tc.dw, tc.dh)

		require.NotEmpty(t, items)
		assert.LessOrEqual(t, len(items), tc.cores)

		next := 0
		for i, item := range items {
			assert.Equal(t, i, item.BandIndex)
			assert.Equal(t, next, item.DestStartRow, "%v band %d", tc, i)
			assert.Positive(t, item.DestRowCount)
			next = item.DestStartRow + item.DestRowCount

			for j := item.DestStartRow; j < next; j++ {
				lo, hi := g.windowY(j)
				assert.GreaterOrEqual(t, lo, item.SourceStartRow)
				assert.LessOrEqual(t, hi, item.SourceStartRow+item.Source.Height)
			}
		}
		assert.Equal(t, tc.dh, next, "%v", tc)
	}
}

func TestPartitionUsesEvenBlocks(t *testing.T) {
	// 10 rows over 4 cores: blocks of ceil(10/4/2)*2 = 4 rows, so only three
	// bands start inside the source.
	items := Partition(pixel.New(10, 10), 5, 5, 4)

	require.Len(t, items, 3)
	assert.Equal(t, []int{0, 2, 4}, []int{items[0].DestStartRow, items[1].DestStartRow, items[2].DestStartRow})
	assert.Equal(t, 0, items[0].SourceStartRow)
	assert.Equal(t, 4, items[1].SourceStartRow)
}

func TestParallelMatchesSingle(t *testing.T) {
	geometries := []struct{ sw, sh, dw, dh int }{
		{400, 400, 100, 100},
		{256, 128, 64, 32},
		{301, 217, 97, 61},
		{333, 250, 120, 90},
		{120, 9, 40, 3},
	}

	for _, cores := range []int{2, 3, 4} {
		engine := NewHermite(concurrency.NewPool(cores))
		for i, tc := range geometries {
			src := noise(tc.sw, tc.sh, int64(i))
			p := Params{Width: tc.dw, Height: tc.dh}

			want, err := HermiteSingle{}.Resample(context.Background(), src, p)
			require.NoError(t, err)
			got, err := engine.ResampleParallel(context.Background(), src, p)
			require.NoError(t, err)

			require.Equal(t, want.Pix, got.Pix, "cores=%d %v", cores, tc)
			assert.Equal(t, StateMerged, engine.State())
		}
	}
}

func TestParallelHasNoSeamAtUnalignedBands(t *testing.T) {
	// Horizontal stripes make any missing halo row show up as a changed
	// destination row at a band boundary.
	src := pixel.New(90, 131)
	for y := 0; y < src.Height; y++ {
		v := uint8(0)
		if y%3 == 0 {
			v = 255
		}
		for x := 0; x < src.Width; x++ {
			i := src.Offset(x, y)
			src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = v, v, v, 255
		}
	}
	p := Params{Width: 31, Height: 45}
	engine := NewHermite(concurrency.NewPool(4))

	want, err := HermiteSingle{}.Resample(context.Background(), src, p)
	require.NoError(t, err)
	got, err := engine.Resample(context.Background(), src, p)
	require.NoError(t, err)

	for _, item := range Partition(src, p.Width, p.Height, 4) {
		y := item.DestStartRow
		assert.Equal(t, want.Rows(y, y+1).Pix, got.Rows(y, y+1).Pix, "band %d first row", item.BandIndex)
	}
	assert.Equal(t, want.Pix, got.Pix)
}

func TestHermiteWorkerFailureFailsWholeCall(t *testing.T) {
	engine := NewHermite(concurrency.NewPool(4))
	boom := stderrors.New("band exploded")
	engine.jobFor = func(g geometry, item WorkItem, debug bool) concurrency.Job {
		if item.BandIndex == 1 {
			return concurrency.JobFunc(func(ctx context.Context) concurrency.Result {
				return &BandResult{BandIndex: item.BandIndex, Err: boom}
			})
		}
		return engine.bandJob(g, item, debug)
	}

	out, err := engine.Resample(context.Background(), noise(64, 64, 7), Params{Width: 16, Height: 16})

	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, errors.ErrWorkerFailure))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, errors.FromError(err).Details["band"])
	assert.Equal(t, StateFailed, engine.State())
}

func TestHermiteWorkerPanicIsWorkerFailure(t *testing.T) {
	engine := NewHermite(concurrency.NewPool(2))
	engine.jobFor = func(g geometry, item WorkItem, debug bool) concurrency.Job {
		return concurrency.JobFunc(func(ctx context.Context) concurrency.Result {
			panic("bad band")
		})
	}

	_, err := engine.Resample(context.Background(), noise(32, 32, 1), Params{Width: 8, Height: 8})

	assert.True(t, errors.Is(err, errors.ErrWorkerFailure))
	var pe *concurrency.PanicError
	assert.True(t, stderrors.As(err, &pe))
}

func TestHermiteCancelledCallIsAbandoned(t *testing.T) {
	pool := concurrency.NewPool(2)
	engine := NewHermite(pool)
	release := make(chan struct{})
	engine.jobFor = func(g geometry, item WorkItem, debug bool) concurrency.Job {
		return concurrency.JobFunc(func(ctx context.Context) concurrency.Result {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return &BandResult{BandIndex: item.BandIndex, Err: ctx.Err()}
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := engine.Resample(ctx, noise(32, 32, 1), Params{Width: 8, Height: 8})
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateFailed, engine.State())
	require.Eventually(t, func() bool { return pool.Active() == 0 }, time.Second, time.Millisecond)

	engine.jobFor = engine.bandJob
	out, err := engine.Resample(context.Background(), noise(32, 32, 1), Params{Width: 8, Height: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, out.Width)
}

// cancelOnRead cancels the call when the collector inspects it, so the band
// error and the cancellation arrive together.
type cancelOnRead struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (r *cancelOnRead) GetError() error {
	r.cancel()
	return r.ctx.Err()
}

func TestHermiteCancellationIsNotWorkerFailure(t *testing.T) {
	engine := NewHermite(concurrency.NewPool(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.jobFor = func(g geometry, item WorkItem, debug bool) concurrency.Job {
		return concurrency.JobFunc(func(context.Context) concurrency.Result {
			return &cancelOnRead{ctx: ctx, cancel: cancel}
		})
	}

	_, err := engine.Resample(ctx, noise(32, 32, 1), Params{Width: 8, Height: 8})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, errors.ErrWorkerFailure))
	assert.Equal(t, StateFailed, engine.State())
}

func TestHermiteSingleWorkerFallsBack(t *testing.T) {
	collector := metrics.NewCollector()
	engine := NewHermite(concurrency.NewPool(1), WithHermiteMetrics(collector))

	out, err := engine.Resample(context.Background(), noise(20, 20, 3), Params{Width: 5, Height: 5})

	require.NoError(t, err)
	assert.Equal(t, 5, out.Height)
	assert.Equal(t, StateIdle, engine.State())
	assert.Equal(t, 1.0, collector.GetMetric(metrics.HermiteFallbackTotal, nil).Value)
}

func TestHermiteDebugDiagnostics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	collector := metrics.NewCollector()
	engine := NewHermite(concurrency.NewPool(4),
		WithHermiteLogger(logging.FromZap(zap.New(core))),
		WithHermiteMetrics(collector))
	src := noise(80, 80, 5)

	_, err := engine.Resample(context.Background(), src, Params{Width: 20, Height: 20})
	require.NoError(t, err)
	assert.Zero(t, logs.Len(), "diagnostics are gated by Params.Debug")

	_, err = engine.Resample(context.Background(), src, Params{Width: 20, Height: 20, Debug: true})
	require.NoError(t, err)

	assert.Equal(t, 4, logs.FilterMessage("hermite multi: source split").Len())
	assert.Equal(t, 4, logs.FilterMessage("hermite worker: done").Len())
	assert.Equal(t, 1, logs.FilterMessage("hermite multi: done").Len())
	assert.Equal(t, 4.0, collector.GetMetric(metrics.HermiteBands, nil).Value)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "collecting", StateCollecting.String())
	assert.Equal(t, "unknown", State(42).String())
}
