package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/resizer/errors"
)

func defaults() Constraints {
	return Constraints{MaxWidth: 800, MaxHeight: 600}
}

func TestSolveScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  Size
		c    Constraints
		want Size
		tiny bool
	}{
		{"exact half", Size{1600, 1200}, defaults(), Size{800, 600}, false},
		{"wide limited by max width", Size{1600, 900}, Constraints{MaxWidth: 800, MaxHeight: 800}, Size{800, 450}, false},
		{"byte budget", Size{4000, 3000}, Constraints{MaxWidth: 800, MaxHeight: 600, MaxSizeKB: 50}, Size{16, 12}, false},
		{"budget not exceeded", Size{100, 100}, Constraints{MaxWidth: 800, MaxHeight: 600, MaxSizeKB: 50}, Size{100, 100}, false},
		{"scale ratio", Size{1000, 500}, Constraints{MaxWidth: 800, MaxHeight: 600, ScaleRatio: 0.25}, Size{250, 125}, false},
		{"tall limited by max height", Size{600, 1200}, defaults(), Size{300, 600}, false},
		{"already small", Size{320, 240}, defaults(), Size{320, 240}, false},
		{"single column", Size{1, 1000}, defaults(), Size{1, 600}, true},
		{"thin strip", Size{3, 4000}, defaults(), Size{1, 600}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Solve(tt.src, tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Size)
			assert.Equal(t, tt.tiny, got.TooSmall)
		})
	}
}

func TestSolveRespectsBoundsAndAspect(t *testing.T) {
	c := defaults()
	for w := 1; w <= 4000; w += 137 {
		for h := 1; h <= 4000; h += 211 {
			got, err := Solve(Size{w, h}, c)
			require.NoError(t, err)

			assert.LessOrEqual(t, got.Width, c.MaxWidth)
			assert.LessOrEqual(t, got.Height, c.MaxHeight)
			assert.GreaterOrEqual(t, got.Width, 1)
			assert.GreaterOrEqual(t, got.Height, 1)

			if got.Width > 50 && got.Height > 50 {
				srcRatio := float64(w) / float64(h)
				gotRatio := float64(got.Width) / float64(got.Height)
				assert.InEpsilon(t, srcRatio, gotRatio, 0.05, "src %dx%d -> %dx%d", w, h, got.Width, got.Height)
			}
		}
	}
}

func TestSolveClampsTinyTargets(t *testing.T) {
	got, err := Solve(Size{4000, 10}, Constraints{MaxWidth: 800, MaxHeight: 600, ScaleRatio: 0.0001})

	require.NoError(t, err)
	assert.Equal(t, Size{1, 1}, got.Size)
	assert.True(t, got.TooSmall)
}

func TestSolveOversizeUsesClampedWidth(t *testing.T) {
	c := Constraints{MaxWidth: 800, MaxHeight: 600, PixelCeiling: 600}

	got, err := Solve(Size{1, 1000}, c)

	require.NoError(t, err)
	assert.Equal(t, Size{1, 600}, got.Size)

	c.PixelCeiling = 599
	_, err = Solve(Size{1, 1000}, c)
	assert.True(t, errors.Is(err, errors.ErrOversizeForPlatform))
}

func TestSolveOversizeForPlatform(t *testing.T) {
	c := Constraints{MaxWidth: 5000, MaxHeight: 4000, PixelCeiling: WebKitPixelCeiling}

	_, err := Solve(Size{5000, 4000}, c)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOversizeForPlatform))

	c.PixelCeiling = 0
	got, err := Solve(Size{5000, 4000}, c)
	require.NoError(t, err)
	assert.Equal(t, Size{5000, 4000}, got.Size)
}

func TestSolveRejectsEmptySource(t *testing.T) {
	_, err := Solve(Size{0, 10}, defaults())
	assert.True(t, errors.Is(err, errors.ErrEmptySourceBuffer))
}

func TestTargetHeight(t *testing.T) {
	assert.Equal(t, 450, TargetHeight(900, 0.5, 800))
	assert.Equal(t, 600, TargetHeight(1300, 0.5, 600))
	assert.Equal(t, 0, TargetHeight(1, 0.5, 600))
}

func TestPreShrink(t *testing.T) {
	got, ok := PreShrink(Size{8000, 4000}, WebKitPixelCeiling)

	require.True(t, ok)
	assert.LessOrEqual(t, got.Pixels(), WebKitPixelCeiling)
	assert.Equal(t, 5792, got.Width)
	assert.Equal(t, 2896, got.Height)

	same, ok := PreShrink(Size{100, 100}, WebKitPixelCeiling)
	assert.False(t, ok)
	assert.Equal(t, Size{100, 100}, same)

	_, ok = PreShrink(Size{8000, 4000}, 0)
	assert.False(t, ok)
}
