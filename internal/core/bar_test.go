package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core/errs"
)

func mkBar(ts time.Time, close float64) Bar {
	return Bar{InstrumentID: "BTC", TF: TF1h, TS: ts, Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func TestRingBufferAppendOrdering(t *testing.T) {
	r := NewRingBuffer(10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Append(mkBar(base, 100)))
	require.NoError(t, r.Append(mkBar(base.Add(time.Hour), 101)))

	t.Run("duplicate_timestamp_rejected", func(t *testing.T) {
		err := r.Append(mkBar(base.Add(time.Hour), 102))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrDuplicate))
	})

	t.Run("out_of_order_rejected", func(t *testing.T) {
		err := r.Append(mkBar(base, 99))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrOutOfOrder))
	})

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 101.0, r.Latest().Close)
}

func TestRingBufferEvictsOldestOnceFull(t *testing.T) {
	r := NewRingBuffer(MinWarmupBars) // capacity floors at MinWarmupBars
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cap := r.Cap()
	for i := 0; i < cap+5; i++ {
		require.NoError(t, r.Append(mkBar(base.Add(time.Duration(i)*time.Hour), float64(i))))
	}

	assert.Equal(t, cap, r.Len())
	// the oldest 5 bars (closes 0..4) were evicted; the oldest retained is close=5.
	assert.Equal(t, 5.0, r.At(0).Close)
	assert.Equal(t, float64(cap+4), r.Latest().Close)
}

func TestRingBufferWarmupBoundary(t *testing.T) {
	r := NewRingBuffer(MinWarmupBars)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < MinWarmupBars-1; i++ {
		require.NoError(t, r.Append(mkBar(base.Add(time.Duration(i)*time.Hour), float64(i))))
	}
	assert.False(t, r.IsWarm(), "349 bars must not be warm (spec §8 boundary)")

	require.NoError(t, r.Append(mkBar(base.Add(time.Duration(MinWarmupBars-1)*time.Hour), 349)))
	assert.True(t, r.IsWarm(), "350 bars must be warm (spec §8 boundary)")
}

func TestRingBufferSlice(t *testing.T) {
	r := NewRingBuffer(10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Append(mkBar(base.Add(time.Duration(i)*time.Hour), float64(i))))
	}

	s := r.Slice(3)
	require.Len(t, s, 3)
	assert.Equal(t, []float64{2, 3, 4}, []float64{s[0].Close, s[1].Close, s[2].Close})

	// asking for more than available clamps to Len().
	full := r.Slice(100)
	assert.Len(t, full, 5)
}

func TestCheckGapRejectsLargeGaps(t *testing.T) {
	r := NewRingBuffer(10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Append(mkBar(base, 100)))

	t.Run("small_gap_ok", func(t *testing.T) {
		assert.NoError(t, r.CheckGap(mkBar(base.Add(2*time.Hour), 101), 3))
	})

	t.Run("gap_too_large_rejected", func(t *testing.T) {
		err := r.CheckGap(mkBar(base.Add(10*time.Hour), 101), 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrGapTooLarge))
	})

	t.Run("empty_buffer_never_gaps", func(t *testing.T) {
		empty := NewRingBuffer(10)
		assert.NoError(t, empty.CheckGap(mkBar(base.Add(1000*time.Hour), 1), 3))
	})
}
