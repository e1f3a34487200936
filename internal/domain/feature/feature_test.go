package feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
)

func fillBuffer(n int, priceAt func(i int) float64) *core.RingBuffer {
	buf := core.NewRingBuffer(core.MinWarmupBars)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p := priceAt(i)
		_ = buf.Append(core.Bar{
			InstrumentID: "BTC-USD", TF: core.TF1h, TS: base.Add(time.Duration(i) * time.Hour),
			Open: p - 0.5, High: p + 1, Low: p - 1, Close: p, Volume: 1000 + float64(i),
		})
	}
	return buf
}

func TestBuildReturnsInsufficientDataBelowWarmup(t *testing.T) {
	buf := fillBuffer(core.MinWarmupBars-1, func(i int) float64 { return 100 + float64(i) })
	_, err := Build(buf, -1)
	assert.Error(t, err)
}

func TestBuildSucceedsAtWarmupThreshold(t *testing.T) {
	buf := fillBuffer(core.MinWarmupBars, func(i int) float64 { return 100 + float64(i) })
	fs, err := Build(buf, -1)
	require.NoError(t, err)

	assert.Equal(t, "BTC-USD", fs.InstrumentID)
	assert.Equal(t, core.TF1h, fs.TF)
	assert.Greater(t, fs.EMA.EMA20, 0.0)
	assert.GreaterOrEqual(t, fs.RSI, 0.0)
	assert.LessOrEqual(t, fs.RSI, 100.0)
	assert.GreaterOrEqual(t, fs.ADX, 0.0)
}

func TestBuildNegativeAnchorIdxAnchorsAtOldestBar(t *testing.T) {
	buf := fillBuffer(core.MinWarmupBars, func(i int) float64 { return 100 + float64(i)*0.1 })
	fs, err := Build(buf, -1)
	require.NoError(t, err)
	// never entered S3: AVWAP must be a finite, non-zero value anchored at
	// the oldest retained bar rather than panicking on a negative index.
	assert.Greater(t, fs.AVWAP, 0.0)
}

func TestBuildOutOfRangeAnchorIdxClampsToZero(t *testing.T) {
	buf := fillBuffer(core.MinWarmupBars, func(i int) float64 { return 100 + float64(i)*0.1 })
	fsNeg, err := Build(buf, -1)
	require.NoError(t, err)
	fsOOB, err := Build(buf, buf.Len()+100)
	require.NoError(t, err)
	assert.InDelta(t, fsNeg.AVWAP, fsOOB.AVWAP, 1e-9, "an out-of-range anchor must clamp identically to the default")
}

func TestBuildVolZReflectsRecentVolumeSpike(t *testing.T) {
	buf := core.NewRingBuffer(core.MinWarmupBars)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < core.MinWarmupBars; i++ {
		vol := 1000.0
		if i == core.MinWarmupBars-1 {
			vol = 100000.0 // sharp spike on the latest bar
		}
		_ = buf.Append(core.Bar{
			InstrumentID: "BTC-USD", TF: core.TF1h, TS: base.Add(time.Duration(i) * time.Hour),
			Open: 99.5, High: 101, Low: 99, Close: 100, Volume: vol,
		})
	}
	fs, err := Build(buf, -1)
	require.NoError(t, err)
	assert.Greater(t, fs.VolZ, 1.0, "a sharp volume spike must register a positive z-score")
}

func TestPriceReturnsLatestClose(t *testing.T) {
	buf := fillBuffer(5, func(i int) float64 { return 100 + float64(i) })
	fs := FeatureSet{}
	assert.InDelta(t, 104.0, fs.Price(buf), 1e-9)
}
