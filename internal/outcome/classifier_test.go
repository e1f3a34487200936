package outcome

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/ledger"
)

func hourlyBars(n int, base time.Time, closeFn func(i int) float64) []core.Bar {
	bars := make([]core.Bar, n)
	for i := 0; i < n; i++ {
		c := closeFn(i)
		bars[i] = core.Bar{
			InstrumentID: "BTC", TF: core.TF1h, TS: base.Add(time.Duration(i) * time.Hour),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		}
	}
	return bars
}

func TestClipRRClampsToPlusMinusTen(t *testing.T) {
	assert.Equal(t, RRClip, clipRR(50))
	assert.Equal(t, -RRClip, clipRR(-50))
	assert.Equal(t, 2.0, clipRR(2))
}

func TestClipRRHandlesNonFiniteValues(t *testing.T) {
	assert.Equal(t, RRClip, clipRR(math.Inf(1)))
	assert.Equal(t, -RRClip, clipRR(math.Inf(-1)))
	assert.Equal(t, -RRClip, clipRR(math.NaN()))
}

func TestMaxDrawdownTracksLowestPriceInWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := hourlyBars(5, base, func(i int) float64 {
		return []float64{100, 90, 80, 95, 100}[i]
	})
	dd := maxDrawdown(bars, 100, base, base.Add(4*time.Hour))
	assert.InDelta(t, 0.21, dd, 0.01) // low=79 at i=2 -> (100-79)/100
}

func TestMaxDrawdownNeverNegative(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := hourlyBars(3, base, func(i int) float64 { return 100 + float64(i)*10 })
	dd := maxDrawdown(bars, 100, base, base.Add(2*time.Hour))
	assert.GreaterOrEqual(t, dd, 0.0)
}

func TestTimeToPaybackReturnsUndefinedSentinelWhenNeverReached(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := hourlyBars(5, base, func(i int) float64 { return 100 })
	payback := timeToPayback(bars, 100, 0.05, base)
	assert.True(t, math.IsInf(payback, 1))
	assert.Equal(t, TimeToPaybackUndefined, payback)
}

func TestTimeToPaybackFindsFirstBarTouchingTarget(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := hourlyBars(5, base, func(i int) float64 { return 100 + float64(i) })
	payback := timeToPayback(bars, 100, 0.05, base)
	assert.Greater(t, payback, 0.0)
	assert.False(t, math.IsInf(payback, 1))
}

func TestTimeToPaybackUsesTradesOwnMaxDDAsTheRiskUnit(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// a 1-point-per-bar rally off a 100 entry; each bar's High is close+1, so
	// +10% (110) is first touched at i=9.
	bars := hourlyBars(15, base, func(i int) float64 { return 100 + float64(i) })

	// a tight 1% risk unit (1R = 1) is touched immediately at i=0 (High 101).
	tight := timeToPayback(bars, 100, 0.01, base)
	// a wide 8% risk unit (1R = 8) is only touched once price reaches 108.
	wide := timeToPayback(bars, 100, 0.08, base)

	assert.Less(t, tight, wide, "a larger realised max_dd must demand a proportionally larger move before payback")
}

func TestClassifyProducesBoundedTradeSummary(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := hourlyBars(20, base, func(i int) float64 {
		return 100 + float64(i)*2
	})

	p := &ledger.Position{
		ID:       "pos-1",
		Entries:  []ledger.Entry{{Timestamp: base, Price: 100, Size: 1}},
		OpenedAt: base,
		Exit:     &ledger.Exit{Timestamp: base.Add(10 * time.Hour), Price: 120, Reason: "trim"},
	}

	summary := Classify(p, bars, "scope-key", ContextSnapshot{})
	require.NotNil(t, summary)
	assert.GreaterOrEqual(t, summary.RR, -RRClip)
	assert.LessOrEqual(t, summary.RR, RRClip)
	assert.Equal(t, "pos-1", summary.PositionID)
}

func TestClassifyZeroEntryPriceNeverDivides(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := hourlyBars(5, base, func(i int) float64 { return 100 })
	p := &ledger.Position{OpenedAt: base}
	summary := Classify(p, bars, "k", ContextSnapshot{})
	assert.Equal(t, 0.0, summary.RR)
}
