package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
)

func TestMeshLazilyCreatesInstrumentsPerID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMesh(func(id string) *Instrument { return newTestInstrument(id) }, 8)
	defer m.Close()

	assert.Nil(t, m.Instrument("BTC-USD"))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Submit(ctx, barAt(core.TF1h, base, 0, 100), "k", base)

	require.Eventually(t, func() bool {
		return m.Instrument("BTC-USD") != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMeshRoutesBarsToOwningInstrumentOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMesh(func(id string) *Instrument { return newTestInstrument(id) }, 8)
	defer m.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Submit(ctx, barAt(core.TF1h, base, 0, 100), "k", base)
	ethBar := core.Bar{InstrumentID: "ETH-USD", TF: core.TF1h, TS: base, Open: 10, High: 11, Low: 9, Close: 10, Volume: 10}
	m.Submit(ctx, ethBar, "k", base)

	require.Eventually(t, func() bool {
		return m.Instrument("BTC-USD") != nil && m.Instrument("ETH-USD") != nil
	}, 2*time.Second, 10*time.Millisecond)

	btc := m.Instrument("BTC-USD")
	eth := m.Instrument("ETH-USD")
	require.Eventually(t, func() bool {
		btcSt, ok1 := btc.Streams[core.TF1h]
		ethSt, ok2 := eth.Streams[core.TF1h]
		return ok1 && ok2 && btcSt.buf.Len() == 1 && ethSt.buf.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 100.0, btc.streamFor(core.TF1h).buf.Latest().Close)
	assert.Equal(t, 10.0, eth.streamFor(core.TF1h).buf.Latest().Close)
}

func TestMeshInstrumentsSnapshotsAllLiveWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMesh(func(id string) *Instrument { return newTestInstrument(id) }, 8)
	defer m.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Submit(ctx, barAt(core.TF1h, base, 0, 100), "k", base)
	m.Submit(ctx, core.Bar{InstrumentID: "ETH-USD", TF: core.TF1h, TS: base, Open: 10, High: 11, Low: 9, Close: 10, Volume: 10}, "k", base)

	require.Eventually(t, func() bool {
		return len(m.Instruments()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMeshCloseDrainsWorkers(t *testing.T) {
	ctx := context.Background()
	m := NewMesh(func(id string) *Instrument { return newTestInstrument(id) }, 8)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Submit(ctx, barAt(core.TF1h, base, 0, 100), "k", base)

	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after workers drained their queues")
	}
}
