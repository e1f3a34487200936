// Package ledger implements the Position Ledger (spec §4.4): one
// independent Position per (Instrument, Timeframe), entries/trims/exits,
// with cross-timeframe influence forbidden (I2, no merging).
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core/errs"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/state"
)

// Status is the Position lifecycle (spec §3).
type Status int

const (
	StatusOpen Status = iota
	StatusClosed
)

// Entry is one add to a Position.
type Entry struct {
	Timestamp time.Time
	Price     float64
	Size      float64
	Reason    string // the state transition or signal that triggered it
}

// Trim is one partial reduction of a Position.
type Trim struct {
	Timestamp time.Time
	Price     float64
	Fraction  float64 // fraction of current size removed
	Reason    string
}

// Exit closes a Position entirely.
type Exit struct {
	Timestamp time.Time
	Price     float64
	Reason    string
}

// Position is the per-(instrument, tf) book entry (spec §3).
type Position struct {
	ID           string
	InstrumentID string
	TF           core.Timeframe
	OpenedAt     time.Time
	Entries      []Entry
	Trims        []Trim
	Exit         *Exit
	Status       Status

	// lastEntryState is used to enforce "at most one entry per (state
	// transition, tf)" (spec §4.4).
	lastEntryState state.Value
}

// Size returns the current position size: sum of entries minus trims
// applied proportionally in order.
func (p *Position) Size() float64 {
	size := 0.0
	for _, e := range p.Entries {
		size += e.Size
	}
	for _, t := range p.Trims {
		size -= size * t.Fraction
	}
	return size
}

// AvgEntryPrice is the size-weighted average entry price.
func (p *Position) AvgEntryPrice() float64 {
	totalSize, totalCost := 0.0, 0.0
	for _, e := range p.Entries {
		totalSize += e.Size
		totalCost += e.Size * e.Price
	}
	if totalSize == 0 {
		return 0
	}
	return totalCost / totalSize
}

// Book holds exactly one open Position per (instrument, tf) at a time (I2).
type Book struct {
	open   map[string]*Position // key: instrumentID|tf
	closed []*Position
}

// NewBook creates an empty ledger book.
func NewBook() *Book {
	return &Book{open: make(map[string]*Position)}
}

func key(instrumentID string, tf core.Timeframe) string {
	return fmt.Sprintf("%s|%s", instrumentID, tf)
}

// Open returns the currently-open position for (instrument, tf), or nil.
func (b *Book) Open(instrumentID string, tf core.Timeframe) *Position {
	return b.open[key(instrumentID, tf)]
}

// OpenPosition opens a new Position. Returns ErrPositionAlreadyOpen if one is
// already open for this (instrument, tf) — I2 is enforced here, never
// silently merged.
func (b *Book) OpenPosition(instrumentID string, tf core.Timeframe, entry Entry, st state.Value) (*Position, error) {
	k := key(instrumentID, tf)
	if _, exists := b.open[k]; exists {
		return nil, fmt.Errorf("instrument %s tf %s: %w", instrumentID, tf, errs.ErrPositionAlreadyOpen)
	}
	p := &Position{
		ID:             uuid.NewString(),
		InstrumentID:   instrumentID,
		TF:             tf,
		OpenedAt:       entry.Timestamp,
		Entries:        []Entry{entry},
		Status:         StatusOpen,
		lastEntryState: st,
	}
	b.open[k] = p
	log.Info().Str("instrument", instrumentID).Str("tf", string(tf)).Str("position_id", p.ID).
		Float64("price", entry.Price).Msg("position opened")
	return p, nil
}

// AddEntry adds to an open position, enforced to at most one entry per
// (state transition, tf): calling twice for the same st without an
// intervening state change is a no-op that returns false.
func (b *Book) AddEntry(instrumentID string, tf core.Timeframe, entry Entry, st state.Value) (bool, error) {
	p := b.Open(instrumentID, tf)
	if p == nil {
		return false, fmt.Errorf("instrument %s tf %s: no open position", instrumentID, tf)
	}
	if p.lastEntryState == st {
		return false, nil
	}
	p.Entries = append(p.Entries, entry)
	p.lastEntryState = st
	log.Info().Str("instrument", instrumentID).Str("tf", string(tf)).Str("position_id", p.ID).
		Float64("price", entry.Price).Msg("position entry added")
	return true, nil
}

// Trim reduces an open position's size by the documented fraction for the
// triggering state (spec §4.4).
func (b *Book) Trim(instrumentID string, tf core.Timeframe, trim Trim) error {
	p := b.Open(instrumentID, tf)
	if p == nil {
		return fmt.Errorf("instrument %s tf %s: no open position", instrumentID, tf)
	}
	p.Trims = append(p.Trims, trim)
	log.Info().Str("instrument", instrumentID).Str("tf", string(tf)).Str("position_id", p.ID).
		Float64("fraction", trim.Fraction).Str("reason", trim.Reason).Msg("position trimmed")
	return nil
}

// ClosePosition closes and removes the open position for (instrument, tf),
// moving it to the closed set. Returns the closed Position for the Outcome
// Classifier to consume.
func (b *Book) ClosePosition(instrumentID string, tf core.Timeframe, exit Exit) (*Position, error) {
	k := key(instrumentID, tf)
	p, exists := b.open[k]
	if !exists {
		return nil, fmt.Errorf("instrument %s tf %s: no open position", instrumentID, tf)
	}
	p.Exit = &exit
	p.Status = StatusClosed
	delete(b.open, k)
	b.closed = append(b.closed, p)
	log.Info().Str("instrument", instrumentID).Str("tf", string(tf)).Str("position_id", p.ID).
		Str("reason", exit.Reason).Msg("position closed")
	return p, nil
}

// GlobalExitLiquidate closes the open position for (instrument, tf) with
// reason "global_exit" (spec scenario 2: "all open positions for that tf").
// Only the triggering timeframe's state machine transitioned to the global
// exit sentinel, so only its position is liquidated — the other three
// timeframes' positions are untouched (spec §4.4: cross-timeframe influence
// occurs only via the Learning Core, never by merging positions; I2).
// A nil return means no position was open on this tf — not an error.
func (b *Book) GlobalExitLiquidate(instrumentID string, tf core.Timeframe, price float64, ts time.Time) *Position {
	if b.Open(instrumentID, tf) == nil {
		return nil
	}
	cp, _ := b.ClosePosition(instrumentID, tf, Exit{Timestamp: ts, Price: price, Reason: "global_exit"})
	return cp
}

// Closed returns all closed positions (for tests/introspection).
func (b *Book) Closed() []*Position { return b.closed }
