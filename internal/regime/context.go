// Package regime models the external Context input (spec §6): macro/meso/
// micro market phase, bucket/family metadata, and the A/E mode the Appetite
// Calculator and Pattern Aggregator both key off of. Adapted from the
// teacher's regime detector: a cached classification with an explicit
// staleness fallback instead of a hard failure.
package regime

import "time"

// Phase is a coarse market-condition label. The engine treats phase values
// as opaque strings from the external regime feed except for the sentinel
// Unknown, which every refresh layer falls back to once stale (spec §6:
// "stale context falls back to Unknown").
type Phase string

const Unknown Phase = "unknown"

// Mode is the documented A_mode/E_mode selector (spec §4.7 scope dimensions).
type Mode string

// MaxContextAge is how long a Context stays valid before a consumer must
// treat it as Unknown (spec §6: "refreshed at least every hour").
const MaxContextAge = time.Hour

// Context is the full external regime snapshot (spec §6).
type Context struct {
	MacroPhase   Phase
	MesoPhase    Phase
	MicroPhase   Phase
	Bucket       string
	Family       string
	AMode        Mode
	EMode        Mode
	BucketLeader bool
	BucketRank   int
	Timeframe    string
	RefreshedAt  time.Time
}

// Fresh reports whether this Context is still within MaxContextAge of now.
func (c Context) Fresh(now time.Time) bool {
	return now.Sub(c.RefreshedAt) <= MaxContextAge
}

// Resolve returns c unchanged if fresh, otherwise a context with every
// phase/mode field downgraded to Unknown while retaining identity fields
// (Bucket/Family/Timeframe) so scope keys remain stable even when the
// regime feed itself is stale.
func (c Context) Resolve(now time.Time) Context {
	if c.Fresh(now) {
		return c
	}
	stale := c
	stale.MacroPhase = Unknown
	stale.MesoPhase = Unknown
	stale.MicroPhase = Unknown
	stale.AMode = Mode(Unknown)
	stale.EMode = Mode(Unknown)
	return stale
}

// Cache holds the last Context per instrument family/bucket pairing,
// mirroring the teacher's RegimeDetector 15-minute decision cache — here
// the cache just remembers the latest push from the external feed rather
// than recomputing a classification, since the feed is an external
// collaborator (spec §1).
type Cache struct {
	byKey map[string]Context
}

// NewCache creates an empty Context cache.
func NewCache() *Cache {
	return &Cache{byKey: make(map[string]Context)}
}

// Update records a freshly-refreshed Context for key (typically
// bucket+family).
func (c *Cache) Update(key string, ctx Context) {
	c.byKey[key] = ctx
}

// Get returns the Context for key resolved against staleness, or the
// all-Unknown zero value if the key has never been refreshed.
func (c *Cache) Get(key string, now time.Time) Context {
	ctx, ok := c.byKey[key]
	if !ok {
		return Context{MacroPhase: Unknown, MesoPhase: Unknown, MicroPhase: Unknown, AMode: Mode(Unknown), EMode: Mode(Unknown)}
	}
	return ctx.Resolve(now)
}
