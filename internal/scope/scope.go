// Package scope builds the Pattern Aggregator's scope key (spec §4.7):
// "module.family.state.motif" cross-joined with the ten context dimensions.
// It is split out from internal/learn so both the Outcome Classifier and
// the Pattern Aggregator can depend on the key format without depending on
// each other.
package scope

// Key is "module.family.state.motif" cross-joined with the ten context
// dimensions, encoded as a stable string usable directly as a map, SQL, or
// Redis key.
type Key string

// Dimensions are the ten context dimensions a scope key cross-joins with
// the motif (spec §4.7).
type Dimensions struct {
	MacroPhase   string
	MesoPhase    string
	MicroPhase   string
	BucketLeader bool
	BucketRank   int
	MarketFamily string
	Bucket       string
	Timeframe    string
	AMode        string
	EMode        string
}

// Build constructs the scope key string for a motif plus its context
// dimensions. Two identical Dimensions values always produce the same key
// regardless of construction order.
func Build(module, family, state, motif string, d Dimensions) Key {
	return Key(module + "." + family + "." + state + "." + motif +
		"|macro=" + d.MacroPhase +
		"|meso=" + d.MesoPhase +
		"|micro=" + d.MicroPhase +
		"|leader=" + boolStr(d.BucketLeader) +
		"|rank=" + itoa(d.BucketRank) +
		"|mfam=" + d.MarketFamily +
		"|bucket=" + d.Bucket +
		"|tf=" + d.Timeframe +
		"|amode=" + d.AMode +
		"|emode=" + d.EMode)
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
