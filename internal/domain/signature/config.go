package signature

// Config holds the documented weights and gates for TS/OX/DX/EDX (spec
// §4.3: "implementer must expose them as configuration and use the
// documented defaults"). internal/config loads the four gate/halo fields
// from YAML; the TS/OX/DX/EDX weights come from DefaultConfig.
type Config struct {
	TS TSConfig `yaml:"ts"`
	OX OXConfig `yaml:"ox"`
	DX DXConfig `yaml:"dx"`
	EDX EDXConfig `yaml:"edx"`

	EntryGateTS   float64 `yaml:"entry_gate_ts"`   // 0.58
	TrimGateOX    float64 `yaml:"trim_gate_ox"`     // tau_trim; the trim gate compares appetite E against it
	AddGateDX     float64 `yaml:"add_gate_dx"`      // tau_dx
	HaloATRFactor float64 `yaml:"halo_atr_factor"`  // 0.5 * ATR, per SPEC_FULL Open Question decision
}

// TSConfig: TS = 0.6*sigma(rsi_slope_10, k=0.5) + 0.4*sigma(adx_slope_10, k=0.3),
// gated to 0 when ADX < ADXGate.
type TSConfig struct {
	RSIWeight float64 `yaml:"rsi_weight"` // 0.6
	RSIK      float64 `yaml:"rsi_k"`      // 0.5
	ADXWeight float64 `yaml:"adx_weight"` // 0.4
	ADXK      float64 `yaml:"adx_k"`      // 0.3
	ADXGate   float64 `yaml:"adx_gate"`   // 18.0, strict <
}

// OXConfig weights the overextension components (spec §4.3 Appendix A).
type OXConfig struct {
	RailWeight       float64 `yaml:"rail_weight"`
	ExpansionWeight  float64 `yaml:"expansion_weight"`
	ATRSurgeWeight   float64 `yaml:"atr_surge_weight"`
	FragilityWeight  float64 `yaml:"fragility_weight"`
	EDXBoostInS3     float64 `yaml:"edx_boost_in_s3"`
}

// DXConfig: DX = exp(-3x) * compression * exhaustion * relief * curl.
type DXConfig struct {
	Decay          float64 `yaml:"decay"`           // 3.0
	ExhaustionK    float64 `yaml:"exhaustion_k"`    // 1.0, sigma(-vol_z/k)
}

// EDXConfig weights the five decay components (sum to 1.0, spec §4.3).
type EDXConfig struct {
	SlowFieldMomentum   float64 `yaml:"slow_field_momentum"`   // 0.30
	StructureFailure    float64 `yaml:"structure_failure"`     // 0.25
	ParticipationDecay  float64 `yaml:"participation_decay"`   // 0.20
	EMACompression      float64 `yaml:"ema_compression"`       // 0.10
	DecelerationBreadth float64 `yaml:"deceleration_breadth"`  // 0.15
}

// DefaultConfig returns the documented defaults from spec §4.3/§9.
func DefaultConfig() Config {
	return Config{
		TS: TSConfig{RSIWeight: 0.6, RSIK: 0.5, ADXWeight: 0.4, ADXK: 0.3, ADXGate: 18.0},
		OX: OXConfig{RailWeight: 0.35, ExpansionWeight: 0.25, ATRSurgeWeight: 0.20, FragilityWeight: 0.20, EDXBoostInS3: 0.15},
		DX: DXConfig{Decay: 3.0, ExhaustionK: 1.0},
		EDX: EDXConfig{
			SlowFieldMomentum:   0.30,
			StructureFailure:    0.25,
			ParticipationDecay:  0.20,
			EMACompression:      0.10,
			DecelerationBreadth: 0.15,
		},
		EntryGateTS:   0.58,
		TrimGateOX:    0.70,
		AddGateDX:     0.60,
		HaloATRFactor: 0.5,
	}
}
