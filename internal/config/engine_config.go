// Package config loads the engine's tunable coefficients from YAML,
// adapted from the teacher's GuardsConfig loader (same
// ioutil.ReadFile/yaml.Unmarshal shape and a ValidateProfile-style range
// check), repurposed from regime guard thresholds to signature gate,
// appetite, lesson and breaker coefficients. There is no profile selection:
// one file holds one configuration.
package config

import (
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/infra/breakers"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/appetite"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/signature"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
)

// EngineConfig is the root of the engine's YAML-loaded configuration: the
// operator-tunable subset of the Signature Engine, Appetite Calculator,
// Lesson Builder and breaker coefficients, plus a profile name for operator
// bookkeeping. Coefficients not listed here keep their Go defaults.
type EngineConfig struct {
	Profile   string           `yaml:"profile"`
	Signature SignatureProfile `yaml:"signature"`
	Appetite  AppetiteProfile  `yaml:"appetite"`
	Lesson    LessonProfile    `yaml:"lesson"`
	Breaker   BreakerProfile   `yaml:"breaker"`
}

// SignatureProfile carries the gate thresholds and discount-zone halo of
// signature.Config (the per-term weights stay at their defaults), YAML-addressable so an
// operator can retune entry/trim/add gates without a rebuild.
type SignatureProfile struct {
	EntryGateTS   float64 `yaml:"entry_gate_ts"`
	TrimGateOX    float64 `yaml:"trim_gate_ox"`
	AddGateDX     float64 `yaml:"add_gate_dx"`
	HaloATRFactor float64 `yaml:"halo_atr_factor"`
}

// AppetiteProfile carries the Appetite Calculator's tunable thresholds not
// already covered by appetite.Config's per-phase weight maps (those stay
// Go-native defaults; only the scalar knobs an operator would plausibly
// retune live in YAML).
type AppetiteProfile struct {
	AgeBoostFullAfterHours float64 `yaml:"age_boost_full_after_hours"`
	CutPressureThreshold   int     `yaml:"cut_pressure_threshold"`
}

// LessonProfile carries the Lesson Builder's bounded-update coefficients
// (spec I4), YAML-addressable for the same reason as SignatureProfile.
type LessonProfile struct {
	LearningRate      float64 `yaml:"learning_rate"`
	EdgeScale         float64 `yaml:"edge_scale"`
	DeltaClip         float64 `yaml:"delta_clip"`
	EpochChangeCap    float64 `yaml:"epoch_change_cap"`
	NMin              int     `yaml:"n_min"`
	EdgeMin           float64 `yaml:"edge_min"`
	MaxEntryDelayBars int     `yaml:"max_entry_delay_bars"`
}

// BreakerProfile carries the Pattern Aggregator's per-key write-contention
// breaker tuning (spec §5: "PerKeyLockContention -> retried with backoff"),
// YAML-addressable for the same reason as every other operator-tunable
// coefficient here rather than hardcoded in infra/breakers.
type BreakerProfile struct {
	IntervalSeconds             int     `yaml:"interval_seconds"`
	TimeoutSeconds              int     `yaml:"timeout_seconds"`
	ConsecutiveFailureThreshold int     `yaml:"consecutive_failure_threshold"`
	MinRequests                 int     `yaml:"min_requests"`
	FailureRatio                float64 `yaml:"failure_ratio"`
}

// LoadEngineConfig loads EngineConfig from a YAML file.
func LoadEngineConfig(configPath string) (*EngineConfig, error) {
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse engine config YAML: %w", err)
	}

	return &cfg, nil
}

// SaveEngineConfig writes cfg back to configPath.
func SaveEngineConfig(cfg *EngineConfig, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal engine config: %w", err)
	}
	if err := ioutil.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write engine config: %w", err)
	}
	return nil
}

// Validate checks the loaded profile against the same documented safety
// bounds the Signature/Lesson packages enforce by construction, so a
// misconfigured YAML file is caught at load time instead of silently
// producing out-of-range gates.
func (c *EngineConfig) Validate() []string {
	var errs []string

	if c.Signature.EntryGateTS < 0 || c.Signature.EntryGateTS > 1 {
		errs = append(errs, fmt.Sprintf("signature.entry_gate_ts %.3f outside [0,1]", c.Signature.EntryGateTS))
	}
	if c.Signature.TrimGateOX < 0 || c.Signature.TrimGateOX > 1 {
		errs = append(errs, fmt.Sprintf("signature.trim_gate_ox %.3f outside [0,1]", c.Signature.TrimGateOX))
	}
	if c.Signature.AddGateDX < 0 || c.Signature.AddGateDX > 1 {
		errs = append(errs, fmt.Sprintf("signature.add_gate_dx %.3f outside [0,1]", c.Signature.AddGateDX))
	}
	if c.Lesson.DeltaClip <= 0 || c.Lesson.DeltaClip > 1 {
		errs = append(errs, fmt.Sprintf("lesson.delta_clip %.3f outside (0,1]", c.Lesson.DeltaClip))
	}
	if c.Lesson.EpochChangeCap <= 0 || c.Lesson.EpochChangeCap > 1 {
		errs = append(errs, fmt.Sprintf("lesson.epoch_change_cap %.3f outside (0,1]", c.Lesson.EpochChangeCap))
	}
	if c.Appetite.CutPressureThreshold < 1 {
		errs = append(errs, fmt.Sprintf("appetite.cut_pressure_threshold %d must be >= 1", c.Appetite.CutPressureThreshold))
	}

	return errs
}

// SignatureConfig merges the YAML profile onto signature.DefaultConfig's
// per-term configs, since only the gate thresholds are operator-tunable.
func (c *EngineConfig) SignatureConfig() signature.Config {
	cfg := signature.DefaultConfig()
	cfg.EntryGateTS = c.Signature.EntryGateTS
	cfg.TrimGateOX = c.Signature.TrimGateOX
	cfg.AddGateDX = c.Signature.AddGateDX
	cfg.HaloATRFactor = c.Signature.HaloATRFactor
	return cfg
}

// AppetiteConfig merges the YAML profile onto appetite.DefaultConfig.
func (c *EngineConfig) AppetiteConfig() appetite.Config {
	cfg := appetite.DefaultConfig()
	cfg.AgeBoostFullAfterHours = c.Appetite.AgeBoostFullAfterHours
	cfg.CutPressureThreshold = c.Appetite.CutPressureThreshold
	return cfg
}

// LessonConfig merges the YAML profile onto learn.DefaultConfig.
func (c *EngineConfig) LessonConfig() learn.Config {
	cfg := learn.DefaultConfig()
	cfg.LearningRate = c.Lesson.LearningRate
	cfg.EdgeScale = c.Lesson.EdgeScale
	cfg.DeltaClip = c.Lesson.DeltaClip
	cfg.EpochChangeCap = c.Lesson.EpochChangeCap
	cfg.NMin = c.Lesson.NMin
	cfg.EdgeMin = c.Lesson.EdgeMin
	cfg.MaxEntryDelayBars = c.Lesson.MaxEntryDelayBars
	return cfg
}

// BreakerConfig merges the YAML profile onto breakers.DefaultConfig.
func (c *EngineConfig) BreakerConfig() breakers.Config {
	cfg := breakers.DefaultConfig()
	if c.Breaker.IntervalSeconds > 0 {
		cfg.Interval = time.Duration(c.Breaker.IntervalSeconds) * time.Second
	}
	if c.Breaker.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.Breaker.TimeoutSeconds) * time.Second
	}
	if c.Breaker.ConsecutiveFailureThreshold > 0 {
		cfg.ConsecutiveFailureThreshold = uint32(c.Breaker.ConsecutiveFailureThreshold)
	}
	if c.Breaker.MinRequests > 0 {
		cfg.MinRequests = uint32(c.Breaker.MinRequests)
	}
	if c.Breaker.FailureRatio > 0 {
		cfg.FailureRatio = c.Breaker.FailureRatio
	}
	return cfg
}

// DefaultEngineConfig returns the documented defaults as an EngineConfig,
// for a fresh install with no YAML file yet on disk.
func DefaultEngineConfig() *EngineConfig {
	sig := signature.DefaultConfig()
	apt := appetite.DefaultConfig()
	les := learn.DefaultConfig()
	brk := breakers.DefaultConfig()
	return &EngineConfig{
		Profile: "default",
		Signature: SignatureProfile{
			EntryGateTS:   sig.EntryGateTS,
			TrimGateOX:    sig.TrimGateOX,
			AddGateDX:     sig.AddGateDX,
			HaloATRFactor: sig.HaloATRFactor,
		},
		Appetite: AppetiteProfile{
			AgeBoostFullAfterHours: apt.AgeBoostFullAfterHours,
			CutPressureThreshold:   apt.CutPressureThreshold,
		},
		Lesson: LessonProfile{
			LearningRate:      les.LearningRate,
			EdgeScale:         les.EdgeScale,
			DeltaClip:         les.DeltaClip,
			EpochChangeCap:    les.EpochChangeCap,
			NMin:              les.NMin,
			EdgeMin:           les.EdgeMin,
			MaxEntryDelayBars: les.MaxEntryDelayBars,
		},
		Breaker: BreakerProfile{
			IntervalSeconds:             int(brk.Interval.Seconds()),
			TimeoutSeconds:              int(brk.Timeout.Seconds()),
			ConsecutiveFailureThreshold: int(brk.ConsecutiveFailureThreshold),
			MinRequests:                 int(brk.MinRequests),
			FailureRatio:                brk.FailureRatio,
		},
	}
}
