package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/infra/breakers"
)

func TestDefaultEngineConfigPassesValidate(t *testing.T) {
	cfg := DefaultEngineConfig()
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, "default", cfg.Profile)
}

func TestSaveAndLoadEngineConfigRoundTrip(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Signature.EntryGateTS = 0.42
	cfg.Lesson.NMin = 17

	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, SaveEngineConfig(cfg, path))

	loaded, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, loaded.Signature.EntryGateTS, 1e-9)
	assert.Equal(t, 17, loaded.Lesson.NMin)
	assert.Equal(t, cfg.Appetite, loaded.Appetite)
}

func TestLoadEngineConfigMissingFileErrors(t *testing.T) {
	_, err := LoadEngineConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadEngineConfigInvalidYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, writeFile(path, "profile: [this is not: valid: yaml"))

	_, err := LoadEngineConfig(path)
	assert.Error(t, err)
}

func TestValidateFlagsOutOfRangeSignatureGates(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Signature.EntryGateTS = 1.5
	cfg.Signature.TrimGateOX = -0.1
	cfg.Signature.AddGateDX = 2.0

	errs := cfg.Validate()
	assert.Len(t, errs, 3)
}

func TestValidateFlagsOutOfRangeLessonCoefficients(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Lesson.DeltaClip = 0
	cfg.Lesson.EpochChangeCap = 1.5

	errs := cfg.Validate()
	assert.Len(t, errs, 2)
}

func TestValidateFlagsNonPositiveCutPressureThreshold(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Appetite.CutPressureThreshold = 0

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "cut_pressure_threshold")
}

func TestSignatureConfigMergesOnlyGateFields(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Signature.EntryGateTS = 0.77

	sigCfg := cfg.SignatureConfig()
	assert.InDelta(t, 0.77, sigCfg.EntryGateTS, 1e-9)
	// every other field still matches signature.DefaultConfig's documented defaults.
	assert.InDelta(t, cfg.Signature.TrimGateOX, sigCfg.TrimGateOX, 1e-9)
	assert.InDelta(t, cfg.Signature.AddGateDX, sigCfg.AddGateDX, 1e-9)
	assert.InDelta(t, cfg.Signature.HaloATRFactor, sigCfg.HaloATRFactor, 1e-9)
}

func TestAppetiteConfigMergesOnlyOperatorTunableFields(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Appetite.CutPressureThreshold = 9

	aptCfg := cfg.AppetiteConfig()
	assert.Equal(t, 9, aptCfg.CutPressureThreshold)
	assert.InDelta(t, cfg.Appetite.AgeBoostFullAfterHours, aptCfg.AgeBoostFullAfterHours, 1e-9)
}

func TestLessonConfigMergesAllDocumentedFields(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Lesson.NMin = 30
	cfg.Lesson.EdgeMin = 0.6
	cfg.Lesson.MaxEntryDelayBars = 4

	lesCfg := cfg.LessonConfig()
	assert.Equal(t, 30, lesCfg.NMin)
	assert.InDelta(t, 0.6, lesCfg.EdgeMin, 1e-9)
	assert.Equal(t, 4, lesCfg.MaxEntryDelayBars)
}

func TestBreakerConfigMergesOnlyOverriddenFields(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Breaker.ConsecutiveFailureThreshold = 5

	brkCfg := cfg.BreakerConfig()
	assert.Equal(t, uint32(5), brkCfg.ConsecutiveFailureThreshold)
	assert.Equal(t, 60*time.Second, brkCfg.Interval)
	assert.Equal(t, 60*time.Second, brkCfg.Timeout)
	assert.InDelta(t, 0.05, brkCfg.FailureRatio, 1e-9)
}

func TestBreakerConfigZeroProfileFallsBackToDefaults(t *testing.T) {
	cfg := &EngineConfig{}
	brkCfg := cfg.BreakerConfig()
	assert.Equal(t, breakers.DefaultConfig(), brkCfg)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0644)
}
