package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/assert"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
# mnist run
data_dir: /data/mnist
batch_size: 64
max_steps: 500
log_every: 0
`)
	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.DataDir, "/data/mnist")
	assert.Equal(t, cfg.BatchSize, 64)
	assert.Equal(t, cfg.MaxSteps, 500)
	assert.Equal(t, cfg.LogEvery, 100)
	assert.Equal(t, cfg.ValidationSize, 5000)
	assert.Equal(t, cfg.LearningRate, 0.01)
	assert.Equal(t, cfg.Momentum, 0.9)
	assert.Assert(t, cfg.EvalValidation)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "data_dir: /x\nnum_workers: 4\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "num_workers")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "open config")
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/a"
	cfg.ApplyOverrides(Overrides{DataDir: "/b", BatchSize: 128, MaxSteps: 10, LogDevicePlacement: true})
	assert.Equal(t, cfg.DataDir, "/b")
	assert.Equal(t, cfg.BatchSize, 128)
	assert.Equal(t, cfg.MaxSteps, 10)
	assert.Equal(t, cfg.LogEvery, 100)
	assert.Assert(t, cfg.LogDevicePlacement)
}

func TestApplyOverridesExplicitZero(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/a"
	cfg.MaxSteps = 500
	cfg.LogDevicePlacement = true

	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	steps := fs.Int("max-steps", 0, "")
	validation := fs.Int("validation-size", 0, "")
	every := fs.Int("log-frequency", 0, "")
	placement := fs.Bool("log-device-placement", false, "")
	batch := fs.Int("batch-size", 0, "")
	assert.NilError(t, fs.Parse([]string{"-max-steps=0", "-validation-size=0", "-log-frequency=7", "-log-device-placement=false"}))

	set := SetKeys(fs, map[string]string{"log-frequency": "log_every"})
	assert.DeepEqual(t, set, map[string]bool{
		"max_steps": true, "validation_size": true, "log_every": true, "log_device_placement": true,
	})

	cfg.ApplyOverrides(Overrides{
		MaxSteps:           *steps,
		ValidationSize:     *validation,
		LogEvery:           *every,
		LogDevicePlacement: *placement,
		BatchSize:          *batch,
		Set:                set,
	})
	assert.Equal(t, cfg.MaxSteps, 0)
	assert.Equal(t, cfg.ValidationSize, 0)
	assert.Equal(t, cfg.LogEvery, 7)
	assert.Assert(t, !cfg.LogDevicePlacement)
	assert.Equal(t, cfg.BatchSize, 60)
	assert.NilError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		mutate func(*Config)
		want   string
	}{
		{func(c *Config) { c.DataDir = "" }, "data_dir"},
		{func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{func(c *Config) { c.MaxSteps = -1 }, "max_steps"},
		{func(c *Config) { c.TrainRecords = 5060 }, "must be < train_records"},
		{func(c *Config) { c.LearningRate = 0 }, "learning_rate"},
		{func(c *Config) { c.Momentum = 1 }, "momentum"},
		{func(c *Config) { c.DecayRate = 1.5 }, "decay_rate"},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.DataDir = "/data"
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("expected error containing %q, got %v", tc.want, err)
		}
	}
}
