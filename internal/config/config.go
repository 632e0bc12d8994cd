package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	DataDir            string  `yaml:"data_dir"`
	TrainRecords       int     `yaml:"train_records"`
	TestRecords        int     `yaml:"test_records"`
	ValidationSize     int     `yaml:"validation_size"`
	BatchSize          int     `yaml:"batch_size"`
	MaxSteps           int     `yaml:"max_steps"`
	LogEvery           int     `yaml:"log_every"`
	EvalValidation     bool    `yaml:"eval_validation"`
	OutputDir          string  `yaml:"output_dir"`
	CleanOutputDir     bool    `yaml:"clean_output_dir"`
	LogFile            string  `yaml:"log_file"`
	LogDevicePlacement bool    `yaml:"log_device_placement"`
	Seed               int64   `yaml:"seed"`
	LearningRate       float64 `yaml:"learning_rate"`
	DecayRate          float64 `yaml:"decay_rate"`
	Momentum           float64 `yaml:"momentum"`
	WeightDecay        float64 `yaml:"weight_decay"`
	FineLabels         bool    `yaml:"fine_labels"`
}

// Overrides captures CLI supplied values. A zero value only applies when its
// key is listed in Set.
type Overrides struct {
	DataDir            string
	OutputDir          string
	LogFile            string
	BatchSize          int
	MaxSteps           int
	LogEvery           int
	ValidationSize     int
	Seed               int64
	LogDevicePlacement bool
	// Set holds the yaml keys given explicitly on the command line.
	Set map[string]bool
}

// SetKeys reports the flags visited on fs as yaml keys. Flag names map by
// replacing dashes with underscores unless rename lists them.
func SetKeys(fs *flag.FlagSet, rename map[string]string) map[string]bool {
	keys := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		key, ok := rename[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		keys[key] = true
	})
	return keys
}

func (o Overrides) given(key string, nonZero bool) bool {
	return nonZero || o.Set[key]
}

// Default returns the settings of the MNIST tutorial run.
func Default() *Config {
	return &Config{
		ValidationSize: 5000,
		BatchSize:      60,
		LogEvery:       100,
		EvalValidation: true,
		Seed:           42,
		LearningRate:   0.01,
		DecayRate:      0.95,
		Momentum:       0.9,
		WeightDecay:    5e-4,
		FineLabels:     true,
	}
}

// Load reads and validates a Config from YAML. Keys absent from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero or explicitly set override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.given("data_dir", o.DataDir != "") {
		c.DataDir = o.DataDir
	}
	if o.given("output_dir", o.OutputDir != "") {
		c.OutputDir = o.OutputDir
	}
	if o.given("log_file", o.LogFile != "") {
		c.LogFile = o.LogFile
	}
	if o.given("batch_size", o.BatchSize > 0) {
		c.BatchSize = o.BatchSize
	}
	if o.given("max_steps", o.MaxSteps > 0) {
		c.MaxSteps = o.MaxSteps
	}
	if o.given("log_every", o.LogEvery > 0) {
		c.LogEvery = o.LogEvery
	}
	if o.given("validation_size", o.ValidationSize > 0) {
		c.ValidationSize = o.ValidationSize
	}
	if o.given("seed", o.Seed != 0) {
		c.Seed = o.Seed
	}
	if o.given("log_device_placement", o.LogDevicePlacement) {
		c.LogDevicePlacement = o.LogDevicePlacement
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be >= 0 (got %d)", c.MaxSteps)
	}
	if c.ValidationSize < 0 {
		return fmt.Errorf("validation_size must be >= 0 (got %d)", c.ValidationSize)
	}
	if c.TrainRecords < 0 || c.TestRecords < 0 {
		return fmt.Errorf("record counts must be >= 0 (got train=%d test=%d)", c.TrainRecords, c.TestRecords)
	}
	if c.TrainRecords > 0 && c.ValidationSize+c.BatchSize >= c.TrainRecords {
		return fmt.Errorf("validation_size+batch_size (%d) must be < train_records (%d)",
			c.ValidationSize+c.BatchSize, c.TrainRecords)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.DecayRate < 0 || c.DecayRate > 1 {
		return fmt.Errorf("decay_rate must be in [0,1] (got %g)", c.DecayRate)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("momentum must be in [0,1) (got %g)", c.Momentum)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("weight_decay must be >= 0 (got %g)", c.WeightDecay)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 100
	}
	return nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}
