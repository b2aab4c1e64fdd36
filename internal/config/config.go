package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultSaveRoot    = "runs"
	DefaultBatchSize   = 16
	DefaultNumWorkers  = 4
	DefaultEpochs      = 100
	DefaultLR          = 0.01
	DefaultWeightDecay = 1e-4
	DefaultSparsity    = 1e-4
	DefaultNumClasses  = 200
	DefaultSeed        = 42
	DefaultLogEvery    = 50
)

// Config captures the runtime knobs for a training run.
type Config struct {
	DataDir     string  `yaml:"data_dir"`
	SaveRoot    string  `yaml:"save_root"`
	BatchSize   int     `yaml:"batch_size"`
	NumWorkers  int     `yaml:"num_workers"`
	Epochs      int     `yaml:"epochs"`
	LR          float64 `yaml:"lr"`
	WeightDecay float64 `yaml:"weight_decay"`
	// Sparsity scales the L1 penalty on the batch-norm channel scales.
	Sparsity   float64 `yaml:"sparsity"`
	NumClasses int     `yaml:"num_classes"`
	Seed       int64   `yaml:"seed"`
	LogEvery   int     `yaml:"log_every"`
	// Resume is an optional checkpoint to continue from.
	Resume string `yaml:"resume"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	DataDir    string
	SaveRoot   string
	BatchSize  int
	NumWorkers int
	Epochs     int
	LR         float64
	Seed       int64
	Resume     string
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		SaveRoot:    DefaultSaveRoot,
		BatchSize:   DefaultBatchSize,
		NumWorkers:  DefaultNumWorkers,
		Epochs:      DefaultEpochs,
		LR:          DefaultLR,
		WeightDecay: DefaultWeightDecay,
		Sparsity:    DefaultSparsity,
		NumClasses:  DefaultNumClasses,
		Seed:        DefaultSeed,
		LogEvery:    DefaultLogEvery,
	}
}

// Load reads a Config from YAML on top of DefaultConfig. Unknown keys are
// rejected. The result is not validated so that overrides can still fill in
// required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg, err := parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.SaveRoot != "" {
		c.SaveRoot = o.SaveRoot
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.LR > 0 {
		c.LR = o.LR
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Resume != "" {
		c.Resume = o.Resume
	}
}

// Validate verifies the config is runnable. It never modifies c.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		return ValidationError{Field: "data_dir", Message: "must be set"}
	}
	if c.SaveRoot == "" {
		return ValidationError{Field: "save_root", Message: "must be set"}
	}
	if c.BatchSize <= 0 {
		return ValidationError{Field: "batch_size", Message: fmt.Sprintf("must be > 0 (got %d)", c.BatchSize)}
	}
	if c.NumWorkers <= 0 {
		return ValidationError{Field: "num_workers", Message: fmt.Sprintf("must be > 0 (got %d)", c.NumWorkers)}
	}
	if c.Epochs <= 0 {
		return ValidationError{Field: "epochs", Message: fmt.Sprintf("must be > 0 (got %d)", c.Epochs)}
	}
	if c.LR <= 0 {
		return ValidationError{Field: "lr", Message: "must be positive"}
	}
	if c.WeightDecay < 0 {
		return ValidationError{Field: "weight_decay", Message: "must not be negative"}
	}
	if c.Sparsity < 0 {
		return ValidationError{Field: "sparsity", Message: "must not be negative"}
	}
	if c.NumClasses <= 1 {
		return ValidationError{Field: "num_classes", Message: "must be at least 2"}
	}
	if c.LogEvery <= 0 {
		return ValidationError{Field: "log_every", Message: fmt.Sprintf("must be > 0 (got %d)", c.LogEvery)}
	}
	return nil
}

func parseYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}
