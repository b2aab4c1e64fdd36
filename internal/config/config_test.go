package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeFile(t, `
# CUB-200 fine-tuning
data_dir: /data/cub
batch_size: 32
sparsity: 0.00001
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/cub", cfg.DataDir)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.InDelta(t, 1e-5, cfg.Sparsity, 1e-12)
	assert.Equal(t, DefaultSaveRoot, cfg.SaveRoot)
	assert.Equal(t, DefaultEpochs, cfg.Epochs)
	assert.Equal(t, int64(DefaultSeed), cfg.Seed)
	require.NoError(t, cfg.Validate())
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeFile(t, "data_dir: /x\nbatchsize: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batchsize")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open config")
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data/a"
	cfg.ApplyOverrides(Overrides{
		DataDir: "/data/b",
		Epochs:  3,
		LR:      0.5,
		Resume:  "runs/x/model.ckpt",
	})

	assert.Equal(t, "/data/b", cfg.DataDir)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 0.5, cfg.LR)
	assert.Equal(t, "runs/x/model.ckpt", cfg.Resume)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, int64(DefaultSeed), cfg.Seed)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"missing save root", func(c *Config) { c.SaveRoot = "" }, "save_root"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"zero workers", func(c *Config) { c.NumWorkers = 0 }, "num_workers"},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }, "epochs"},
		{"zero lr", func(c *Config) { c.LR = 0 }, "lr"},
		{"negative decay", func(c *Config) { c.WeightDecay = -1 }, "weight_decay"},
		{"negative sparsity", func(c *Config) { c.Sparsity = -1 }, "sparsity"},
		{"one class", func(c *Config) { c.NumClasses = 1 }, "num_classes"},
		{"zero log interval", func(c *Config) { c.LogEvery = 0 }, "log_every"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = "/data"
			tt.mutate(&cfg)

			err := cfg.Validate()
			var verr ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateLeavesConfigUntouched(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	cfg.LogEvery = 0
	before := cfg

	require.Error(t, cfg.Validate())
	assert.Equal(t, before, cfg)
}

func TestLoadDefaultsLogEvery(t *testing.T) {
	cfg, err := Load(writeFile(t, "data_dir: /data\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultLogEvery, cfg.LogEvery)
	require.NoError(t, cfg.Validate())
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	assert.Error(t, cfg.Validate())
}
