package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "registry.toml", cfg.RegistryPath)
	assert.Equal(t, uint64(100), cfg.SlippageBips)
	assert.Equal(t, 1, cfg.Confirmations)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 4, cfg.TrackerWorkers)
	assert.Equal(t, uint64(0), cfg.MaxPendingBlocks)

	got, err := Get()
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellroute.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
registry_path: /etc/cellroute/registry.toml
slippage_bips: 50
max_pending_blocks: 600
poll_interval: 2s
rollback_fee: "1000000000000000"
`), 0600))
	t.Setenv("CELLROUTE_TRACKER_WORKERS", "8")
	t.Setenv("CELLROUTE_SLIPPAGE_BIPS", "25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/cellroute/registry.toml", cfg.RegistryPath)
	assert.Equal(t, uint64(25), cfg.SlippageBips, "environment overrides the file")
	assert.Equal(t, uint64(600), cfg.MaxPendingBlocks)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 8, cfg.TrackerWorkers)

	params := cfg.InstructionParams()
	assert.Equal(t, "1000000000000000", params.RollbackTeleporterFee.String())
	assert.Equal(t, "500000", params.RollbackGasLimit.String())
	assert.Zero(t, params.TeleporterFee.Sign())
	assert.Equal(t, uint64(200_000), params.RequiredGasBuffer)

	assert.Equal(t, uint64(600), cfg.TrackerConfig().MaxPendingBlocks)
	assert.Equal(t, uint64(25), cfg.ResolverConfig().SlippageBips)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SlippageBips:   100,
			Confirmations:  1,
			TrackerWorkers: 1,
			PollInterval:   time.Second,
			RollbackFee:    "0",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"slippage above 100%", func(c *Config) { c.SlippageBips = 10_001 }},
		{"no confirmations", func(c *Config) { c.Confirmations = 0 }},
		{"no workers", func(c *Config) { c.TrackerWorkers = 0 }},
		{"poll too fast", func(c *Config) { c.PollInterval = time.Millisecond }},
		{"fractional fee", func(c *Config) { c.RollbackFee = "1.5" }},
		{"negative fee", func(c *Config) { c.TeleporterFee = "-1" }},
		{"garbage fee", func(c *Config) { c.SecondaryTeleporterFee = "lots" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
