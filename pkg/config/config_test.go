package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/sequence"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/tse"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Variants, 5)
	assert.Equal(t, sequence.DefaultLimits(), cfg.Limits())
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "tsefig.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), loaded); diff != "" {
		t.Errorf("config mismatch after round trip (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Output.Figure, cfg.Output.Figure)
}

// TestPartialVariant checks omitted variant fields fall back to the defaults
func TestPartialVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte(`
output:
  figure: out/figure.jpg
variants:
  - name: fast
    label: x)
    resolution: 32
    ordering: centric
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Variants, 1)

	want := tse.DefaultParams()
	want.Name, want.Label, want.Resolution, want.Ordering = "fast", "x)", 32, tse.OrderingCentric
	assert.Equal(t, want, cfg.VariantParams()[0])
	assert.Equal(t, "out/figure.jpg", cfg.Output.Figure)
	assert.Equal(t, 4, cfg.Output.PanelScale, "untouched sections keep defaults")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variants: [\n"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSetResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetResolution(16)
	for _, p := range cfg.VariantParams() {
		assert.Equal(t, 16, p.Resolution)
	}
}

func TestValidate(t *testing.T) {
	mutate := map[string]func(*Config){
		"grad":     func(c *Config) { c.System.MaxGrad = 0 },
		"deadtime": func(c *Config) { c.System.ADCDeadTime = -1 },
		"spins":    func(c *Config) { c.Simulation.SpinsPerVoxel = 0 },
		"slab":     func(c *Config) { c.Simulation.SlabFactor = -1 },
		"tissue":   func(c *Config) { delete(c.Phantom.Tissues, "wm") },
		"figure":   func(c *Config) { c.Output.Figure = "" },
		"scale":    func(c *Config) { c.Output.PanelScale = 0 },
		"none":     func(c *Config) { c.Variants = nil },
	}
	for name, m := range mutate {
		cfg := DefaultConfig()
		m(cfg)
		err := cfg.Validate()
		assert.True(t, errors.Is(err, ErrInvalidConfig), "%s: got %v", name, err)
	}

	cfg := DefaultConfig()
	cfg.Variants[2].Resolution = 5
	assert.True(t, errors.Is(cfg.Validate(), tse.ErrInvalidParams))
}
