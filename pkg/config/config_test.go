package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-bsim/pkg/config"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1e-3, cfg.Tolerances.Reltol)
	assert.True(t, cfg.Tolerances.Bypass)
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
temperature: 85
tolerances:
  reltol: 1.0e-4
  bypass: false
models:
  - name: nch
    type: nmos
    params:
      toxe: 1.8e-9
      vth0: 0.4
`)
	cfg, err := config.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 85.0, cfg.Temperature)
	assert.Equal(t, 1e-4, cfg.Tolerances.Reltol)
	assert.False(t, cfg.Tolerances.Bypass)
	assert.Equal(t, 1e-12, cfg.Tolerances.Abstol, "unset fields keep defaults")

	m, ok := cfg.Model("nch")
	require.True(t, ok)
	assert.Equal(t, "nmos", m.Type)
	assert.InDelta(t, 0.4, m.Params["vth0"], 1e-15)

	_, ok = cfg.Model("pch")
	assert.False(t, ok)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"negative reltol", "tolerances:\n  reltol: -1\n"},
		{"zero iterations", "tolerances:\n  max_iter: 0\n"},
		{"unknown model type", "models:\n  - name: x\n    type: npn\n"},
		{"missing model name", "models:\n  - type: nmos\n"},
		{"bad yaml", "tolerances: [1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("temperature: -40\n"), 0o600))
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, -40.0, cfg.Temperature)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
