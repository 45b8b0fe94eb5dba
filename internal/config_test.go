package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/starford/tagweave/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled"}
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.AuthEnabled())
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AuthModeDisabled, cfg.Mode)
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.AuthEnabled())
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is empty")
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	assert.Error(t, cfg.Validate())
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.7, cfg.Graph.SimilarityThreshold)
	assert.Equal(t, 0.3, cfg.Graph.FactorFloor)
	assert.Equal(t, 8*time.Millisecond, cfg.Layout.TickInterval)
}

func TestFullConfig_SectionsValidated(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"auth", func(c *Config) { c.Auth = AuthConfig{Mode: "token"} }},
		{"port", func(c *Config) { c.App.HTTP.Port = 70000 }},
		{"threshold", func(c *Config) { c.Graph.SimilarityThreshold = 1.5 }},
		{"root key", func(c *Config) { c.Graph.RootTagKey = "" }},
		{"tick", func(c *Config) { c.Layout.TickInterval = 0 }},
		{"damping", func(c *Config) { c.Layout.Damping = 2 }},
		{"debounce", func(c *Config) { c.Rebuild.Debounce = -time.Second }},
		{"metrics namespace", func(c *Config) { c.Metrics.Namespace = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMetricsNamespaceOptionalWhenDisabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Metrics = MetricsConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestEngineAndBuilderConversion(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Layout.Width, cfg.Layout.Height = 1024, 768
	cfg.Layout.Seed = 99
	cfg.Graph.GeoMaxDistanceM = 500
	cfg.Graph.FactorFloor = 0.5

	lc := cfg.Layout.EngineConfig()
	assert.Equal(t, 1024.0, lc.Canvas.Width)
	assert.Equal(t, 768.0, lc.Canvas.Height)
	assert.Equal(t, uint64(99), lc.Seed)

	bc := cfg.Graph.BuilderConfig()
	assert.Equal(t, 500.0, bc.GeoMaxDistance)
	assert.Equal(t, "root", bc.RootTagKey)
	assert.Equal(t, 0.5, cfg.Graph.Scorer().Floor)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("TAGWEAVE_TEST_TOKEN", "s3cret")
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
app:
  log_level: debug
  http:
    port: 9090
auth:
  mode: token
  token: ${TAGWEAVE_TEST_TOKEN}
graph:
  similarity_threshold: 0.8
layout:
  tick_interval: 16ms
  frame_rate: 5
rebuild:
  debounce: 1s
`), 0o644))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(p, cfg))
	assert.Equal(t, 9090, cfg.App.HTTP.Port)
	assert.Equal(t, "s3cret", cfg.Auth.Token)
	assert.Equal(t, 0.8, cfg.Graph.SimilarityThreshold)
	assert.Equal(t, 16*time.Millisecond, cfg.Layout.TickInterval)
	assert.Equal(t, time.Second, cfg.Rebuild.Debounce)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.9, cfg.Graph.SharedRootWeight)
	assert.Equal(t, "./vault", cfg.Vault.Path)
}
