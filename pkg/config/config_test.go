package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nestedSection struct {
	Token   string        `env:"TEST_NESTED_TOKEN" yaml:"token"`
	Timeout time.Duration `env:"TEST_NESTED_TIMEOUT" yaml:"timeout" default:"30s"`
}

type testConfig struct {
	Name    string        `env:"TEST_NAME" yaml:"name" default:"sparrow"`
	Port    int           `env:"TEST_PORT" yaml:"port" default:"8080"`
	Debug   bool          `env:"TEST_DEBUG" yaml:"debug"`
	Origins []string      `env:"TEST_ORIGINS" yaml:"origins" default:"a,b"`
	Nested  nestedSection `yaml:"nested"`
}

type requiredConfig struct {
	APIKey string `env:"TEST_REQUIRED_KEY" yaml:"api_key" required:"true"`
}

func TestDefaultsApplied(t *testing.T) {
	var cfg testConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))

	assert.Equal(t, "sparrow", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"a", "b"}, cfg.Origins)
	assert.Equal(t, 30*time.Second, cfg.Nested.Timeout)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("TEST_NAME", "custom")
	t.Setenv("TEST_PORT", "9090")
	t.Setenv("TEST_DEBUG", "true")
	t.Setenv("TEST_ORIGINS", "x, y ,z")
	t.Setenv("TEST_NESTED_TIMEOUT", "5s")

	var cfg testConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))

	assert.Equal(t, "custom", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"x", "y", "z"}, cfg.Origins)
	assert.Equal(t, 5*time.Second, cfg.Nested.Timeout)
}

func TestNestedEnv(t *testing.T) {
	t.Setenv("TEST_NESTED_TOKEN", "xoxb-abc")

	var cfg testConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))
	assert.Equal(t, "xoxb-abc", cfg.Nested.Token)
}

func TestRequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_REQUIRED_KEY")
}

func TestRequiredFieldPresent(t *testing.T) {
	t.Setenv("TEST_REQUIRED_KEY", "sk-xyz")

	var cfg requiredConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))
	assert.Equal(t, "sk-xyz", cfg.APIKey)
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("TEST_PORT", "not-a-number")

	var cfg testConfig
	assert.Error(t, GetConfigFromEnvVars(&cfg))
}
