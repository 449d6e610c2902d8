package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.CacheType)
	assert.Equal(t, 1000, cfg.CacheMaxSubscriptions)
	assert.Equal(t, 9090, cfg.MetricsPort)
}

func TestLoad_BareEnvNameOverridesDefault(t *testing.T) {
	os.Setenv("CACHE_TYPE", "redis")
	defer os.Unsetenv("CACHE_TYPE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.CacheType)
}

func TestLoad_RejectsInvalidCacheType(t *testing.T) {
	os.Setenv("CACHE_TYPE", "memcached")
	defer os.Unsetenv("CACHE_TYPE")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsOutOfRangePort(t *testing.T) {
	os.Setenv("METRICS_PORT", "70000")
	defer os.Unsetenv("METRICS_PORT")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnparseableBaseURL(t *testing.T) {
	os.Setenv("BASE_URL", "://bad")
	defer os.Unsetenv("BASE_URL")

	_, err := Load()
	assert.Error(t, err)
}
