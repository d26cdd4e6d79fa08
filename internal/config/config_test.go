package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetViper(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Node.APIPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Cache.Addr)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("ID", "2")
	t.Setenv("NUMBER_OF_NODES", "5")
	t.Setenv("API_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Node.ID)
	assert.Equal(t, 5, cfg.Node.NumberOfNodes)
	assert.Equal(t, 9090, cfg.Node.APIPort)
}

func TestValidateRejectsOutOfRangeID(t *testing.T) {
	cfg := &Config{Node: NodeConfig{ID: 5, NumberOfNodes: 3, APIPort: 8080}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroNodes(t *testing.T) {
	cfg := &Config{Node: NodeConfig{ID: 0, NumberOfNodes: 0, APIPort: 8080}}
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	resetViper(t)
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Node.APIPort)
}
