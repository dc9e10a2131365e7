package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.EqualValues(t, 8080, cfg.Discovery.Port)
	assert.Equal(t, time.Second, cfg.Discovery.AnnounceInterval)
	assert.EqualValues(t, 4000, cfg.ControlBus.Port)
	assert.Equal(t, 30*time.Second, cfg.Session.HandshakeTimeout)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("SHAREFLOW_DISCOVERY_PORT", "9090")
	defer os.Unsetenv("SHAREFLOW_DISCOVERY_PORT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.EqualValues(t, 9090, cfg.Discovery.Port)
}
