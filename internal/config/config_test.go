package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7171, cfg.Port)
	require.Equal(t, "0.0.0.0:7171", cfg.Addr())
	require.Equal(t, uint16(1100), cfg.VersionMin)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	os.Setenv("LOGINSERVER_PORT", "9999")
	defer os.Unsetenv("LOGINSERVER_PORT")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Port)
}
