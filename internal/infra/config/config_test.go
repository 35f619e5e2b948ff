package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, -65.0, cfg.Presence.EnterThreshold)
	assert.Equal(t, -69.0, cfg.Presence.ExitThreshold)
	assert.Equal(t, 5, cfg.Presence.BroadcastHz)
	assert.Equal(t, ":8769", cfg.Gateway.Addr)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
presence:
  enter_threshold: -60
  exit_threshold: -70
  window: 6s
gateway:
  addr: ":9000"
registry:
  path: /etc/proximityd/tenants.json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -60.0, cfg.Presence.EnterThreshold)
	assert.Equal(t, -70.0, cfg.Presence.ExitThreshold)
	assert.Equal(t, 6*time.Second, cfg.Presence.Window)
	assert.Equal(t, ":9000", cfg.Gateway.Addr)
	assert.Equal(t, "/etc/proximityd/tenants.json", cfg.Registry.Path)
	// Untouched fields keep defaults.
	assert.Equal(t, 4, cfg.Presence.PacketsRequired)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROXIMITYD_GATEWAY_ADDR", ":7777")
	t.Setenv("PROXIMITYD_LOGGER_LEVEL", "debug")
	t.Setenv("PROXIMITYD_PRESENCE_BROADCAST_HZ", "10")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Gateway.Addr)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 10, cfg.Presence.BroadcastHz)
}

func TestValidateRejectsCollapsedHysteresisBand(t *testing.T) {
	cfg := Defaults()
	cfg.Presence.EnterThreshold = -69
	cfg.Presence.ExitThreshold = -69

	err := Validate(cfg)
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, ve.Error(), "enter_threshold")
}

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Presence.AlphaNear = 1.5
	cfg.Presence.PacketsRequired = 0
	cfg.Actuator.MinLevel = 300 // above max

	err := Validate(cfg)
	require.Error(t, err)
	ve := err.(*ValidationError)
	assert.Len(t, ve.Errors, 3)
}

func TestValidatePairingOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Pairing.BeaconPrefix = ""
	require.NoError(t, Validate(cfg), "disabled pairing should not be validated")

	cfg.Pairing.Enabled = true
	require.Error(t, Validate(cfg))
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("presence: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
