package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validatePresence(cfg, ve)
	validateRegistry(cfg, ve)
	validateGateway(cfg, ve)
	validateActuator(cfg, ve)
	validateScanner(cfg, ve)
	validatePairing(cfg, ve)
	validateHistory(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validatePresence(cfg *Config, ve *ValidationError) {
	p := cfg.Presence
	// The hysteresis band must never collapse: a single boundary flaps.
	if p.EnterThreshold <= p.ExitThreshold {
		ve.Add("presence.enter_threshold (%.1f) must be greater than presence.exit_threshold (%.1f)",
			p.EnterThreshold, p.ExitThreshold)
	}
	if p.AlphaNear <= 0 || p.AlphaNear > 1 {
		ve.Add("presence.alpha_near must be in (0, 1]")
	}
	if p.AlphaFar <= 0 || p.AlphaFar > 1 {
		ve.Add("presence.alpha_far must be in (0, 1]")
	}
	if p.Window <= 0 {
		ve.Add("presence.window must be > 0")
	}
	if p.PacketsRequired <= 0 {
		ve.Add("presence.packets_required must be > 0")
	}
	if p.BroadcastHz <= 0 {
		ve.Add("presence.broadcast_hz must be > 0")
	}
	if p.TenantTimeout <= 0 {
		ve.Add("presence.tenant_timeout must be > 0")
	}
}

func validateRegistry(cfg *Config, ve *ValidationError) {
	if cfg.Registry.Path == "" {
		ve.Add("registry.path must not be empty")
	}
	if cfg.Registry.Debounce < 0 {
		ve.Add("registry.debounce must be >= 0")
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr must not be empty")
	}
}

var validActuatorBackends = map[string]bool{
	"sysfs": true,
	"gpio":  true,
	"off":   true,
}

func validateActuator(cfg *Config, ve *ValidationError) {
	a := cfg.Actuator
	if !validActuatorBackends[a.Backend] {
		ve.Add("actuator.backend must be one of: sysfs, gpio, off")
	}
	if a.Backend == "sysfs" && a.SysfsPath == "" {
		ve.Add("actuator.sysfs_path must not be empty for the sysfs backend")
	}
	if a.MinLevel >= a.MaxLevel {
		ve.Add("actuator.min_level (%d) must be less than actuator.max_level (%d)", a.MinLevel, a.MaxLevel)
	}
	if a.UpStep <= 0 {
		ve.Add("actuator.up_step must be > 0")
	}
	if a.DownStep <= 0 {
		ve.Add("actuator.down_step must be > 0")
	}
}

var validScannerSources = map[string]bool{
	"none":   true,
	"replay": true,
}

func validateScanner(cfg *Config, ve *ValidationError) {
	if !validScannerSources[cfg.Scanner.Source] {
		ve.Add("scanner.source must be one of: none, replay")
	}
	if cfg.Scanner.Source == "replay" && cfg.Scanner.ReplayPath == "" {
		ve.Add("scanner.replay_path must not be empty for the replay source")
	}
}

func validatePairing(cfg *Config, ve *ValidationError) {
	if !cfg.Pairing.Enabled {
		return
	}
	if cfg.Pairing.BeaconPrefix == "" {
		ve.Add("pairing.beacon_prefix must not be empty when pairing is enabled")
	}
	if cfg.Pairing.MinInterval <= 0 {
		ve.Add("pairing.min_interval must be > 0 when pairing is enabled")
	}
	if cfg.Pairing.CommandTimeout <= 0 {
		ve.Add("pairing.command_timeout must be > 0 when pairing is enabled")
	}
}

func validateHistory(cfg *Config, ve *ValidationError) {
	if cfg.History.Enabled && cfg.History.Path == "" {
		ve.Add("history.path must not be empty when history is enabled")
	}
}
