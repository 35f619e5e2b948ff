package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Presence  PresenceConfig  `yaml:"presence"`
	Registry  RegistryConfig  `yaml:"registry"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Actuator  ActuatorConfig  `yaml:"actuator"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Pairing   PairingConfig   `yaml:"pairing"`
	History   HistoryConfig   `yaml:"history"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// PresenceConfig holds the detection engine tunables.
type PresenceConfig struct {
	EnterThreshold  float64       `yaml:"enter_threshold"`  // dBm required to go NEAR
	ExitThreshold   float64       `yaml:"exit_threshold"`   // dBm drop-back point; must be below enter
	AlphaNear       float64       `yaml:"alpha_near"`       // EWMA weight while anyone is near
	AlphaFar        float64       `yaml:"alpha_far"`        // EWMA weight while nobody is near
	Window          time.Duration `yaml:"window"`           // rolling packet window
	PacketsRequired int           `yaml:"packets_required"` // packets needed inside the window
	BroadcastHz     int           `yaml:"broadcast_hz"`     // publish ticks per second
	TenantTimeout   time.Duration `yaml:"tenant_timeout"`   // staleness cutoff for published snapshots
}

// RegistryConfig holds tenant registry file settings.
type RegistryConfig struct {
	Path           string        `yaml:"path"`
	Debounce       time.Duration `yaml:"debounce"`        // settle time after a change notification
	ResyncSchedule string        `yaml:"resync_schedule"` // cron spec; empty disables the periodic resync
}

// GatewayConfig holds WebSocket push settings.
type GatewayConfig struct {
	Addr string `yaml:"addr"`
}

// ActuatorConfig holds brightness indicator settings.
type ActuatorConfig struct {
	Backend   string `yaml:"backend"` // "sysfs", "gpio", "off"
	SysfsPath string `yaml:"sysfs_path"`
	GPIOPin   int    `yaml:"gpio_pin"`
	MinLevel  int    `yaml:"min_level"`
	MaxLevel  int    `yaml:"max_level"`
	UpStep    int    `yaml:"up_step"`
	DownStep  int    `yaml:"down_step"`
}

// ScannerConfig selects the BLE observation source.
type ScannerConfig struct {
	Source     string `yaml:"source"` // "none", "replay"
	ReplayPath string `yaml:"replay_path"`
}

// PairingConfig holds bluetoothctl pairing automation settings.
type PairingConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BeaconPrefix   string        `yaml:"beacon_prefix"`   // pairing beacons advertise this name prefix
	MinInterval    time.Duration `yaml:"min_interval"`    // floor between any two pairing attempts
	Cooldown       time.Duration `yaml:"cooldown"`        // quiet period after a completed sequence
	CommandTimeout time.Duration `yaml:"command_timeout"` // per bluetoothctl invocation
}

// HistoryConfig holds the presence transition store settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite database file
}

// DiscoveryConfig holds mDNS announcement settings.
type DiscoveryConfig struct {
	MDNS     bool   `yaml:"mdns"`
	Instance string `yaml:"instance"` // announced instance name
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns a Config matching the original deployment's constants.
func Defaults() *Config {
	return &Config{
		Presence: PresenceConfig{
			EnterThreshold:  -65,
			ExitThreshold:   -69,
			AlphaNear:       0.3,
			AlphaFar:        0.8,
			Window:          4 * time.Second,
			PacketsRequired: 4,
			BroadcastHz:     5,
			TenantTimeout:   10 * time.Second,
		},
		Registry: RegistryConfig{
			Path:           "tenants-and-macs.json",
			Debounce:       100 * time.Millisecond,
			ResyncSchedule: "@every 5m",
		},
		Gateway: GatewayConfig{
			Addr: ":8769",
		},
		Actuator: ActuatorConfig{
			Backend:   "sysfs",
			SysfsPath: "/sys/class/leds/ledlogo/brightness",
			GPIOPin:   18,
			MinLevel:  10,
			MaxLevel:  255,
			UpStep:    30,
			DownStep:  60,
		},
		Scanner: ScannerConfig{
			Source: "none",
		},
		Pairing: PairingConfig{
			Enabled:        false,
			BeaconPrefix:   "BMX_P",
			MinInterval:    15 * time.Second,
			Cooldown:       12 * time.Second,
			CommandTimeout: 45 * time.Second,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "presence-history.db",
		},
		Discovery: DiscoveryConfig{
			MDNS:     false,
			Instance: "proximityd",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides.
// A missing file is not an error: defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps PROXIMITYD_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROXIMITYD_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("PROXIMITYD_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("PROXIMITYD_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("PROXIMITYD_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("PROXIMITYD_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("PROXIMITYD_REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv("PROXIMITYD_ACTUATOR_BACKEND"); v != "" {
		cfg.Actuator.Backend = v
	}
	if v := os.Getenv("PROXIMITYD_ACTUATOR_SYSFS_PATH"); v != "" {
		cfg.Actuator.SysfsPath = v
	}
	if v := os.Getenv("PROXIMITYD_SCANNER_SOURCE"); v != "" {
		cfg.Scanner.Source = v
	}
	if v := os.Getenv("PROXIMITYD_SCANNER_REPLAY_PATH"); v != "" {
		cfg.Scanner.ReplayPath = v
	}
	if v := os.Getenv("PROXIMITYD_PAIRING_ENABLED"); v == "true" {
		cfg.Pairing.Enabled = true
	}
	if v := os.Getenv("PROXIMITYD_HISTORY_ENABLED"); v == "true" {
		cfg.History.Enabled = true
	}
	if v := os.Getenv("PROXIMITYD_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("PROXIMITYD_DISCOVERY_MDNS"); v == "true" {
		cfg.Discovery.MDNS = true
	}
	if v := os.Getenv("PROXIMITYD_PRESENCE_BROADCAST_HZ"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Presence.BroadcastHz = n
		}
	}
	if v := os.Getenv("PROXIMITYD_PRESENCE_TENANT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Presence.TenantTimeout = d
		}
	}
}
