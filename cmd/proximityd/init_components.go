package main

import (
	"fmt"
	"log/slog"

	"proximityd/internal/adapter/actuator"
	"proximityd/internal/adapter/scanner"
	"proximityd/internal/infra/config"
	"proximityd/internal/usecase/presence"
)

// buildActuator selects the actuator backend. Hardware failures degrade to
// level tracking only; an unreachable indicator should never keep presence
// detection down.
func buildActuator(cfg config.ActuatorConfig, log *slog.Logger) presence.Actuator {
	switch cfg.Backend {
	case "sysfs":
		log.Info("actuator enabled (sysfs backend)", "path", cfg.SysfsPath)
		return actuator.NewSysfs(cfg.SysfsPath)
	case "gpio":
		pwm, err := actuator.NewPeriphPWM(cfg.GPIOPin, cfg.MaxLevel)
		if err != nil {
			log.Warn("gpio actuator unavailable, level tracking only", "error", err)
			return nil
		}
		log.Info("actuator enabled (gpio pwm backend)", "pin", cfg.GPIOPin)
		return pwm
	case "off", "":
		return nil
	default:
		log.Warn("unknown actuator backend, level tracking only", "backend", cfg.Backend)
		return nil
	}
}

// buildScanner selects the BLE observation source. "none" leaves ingestion
// to external collaborators feeding the engine.
func buildScanner(cfg config.ScannerConfig, log *slog.Logger) (scanner.Source, error) {
	switch cfg.Source {
	case "replay":
		if cfg.ReplayPath == "" {
			return nil, fmt.Errorf("replay source needs replay_path")
		}
		return scanner.NewReplay(cfg.ReplayPath, log), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown scanner source: %s", cfg.Source)
	}
}
