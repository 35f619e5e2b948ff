package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"

	"proximityd/internal/adapter/discovery"
	"proximityd/internal/adapter/gateway"
	"proximityd/internal/adapter/history"
	"proximityd/internal/adapter/pairing"
	"proximityd/internal/adapter/registry"
	"proximityd/internal/domain"
	"proximityd/internal/infra/config"
	"proximityd/internal/infra/logger"
	"proximityd/internal/infra/tracer"
	"proximityd/internal/usecase/eventbus"
	"proximityd/internal/usecase/presence"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "run":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	case "pair":
		if err := runPair(); err != nil {
			fmt.Fprintf(os.Stderr, "pair: %v\n", err)
			os.Exit(1)
		}
	case "devices":
		if err := runDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "devices: %v\n", err)
			os.Exit(1)
		}
	case "unpair-all":
		if err := runUnpairAll(); err != nil {
			fmt.Fprintf(os.Stderr, "unpair-all: %v\n", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(); err != nil {
			fmt.Fprintf(os.Stderr, "history: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'proximityd --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`proximityd - BLE presence detection daemon

USAGE:
    proximityd [COMMAND] [FLAGS]

COMMANDS:
    run          Run the presence daemon (default when no command given)
    pair         Scan for provisioning beacons and pair them
    devices      List devices bonded with the controller
    unpair-all   Remove every bonded device and reset the tenant registry
    history      Show recent presence transitions

FLAGS:
    -h, --help       Show this help message
    --config PATH    Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: PROXIMITYD_* variables override config`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("PROXIMITYD_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 4. Registry source
	source := registry.NewFileSource(cfg.Registry.Path)

	// 5. Actuator & feedback controller
	act := buildActuator(cfg.Actuator, log)
	feedback := presence.NewFeedbackController(cfg.Actuator, act, bus, log)

	// 6. Gateway
	gw := gateway.NewServer(bus, cfg.Gateway.Addr, log)

	// 7. Presence engine
	engine := presence.New(cfg.Presence, source, gw, feedback, bus, log)

	// 8. Transition history
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, log)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		defer store.Close()
		unsub := store.Attach(bus)
		defer unsub()
	}

	// 9. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 10. Registry watcher + periodic resync
	watcher := registry.NewWatcher(cfg.Registry.Path, cfg.Registry.Debounce, engine.NotifyRegistryChanged, log)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Error("registry watcher error", "error", err)
		}
	}()

	if cfg.Registry.ResyncSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Registry.ResyncSchedule, engine.NotifyRegistryChanged); err != nil {
			return fmt.Errorf("resync schedule: %w", err)
		}
		c.Start()
		defer c.Stop()
	}

	// 11. Gateway server
	go func() {
		if err := gw.Start(ctx); err != nil {
			log.Error("gateway server error", "error", err)
		}
	}()

	// 12. Observation source
	if src, err := buildScanner(cfg.Scanner, log); err != nil {
		return fmt.Errorf("scanner: %w", err)
	} else if src != nil {
		go func() {
			if err := src.Run(ctx, engine.Observe); err != nil {
				log.Error("scanner error", "error", err)
			}
		}()
	}

	// 13. Pairing
	if cfg.Pairing.Enabled {
		pairer := pairing.New(cfg.Pairing, pairing.ExecRunner{}, source, bus, log)
		go func() {
			if err := pairer.Run(ctx); err != nil {
				log.Error("pairing error", "error", err)
			}
		}()
	}

	// 14. mDNS announcement
	if cfg.Discovery.MDNS {
		instance := cfg.Discovery.Instance
		if instance == "" {
			instance, _ = os.Hostname()
		}
		port := gatewayPort(cfg.Gateway.Addr)
		announcer := discovery.NewMDNS(instance, log)
		go func() {
			if err := announcer.Announce(ctx, port, map[string]string{"path": "/ws"}); err != nil {
				log.Error("mdns error", "error", err)
			}
		}()
	}

	log.Info("proximityd starting",
		"registry", cfg.Registry.Path,
		"gateway", cfg.Gateway.Addr,
		"actuator", cfg.Actuator.Backend,
		"pairing", cfg.Pairing.Enabled,
		"history", cfg.History.Enabled,
	)

	// 15. Engine owns the main loop.
	return engine.Run(ctx)
}

func gatewayPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// runPair runs the pairing scan standalone, printing outcomes to stdout.
// Useful when provisioning a unit before the daemon is enabled.
func runPair() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	bus := eventbus.New(log)
	defer bus.Close()

	bus.Subscribe(domain.EventPairSucceeded, func(_ context.Context, ev domain.Event) {
		var res domain.PairResult
		if json.Unmarshal(ev.Payload, &res) == nil {
			fmt.Printf("paired tenant %s (%s)\n", res.TenantID, res.IdentityMAC)
		}
	})
	bus.Subscribe(domain.EventPairFailed, func(_ context.Context, ev domain.Event) {
		var res domain.PairResult
		if json.Unmarshal(ev.Payload, &res) == nil {
			fmt.Printf("pairing failed for %s: %s\n", res.BeaconName, res.Reason)
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("scanning for %s* beacons, Ctrl-C to stop\n", cfg.Pairing.BeaconPrefix)
	source := registry.NewFileSource(cfg.Registry.Path)
	pairer := pairing.New(cfg.Pairing, pairing.ExecRunner{}, source, bus, log)
	return pairer.Run(ctx)
}

func runDevices() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := pairing.NewManager(pairing.ExecRunner{}, log)
	devices, err := m.ListPaired(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no bonded devices")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%s  %s\n", d.MAC, d.Name)
	}
	return nil
}

func runUnpairAll() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := pairing.NewManager(pairing.ExecRunner{}, log)
	removed, err := m.RemoveAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d bonded device(s)\n", removed)

	if err := registry.NewFileSource(cfg.Registry.Path).Reset(); err != nil {
		return fmt.Errorf("reset registry: %w", err)
	}
	fmt.Println("tenant registry cleared")
	return nil
}

func runHistory() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in the configuration")
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	limit := 20
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			limit = n
		}
	}

	store, err := history.Open(cfg.History.Path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	transitions, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(transitions) == 0 {
		fmt.Println("no transitions recorded")
		return nil
	}
	for _, tr := range transitions {
		state := "FAR"
		if tr.IsNear {
			state = "NEAR"
		}
		fmt.Printf("%s  %-4s  tenant=%s mac=%s ewma=%.1f packets=%d\n",
			tr.At.Local().Format("2006-01-02 15:04:05"), state, tr.TenantID, tr.MAC, tr.EWMA, tr.PacketCount)
	}
	return nil
}
