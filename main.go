package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetsim/pkg/api"
	"fleetsim/pkg/catalog"
	"fleetsim/pkg/config"
	"fleetsim/pkg/exporter"
	"fleetsim/pkg/logging"
	"fleetsim/pkg/metrics"
	"fleetsim/pkg/notify"
	"fleetsim/pkg/profiling"
	"fleetsim/pkg/sim"
	"fleetsim/pkg/tracing"
)

// setting is a string flag that remembers whether it carries a value, so
// only overrides that were actually given are applied to the config.
type setting struct {
	value string
}

func (s *setting) String() string     { return s.value }
func (s *setting) Set(v string) error { s.value = v; return nil }

// boolSetting accepts the bare --name form.
type boolSetting struct{ setting }

func (b *boolSetting) IsBoolFlag() bool { return true }

var usages = map[string]string{
	"addr":             "HTTP listen address",
	"rate-limit":       "Mutating API requests per second per client, 0 disables limiting",
	"catalog":          "Route catalog: a YAML file path or http(s) URL, empty for the built-in Ahmedabad catalog",
	"tick-interval":    "Simulated time covered by one tick",
	"speed":            "Simulation speed multiplier (0.1-5)",
	"seed":             "Random seed, 0 for a random run",
	"seed-history":     "Seed 24h of synthetic ticket and GPS history at start",
	"alert-ttl":        "How long an alert stays active without being refreshed",
	"notification-ttl": "How long a notification is kept",
	"export":           "Export GPS samples and alerts to Loki",
	"dry-run":          "Print exported data to stdout instead of sending to Loki",
	"backfill":         "Export samples recorded before the first export cycle",
	"export-interval":  "Export interval",
	"loki-url":         "Grafana Loki URL",
	"loki-user":        "Loki username (for Grafana Cloud authentication)",
	"loki-password":    "Loki password/token (for Grafana Cloud authentication)",
	"log-level":        "Log level: debug, info, warn or error",
	"log-format":       "Log format: text or json",
}

var boolKeys = map[string]bool{
	"seed-history": true,
	"export":       true,
	"dry-run":      true,
	"backfill":     true,
}

func main() {
	configPath := flag.String("config", getEnv("FLEETSIM_CONFIG", ""), "Path to a YAML config file")

	overrides := make(map[string]*setting, len(config.Keys))
	for _, key := range config.Keys {
		s := &setting{value: getEnv(config.EnvName(key), "")}
		if boolKeys[key] {
			b := &boolSetting{setting: *s}
			flag.Var(b, key, usages[key])
			overrides[key] = &b.setting
			continue
		}
		flag.Var(s, key, usages[key])
		overrides[key] = s
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ahmedabad Fleet Simulation\n\n")
		fmt.Fprintf(os.Stderr, "Simulates a municipal bus fleet moving along its routes, raises\n")
		fmt.Fprintf(os.Stderr, "operational alerts, and serves the live state over a JSON API plus\n")
		fmt.Fprintf(os.Stderr, "GTFS-Realtime and SIRI-VM feeds. GPS samples and alerts can be\n")
		fmt.Fprintf(os.Stderr, "exported to Grafana Loki.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FLEETSIM_CONFIG   - Path to a YAML config file\n")
		for _, key := range config.Keys {
			fmt.Fprintf(os.Stderr, "  %-26s - %s\n", config.EnvName(key), usages[key])
		}
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run the simulation and API only\n")
		fmt.Fprintf(os.Stderr, "  %s --addr=:8080\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Reproducible run at double speed, exporting in dry run mode\n")
		fmt.Fprintf(os.Stderr, "  %s --seed=42 --speed=2 --export --dry-run\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Export to Grafana Cloud\n")
		fmt.Fprintf(os.Stderr, "  %s --export \\\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "    --loki-url=https://logs-prod-us-central1.grafana.net \\\n")
		fmt.Fprintf(os.Stderr, "    --loki-user=123456 --loki-password=your_token\n\n")
	}

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, key := range config.Keys {
		if v := overrides[key].value; v != "" {
			if err := cfg.Set(key, v); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
				flag.Usage()
				os.Exit(1)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.InitLogging(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("Fleet simulation failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Fleet simulation shutdown complete")
}

func run(cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := tracing.InitTracing()
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing()

	shutdownMetrics, err := metrics.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer shutdownMetrics()

	shutdownProfiling, err := profiling.InitProfiling()
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer shutdownProfiling()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := catalog.Load(ctx, cfg.Catalog.Source)
	if err != nil {
		return err
	}

	center := notify.NewCenter(cfg.Notify(), nil, logger)

	var rng *rand.Rand
	if seed := cfg.Simulation.Seed; seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}

	engine, err := sim.New(cfg.Sim(), cat, sim.Options{
		Rand:   rng,
		Sink:   center,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create simulation: %w", err)
	}
	metrics.SetFleetSource(engine)

	server, err := api.New(api.Config{
		Addr:               cfg.Server.Addr,
		RateLimit:          cfg.Server.RateLimit,
		RateBurst:          cfg.Server.RateBurst,
		CompressionMinSize: cfg.Server.CompressionMinSize,
		AlertTTL:           cfg.Simulation.AlertTTL,
		FeedValidity:       3 * cfg.Simulation.TickInterval,
	}, engine, center, api.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	workers := map[string]func(context.Context) error{
		"simulation":    engine.Run,
		"notifications": center.Run,
		"api":           server.ListenAndServe,
	}

	if cfg.Export.Enabled {
		exp, err := exporter.New(cfg.Exporter(), engine, exporter.Options{Logger: logger})
		if err != nil {
			return fmt.Errorf("failed to create exporter: %w", err)
		}
		workers["exporter"] = exp.Run

		if cfg.Export.DryRun {
			logger.Info("Exporting in DRY RUN mode, data will be printed to stdout")
		} else {
			logger.Info("Exporting to Loki", slog.String("url", cfg.Export.LokiURL), slog.Duration("interval", cfg.Export.Interval))
		}
	}

	logger.Info("Starting fleet simulation",
		slog.String("addr", cfg.Server.Addr),
		slog.Float64("speed", cfg.Simulation.Speed),
		slog.Duration("tick_interval", cfg.Simulation.TickInterval),
		slog.Uint64("seed", cfg.Simulation.Seed))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(workers))
	for name, fn := range workers {
		go func(name string, fn func(context.Context) error) {
			results <- result{name: name, err: fn(ctx)}
		}(name, fn)
	}

	var runErr error
	remaining := len(workers)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down gracefully", slog.String("signal", sig.String()))
	case res := <-results:
		remaining--
		if res.err != nil && !errors.Is(res.err, context.Canceled) {
			runErr = fmt.Errorf("%s: %w", res.name, res.err)
		}
		logger.Info("Worker stopped, shutting down", slog.String("worker", res.name))
	}
	cancel()

	timeout := time.After(10 * time.Second)
	for remaining > 0 {
		select {
		case res := <-results:
			remaining--
			if res.err != nil && !errors.Is(res.err, context.Canceled) {
				logger.Warn("Worker stopped with error", slog.String("worker", res.name), slog.Any("error", res.err))
			}
		case <-timeout:
			logger.Warn("Shutdown timeout, forcing exit", slog.Int("pending", remaining))
			return runErr
		}
	}

	return runErr
}

// getEnv returns the value of an environment variable or a default value if not set
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
