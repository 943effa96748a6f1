// Package exporter ships the simulation's GPS trail and alerts to Grafana
// Loki on a fixed interval.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"fleetsim/pkg/clock"
	"fleetsim/pkg/logging"
	"fleetsim/pkg/loki"
	"fleetsim/pkg/metrics"
	"fleetsim/pkg/render"
	"fleetsim/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Source is the slice of the engine the exporter reads.
type Source interface {
	GPSLogsSince(afterID int) []types.GPSLog
	GetAlerts() []types.Alert
	GetLiveBusData() []types.Bus
}

type Config struct {
	DryRun       bool
	LokiURL      string
	LokiUser     string
	LokiPassword string
	Interval     time.Duration

	// Backfill sends samples recorded before the first cycle, including the
	// seeded history. Loki rejects entries that are too old, so it is off by
	// default.
	Backfill bool
}

type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
	// Out receives dry-run output. Defaults to stdout.
	Out io.Writer
}

type Exporter struct {
	config     Config
	source     Source
	lokiClient *loki.Client
	badges     *render.BadgeGenerator
	clock      clock.Clock
	logger     *slog.Logger
	out        io.Writer
	tracer     trace.Tracer

	// Only touched from Run's goroutine.
	cursor   int
	started  bool
	exported map[string]time.Time
}

func New(config Config, source Source, opts Options) (*Exporter, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}

	if config.Interval <= 0 {
		return nil, fmt.Errorf("export interval must be positive")
	}

	if !config.DryRun && config.LokiURL == "" {
		return nil, fmt.Errorf("Loki URL is required unless running dry")
	}

	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	exporter := &Exporter{
		config:   config,
		source:   source,
		badges:   render.NewBadgeGenerator(),
		clock:    opts.Clock,
		logger:   opts.Logger.With(slog.String("component", "exporter")),
		out:      opts.Out,
		tracer:   otel.Tracer("exporter"),
		exported: make(map[string]time.Time),
	}

	// Only create Loki client if not in dry run mode
	if !config.DryRun {
		exporter.lokiClient = loki.NewClient(config.LokiURL, config.LokiUser, config.LokiPassword)
	}

	return exporter, nil
}

func (x *Exporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(x.config.Interval)
	defer ticker.Stop()

	x.logger.Info("Exporter started",
		slog.Duration("interval", x.config.Interval),
		slog.Bool("dry_run", x.config.DryRun))

	if err := x.processOnce(ctx); err != nil {
		logging.LogError(x.logger, "initial export", err)
	}

	for {
		select {
		case <-ctx.Done():
			x.logger.Info("Exporter stopped", slog.Int("cursor", x.cursor))
			return ctx.Err()
		case <-ticker.C:
			if err := x.processOnce(ctx); err != nil {
				logging.LogError(x.logger, "export", err, slog.Int("cursor", x.cursor))
			}
		}
	}
}

// batch is the work for one route in one cycle.
type batch struct {
	routeID int
	logs    []types.GPSLog
}

func (x *Exporter) processOnce(ctx context.Context) error {
	ctx, span := x.tracer.Start(ctx, "exporter.process_once",
		trace.WithAttributes(
			attribute.Bool("dry_run", x.config.DryRun),
			attribute.Int("cursor", x.cursor),
		),
	)
	defer span.End()

	ctx = logging.WithLogger(ctx, x.logger)
	start := time.Now()
	defer logging.LogOperation(x.logger, "exporter.process_once", start)
	now := x.clock.Now()

	batches := x.collectGPS(now)
	alerts := x.collectAlerts()
	badges := x.busBadges()

	span.SetAttributes(
		attribute.Int("routes_count", len(batches)),
		attribute.Int("alerts_count", len(alerts)),
	)

	var err error
	if x.config.DryRun {
		err = x.handleDryRun(ctx, batches, alerts, badges)
	} else {
		err = x.sendToLoki(ctx, batches, alerts, badges, now)
	}

	status := "success"
	switch {
	case x.config.DryRun:
		status = "dry_run"
	case err != nil:
		status = "error"
		span.RecordError(err)
	}
	metrics.RecordExportCycle(ctx, time.Since(start), status)

	span.SetAttributes(attribute.String("processing_duration", time.Since(start).String()))
	return err
}

// collectGPS reads samples past the cursor and groups them by route. On the
// first cycle samples older than one interval are skipped unless Backfill is
// set.
func (x *Exporter) collectGPS(now time.Time) []batch {
	logs := x.source.GPSLogsSince(x.cursor)
	if len(logs) == 0 {
		x.started = true
		return nil
	}
	x.cursor = logs[len(logs)-1].LogID

	if !x.started && !x.config.Backfill {
		cutoff := now.Add(-x.config.Interval)
		fresh := logs[:0:0]
		for _, l := range logs {
			if !l.Timestamp.Before(cutoff) {
				fresh = append(fresh, l)
			}
		}
		if skipped := len(logs) - len(fresh); skipped > 0 {
			x.logger.Info("Skipping historical GPS samples", slog.Int("skipped", skipped))
		}
		logs = fresh
	}
	x.started = true

	byRoute := map[int][]types.GPSLog{}
	for _, l := range logs {
		byRoute[l.RouteID] = append(byRoute[l.RouteID], l)
	}

	batches := make([]batch, 0, len(byRoute))
	for id, routeLogs := range byRoute {
		batches = append(batches, batch{routeID: id, logs: routeLogs})
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].routeID < batches[j].routeID })
	return batches
}

// collectAlerts returns active alerts not yet exported in their current
// form. A superseded alert keeps its id but gets a new timestamp, so it is
// sent again.
func (x *Exporter) collectAlerts() []types.Alert {
	var fresh []types.Alert
	seen := make(map[string]time.Time)

	for _, a := range x.source.GetAlerts() {
		if a.Resolved {
			continue
		}
		seen[a.ID] = a.Timestamp
		if last, ok := x.exported[a.ID]; ok && last.Equal(a.Timestamp) {
			continue
		}
		fresh = append(fresh, a)
	}

	x.exported = seen
	return fresh
}

func (x *Exporter) busBadges() map[int]string {
	badges := make(map[int]string)
	for _, bus := range x.source.GetLiveBusData() {
		badges[bus.BusID] = render.DataURI(x.badges.BusBadge(bus))
	}
	return badges
}

func (x *Exporter) sendToLoki(ctx context.Context, batches []batch, alerts []types.Alert, badges map[int]string, now time.Time) error {
	ctx, span := x.tracer.Start(ctx, "exporter.send_to_loki")
	defer span.End()

	if x.lokiClient == nil {
		err := fmt.Errorf("loki client not initialized")
		span.RecordError(err)
		return err
	}

	type routeResult struct {
		routeID int
		samples int
		err     error
	}

	results := make(chan routeResult, len(batches))

	// Push every route concurrently
	for _, b := range batches {
		go func(b batch) {
			routeCtx, routeSpan := x.tracer.Start(ctx, "exporter.send_route",
				trace.WithAttributes(
					attribute.Int("route_id", b.routeID),
					attribute.Int("samples_count", len(b.logs)),
				),
			)
			defer routeSpan.End()

			err := x.lokiClient.SendGPSLogs(routeCtx, b.routeID, b.logs, badges)
			if err != nil {
				routeSpan.RecordError(err)
				err = fmt.Errorf("failed to send GPS logs for route %d: %w", b.routeID, err)
			}
			results <- routeResult{routeID: b.routeID, samples: len(b.logs), err: err}
		}(b)
	}

	logger := logging.FromContext(ctx)

	var errs []error
	sent := 0
	for range batches {
		result := <-results
		if result.err != nil {
			errs = append(errs, result.err)
			logging.LogError(logger, "route export", result.err, slog.Int("route_id", result.routeID))
			continue
		}
		sent += result.samples
	}

	alertErr := x.lokiClient.SendAlerts(ctx, alerts, now)
	if alertErr != nil {
		errs = append(errs, fmt.Errorf("failed to send alerts: %w", alertErr))
		logging.LogError(logger, "alert export", alertErr, slog.Int("alerts", len(alerts)))
	}

	span.SetAttributes(
		attribute.Int("samples_sent", sent),
		attribute.Int("failed_pushes", len(errs)),
	)

	if sent > 0 || (len(alerts) > 0 && alertErr == nil) {
		logger.Debug("Exported to Loki",
			slog.Int("samples", sent),
			slog.Int("routes", len(batches)),
			slog.Int("alerts", len(alerts)))
	}

	attempts := len(batches)
	if len(alerts) > 0 {
		attempts++
	}

	// Return error only if every push failed
	if attempts > 0 && len(errs) == attempts {
		return errors.Join(errs...)
	}
	return nil
}

func (x *Exporter) handleDryRun(ctx context.Context, batches []batch, alerts []types.Alert, badges map[int]string) error {
	_, span := x.tracer.Start(ctx, "exporter.dry_run")
	defer span.End()

	lines := 0
	for _, b := range batches {
		fmt.Fprintf(x.out, "\n=== DRY RUN - GPS samples for route %d ===\n", b.routeID)
		fmt.Fprintf(x.out, "Samples: %d\n", len(b.logs))
		for i, l := range b.logs {
			line, err := loki.GPSLine(l, badges[l.BusID])
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to render GPS line for dry run: %w", err)
			}
			fmt.Fprintf(x.out, "Log Line %d: %s\n", i+1, line)
			lines++
		}
	}

	if len(alerts) > 0 {
		fmt.Fprintf(x.out, "\n=== DRY RUN - Alerts ===\n")
		for i, a := range alerts {
			line, err := loki.AlertLine(a)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to render alert line for dry run: %w", err)
			}
			fmt.Fprintf(x.out, "Alert %d: %s\n", i+1, line)
			lines++
		}
	}

	if lines > 0 {
		fmt.Fprintln(x.out, "=== END DRY RUN ===")
	}

	span.SetAttributes(attribute.Int("lines_printed", lines))
	return nil
}
