package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Simulation metrics
var (
	SimTicksTotal      metric.Int64Counter
	SimTickDuration    metric.Float64Histogram
	SimAlertsRaised    metric.Int64Counter
	SimBreakdownsTotal metric.Int64Counter
	SimTicketSales     metric.Int64Counter
	SimGPSSamples      metric.Int64Counter
)

// Notification metrics
var (
	NotificationsExpired metric.Int64Counter
)

// Export metrics
var (
	ExportCyclesTotal   metric.Int64Counter
	ExportCycleDuration metric.Float64Histogram
	LokiBatchSize       metric.Int64Histogram
	LokiSendDuration    metric.Float64Histogram
	LokiSendTotal       metric.Int64Counter
)

func initializeInstruments() error {
	var err error

	if SimTicksTotal, err = Meter.Int64Counter("sim.ticks.total",
		metric.WithDescription("Simulation ticks executed"),
		metric.WithUnit("{tick}"),
	); err != nil {
		return err
	}

	if SimTickDuration, err = Meter.Float64Histogram("sim.tick.duration",
		metric.WithDescription("Wall time spent inside one tick"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5),
	); err != nil {
		return err
	}

	if SimAlertsRaised, err = Meter.Int64Counter("sim.alerts.raised",
		metric.WithDescription("Alerts created by type and severity"),
		metric.WithUnit("{alert}"),
	); err != nil {
		return err
	}

	if SimBreakdownsTotal, err = Meter.Int64Counter("sim.breakdowns.total",
		metric.WithDescription("Buses taken out of service"),
		metric.WithUnit("{bus}"),
	); err != nil {
		return err
	}

	if SimTicketSales, err = Meter.Int64Counter("sim.ticket_sales.total",
		metric.WithDescription("Ticket sales appended to the ledger"),
		metric.WithUnit("{sale}"),
	); err != nil {
		return err
	}

	if SimGPSSamples, err = Meter.Int64Counter("sim.gps_samples.total",
		metric.WithDescription("GPS samples appended to the ledger"),
		metric.WithUnit("{sample}"),
	); err != nil {
		return err
	}

	if NotificationsExpired, err = Meter.Int64Counter("notifications.expired.total",
		metric.WithDescription("Notifications removed by the expiry sweep"),
		metric.WithUnit("{notification}"),
	); err != nil {
		return err
	}

	if ExportCyclesTotal, err = Meter.Int64Counter("export.cycles.total",
		metric.WithDescription("Export cycles by status"),
		metric.WithUnit("{cycle}"),
	); err != nil {
		return err
	}

	if ExportCycleDuration, err = Meter.Float64Histogram("export.cycle.duration",
		metric.WithDescription("Duration of export cycles"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	); err != nil {
		return err
	}

	if LokiBatchSize, err = Meter.Int64Histogram("loki.batch.size",
		metric.WithDescription("Log lines per push request"),
		metric.WithUnit("{record}"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	); err != nil {
		return err
	}

	if LokiSendDuration, err = Meter.Float64Histogram("loki.send.duration",
		metric.WithDescription("Duration of Loki push operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	); err != nil {
		return err
	}

	LokiSendTotal, err = Meter.Int64Counter("loki.send.total",
		metric.WithDescription("Loki pushes by status"),
		metric.WithUnit("{request}"),
	)
	return err
}

// TickStats summarises what one tick appended.
type TickStats struct {
	Duration    time.Duration
	TicketSales int
	GPSSamples  int
	Breakdowns  int
}

func RecordTick(ctx context.Context, s TickStats) {
	if !IsEnabled() {
		return
	}
	SimTicksTotal.Add(ctx, 1)
	SimTickDuration.Record(ctx, s.Duration.Seconds())
	SimTicketSales.Add(ctx, int64(s.TicketSales))
	SimGPSSamples.Add(ctx, int64(s.GPSSamples))
	if s.Breakdowns > 0 {
		SimBreakdownsTotal.Add(ctx, int64(s.Breakdowns))
	}
}

func RecordAlertRaised(ctx context.Context, alertType, severity string) {
	if !IsEnabled() {
		return
	}
	SimAlertsRaised.Add(ctx, 1, metric.WithAttributes(
		attribute.String("alert.type", alertType),
		attribute.String("alert.severity", severity),
	))
}

func RecordNotificationsExpired(ctx context.Context, n int) {
	if !IsEnabled() {
		return
	}
	NotificationsExpired.Add(ctx, int64(n))
}

func RecordExportCycle(ctx context.Context, d time.Duration, status string) {
	if !IsEnabled() {
		return
	}
	ExportCyclesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	ExportCycleDuration.Record(ctx, d.Seconds())
}

func RecordLokiSend(ctx context.Context, d time.Duration, lines int, status string) {
	if !IsEnabled() {
		return
	}
	LokiSendTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	LokiSendDuration.Record(ctx, d.Seconds())
	LokiBatchSize.Record(ctx, int64(lines))
}
