package metrics

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"fleetsim/pkg/otel"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	meterProvider *sdkmetric.MeterProvider

	// Meter is nil until InitMetrics succeeds; every Record helper is a no-op
	// before that.
	Meter metric.Meter

	fleetMu     sync.RWMutex
	fleetSource FleetSource
)

// FleetSource feeds the observable fleet gauges.
type FleetSource interface {
	OperationalBuses() int
	ActiveAlerts() int
}

// InitMetrics sets up the OTLP meter provider when OTEL_METRICS_ENABLED is
// set. The returned function flushes and shuts it down.
func InitMetrics() (func(), error) {
	if !otel.IsMetricsEnabled() {
		slog.Debug("OpenTelemetry metrics is disabled")
		return func() {}, nil
	}

	ctx := context.Background()
	cfg := otel.GetExporterConfig(otel.SignalMetrics)

	exporter, err := otel.NewMetricExporter(ctx, cfg)
	if err != nil {
		slog.Warn("Failed to create OTLP metric exporter, using noop", "error", err)
		return func() {}, nil
	}

	res, err := otel.NewResource()
	if err != nil {
		slog.Warn("Failed to create resource, using noop", "error", err)
		return func() {}, nil
	}

	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otelapi.SetMeterProvider(meterProvider)
	Meter = meterProvider.Meter(otel.ServiceName)

	if err := initializeInstruments(); err != nil {
		slog.Error("Failed to initialize metric instruments", "error", err)
		Meter = nil
		return func() {}, nil
	}
	if err := registerObservables(); err != nil {
		slog.Warn("Failed to register observable gauges", "error", err)
	}

	slog.Debug("OpenTelemetry metrics initialized", "endpoint", cfg.Endpoint, "protocol", cfg.Protocol)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down meter provider", "error", err)
		}
	}, nil
}

// SetFleetSource wires the engine into the fleet gauges.
func SetFleetSource(src FleetSource) {
	fleetMu.Lock()
	fleetSource = src
	fleetMu.Unlock()
}

func registerObservables() error {
	fleetGauges := []struct {
		name, desc, unit string
		read             func(FleetSource) int
	}{
		{"sim.buses.operational", "Buses currently in service", "{bus}", FleetSource.OperationalBuses},
		{"sim.alerts.active", "Unresolved alerts", "{alert}", FleetSource.ActiveAlerts},
	}
	for _, g := range fleetGauges {
		read := g.read
		_, err := Meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit(g.unit),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				fleetMu.RLock()
				src := fleetSource
				fleetMu.RUnlock()
				if src != nil {
					o.Observe(int64(read(src)))
				}
				return nil
			}),
		)
		if err != nil {
			return err
		}
	}

	runtimeGauges := []struct {
		name, desc, unit string
		read             func(*runtime.MemStats) uint64
	}{
		{"runtime.go.mem.heap_alloc", "Heap memory allocated", "By", func(m *runtime.MemStats) uint64 { return m.HeapAlloc }},
		{"runtime.go.mem.heap_inuse", "Heap memory in use", "By", func(m *runtime.MemStats) uint64 { return m.HeapInuse }},
		{"runtime.go.mem.sys", "Total memory obtained from OS", "By", func(m *runtime.MemStats) uint64 { return m.Sys }},
		{"runtime.go.gc.count", "Completed GC cycles", "{gc}", func(m *runtime.MemStats) uint64 { return uint64(m.NumGC) }},
	}
	for _, g := range runtimeGauges {
		read := g.read
		_, err := Meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit(g.unit),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				o.Observe(int64(read(&m)))
				return nil
			}),
		)
		if err != nil {
			return err
		}
	}

	_, err := Meter.Int64ObservableGauge("runtime.go.goroutines",
		metric.WithDescription("Number of goroutines"),
		metric.WithUnit("{goroutine}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	)
	return err
}

// IsEnabled returns true if metrics collection is enabled
func IsEnabled() bool {
	return Meter != nil
}
