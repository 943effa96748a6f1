package sim

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"fleetsim/pkg/alerts"
	"fleetsim/pkg/catalog"
	"fleetsim/pkg/clock"
	"fleetsim/pkg/demand"
	"fleetsim/pkg/ledger"
	"fleetsim/pkg/metrics"
	"fleetsim/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrBusNotFound      = errors.New("bus not found")
	ErrUnknownCondition = errors.New("unknown condition")
)

const (
	MinSimulationSpeed = 0.1
	MaxSimulationSpeed = 5.0
)

type Config struct {
	// TickInterval is the simulated time covered by one tick. The wall-clock
	// period between ticks is TickInterval divided by Speed.
	TickInterval  time.Duration
	Speed         float64
	SegmentLength float64
	MinSpeedKMH   float64
	AlertTTL      time.Duration

	PredictionHorizonHours int
	PredictionFreshness    time.Duration
	PredictionRetention    time.Duration

	SeedHistory     bool
	GPSRetention    time.Duration
	TicketRetention time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval:           5 * time.Second,
		Speed:                  1,
		SegmentLength:          50,
		MinSpeedKMH:            2,
		AlertTTL:               5 * time.Minute,
		PredictionHorizonHours: 6,
		PredictionFreshness:    5 * time.Minute,
		PredictionRetention:    24 * time.Hour,
		SeedHistory:            true,
		GPSRetention:           48 * time.Hour,
		TicketRetention:        7 * 24 * time.Hour,
	}
}

// AlertSink is told about every newly created alert. Superseded alerts are
// not republished.
type AlertSink interface {
	AlertRaised(alert types.Alert, bus types.Bus)
}

type Options struct {
	Clock  clock.Clock
	Rand   *rand.Rand
	Sink   AlertSink
	Logger *slog.Logger
}

type raisedAlert struct {
	alert types.Alert
	bus   types.Bus
}

// Engine owns the simulated fleet. All state is guarded by mu; Step holds the
// write lock for a whole tick and readers get copies.
type Engine struct {
	config  Config
	catalog *catalog.Catalog
	clock   clock.Clock
	sink    AlertSink
	logger  *slog.Logger
	tracer  trace.Tracer

	mu        sync.RWMutex
	rng       *rand.Rand
	buses     []*types.Bus
	byID      map[int]*types.Bus
	progress  map[int]float64
	book      *alerts.Book
	predictor *demand.Predictor
	ledger    *ledger.Ledger
	speed     float64
	ticks     uint64
	pending   []raisedAlert

	speedChanged chan struct{}
}

// New builds an engine over cat and initialises the fleet. Zero config values
// fall back to DefaultConfig.
func New(config Config, cat *catalog.Catalog, opts Options) (*Engine, error) {
	if cat == nil {
		return nil, errors.New("catalog is required")
	}

	def := DefaultConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = def.TickInterval
	}
	if config.Speed == 0 {
		config.Speed = def.Speed
	}
	if config.SegmentLength <= 0 {
		config.SegmentLength = def.SegmentLength
	}
	if config.MinSpeedKMH <= 0 {
		config.MinSpeedKMH = def.MinSpeedKMH
	}
	if config.AlertTTL <= 0 {
		config.AlertTTL = def.AlertTTL
	}
	if config.PredictionHorizonHours <= 0 {
		config.PredictionHorizonHours = def.PredictionHorizonHours
	}
	if config.PredictionFreshness <= 0 {
		config.PredictionFreshness = def.PredictionFreshness
	}

	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		config:  config,
		catalog: cat,
		clock:   opts.Clock,
		sink:    opts.Sink,
		logger:  opts.Logger.With(slog.String("component", "sim")),
		tracer:  otel.Tracer("sim"),
		rng:     opts.Rand,
		book:    alerts.NewBook(config.AlertTTL),
		predictor: demand.NewPredictor(demand.Config{
			HorizonHours: config.PredictionHorizonHours,
			Freshness:    config.PredictionFreshness,
			Retention:    config.PredictionRetention,
		}, opts.Rand),
		ledger:       ledger.New(config.TicketRetention, config.GPSRetention),
		speed:        clampSpeed(config.Speed),
		speedChanged: make(chan struct{}, 1),
	}

	e.mu.Lock()
	e.initLocked(e.clock.Now())
	e.mu.Unlock()

	e.logger.Info("Simulation initialised",
		slog.Int("buses", len(e.buses)),
		slog.Int("routes", len(cat.RouteIDs())),
		slog.Float64("speed", e.speed))

	return e, nil
}

func (e *Engine) initLocked(now time.Time) {
	e.initFleetLocked(now)
	if e.config.SeedHistory {
		e.seedHistoryLocked(now)
	}
	e.predictor.Update(now, e.catalog.RouteIDs())
}

// Run steps the engine immediately and then on every tick until ctx is
// cancelled. Speed changes re-arm the ticker.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.period())
	defer ticker.Stop()

	e.logger.Info("Simulation started", slog.Duration("period", e.period()))

	e.Step(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Simulation stopped", slog.Uint64("ticks", e.Ticks()))
			return ctx.Err()
		case <-e.speedChanged:
			period := e.period()
			ticker.Reset(period)
			e.logger.Debug("Tick period changed", slog.Duration("period", period))
		case <-ticker.C:
			e.Step(ctx)
		}
	}
}

func (e *Engine) period() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return time.Duration(float64(e.config.TickInterval) / e.speed)
}

// Step advances the simulation by one tick at the clock's current time.
func (e *Engine) Step(ctx context.Context) {
	ctx, span := e.tracer.Start(ctx, "sim.tick")
	defer span.End()

	start := time.Now()

	e.mu.Lock()
	now := e.clock.Now()
	stats := e.tickLocked(ctx, now)
	e.ticks++
	raised := e.pending
	e.pending = nil
	e.mu.Unlock()

	stats.Duration = time.Since(start)
	metrics.RecordTick(ctx, stats)

	span.SetAttributes(
		attribute.Int("gps_samples", stats.GPSSamples),
		attribute.Int("ticket_sales", stats.TicketSales),
		attribute.Int("breakdowns", stats.Breakdowns),
		attribute.Int("alerts_created", len(raised)),
	)

	e.publish(raised)
}

func (e *Engine) tickLocked(ctx context.Context, now time.Time) metrics.TickStats {
	var stats metrics.TickStats

	for _, bus := range e.buses {
		e.moveBusLocked(bus, now)
	}
	e.jitterOccupancyLocked(now)

	stats.GPSSamples = e.recordGPSLocked(now)
	if e.maybeSellTicketLocked(now) {
		stats.TicketSales = 1
	}
	e.perturbSchedulesLocked(now)

	stats.Breakdowns = e.generateEventsLocked(ctx, now)

	if expired := e.book.Expire(now); expired > 0 {
		e.logger.Debug("Alerts expired", slog.Int("count", expired))
	}
	e.predictor.Update(now, e.catalog.RouteIDs())
	e.ledger.Prune(now)

	return stats
}

func (e *Engine) publish(raised []raisedAlert) {
	if e.sink == nil {
		return
	}
	for _, r := range raised {
		e.sink.AlertRaised(r.alert, r.bus)
	}
}

// SetSimulationSpeed clamps multiplier into [0.1, 5], applies it and returns
// the value in effect.
func (e *Engine) SetSimulationSpeed(multiplier float64) float64 {
	speed := clampSpeed(multiplier)

	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()

	select {
	case e.speedChanged <- struct{}{}:
	default:
	}

	e.logger.Info("Simulation speed changed", slog.Float64("speed", speed))
	return speed
}

func (e *Engine) SimulationSpeed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speed
}

func (e *Engine) Ticks() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ticks
}

// Reset reinitialises the fleet and drops alerts, predictions and history.
// The simulation speed is kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	now := e.clock.Now()
	e.book.Reset()
	e.predictor.Reset()
	e.ledger.Reset()
	e.pending = nil
	e.initLocked(now)
	e.mu.Unlock()

	e.logger.Info("Simulation reset")
}

func clampSpeed(s float64) float64 {
	if math.IsNaN(s) || s < MinSimulationSpeed {
		return MinSimulationSpeed
	}
	if s > MaxSimulationSpeed {
		return MaxSimulationSpeed
	}
	return s
}
