package sim

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fleetsim/pkg/alerts"
	"fleetsim/pkg/metrics"
	"fleetsim/pkg/types"
)

var breakdownReasons = []string{
	"Engine failure",
	"Brake system issue",
	"Tire puncture",
	"Electrical problem",
	"Fuel system malfunction",
}

var weatherEvents = []types.WeatherImpact{
	types.WeatherRain,
	types.WeatherHeavyRain,
	types.WeatherFog,
	types.WeatherStorm,
}

var trafficEvents = []types.TrafficCondition{
	types.TrafficHeavy,
	types.TrafficJam,
	types.TrafficClear,
}

func weatherLabel(w types.WeatherImpact) string {
	return strings.ReplaceAll(string(w), "_", " ")
}

// generateEventsLocked rolls the weather, breakdown, traffic and delay
// triggers in that order and returns the number of new breakdowns.
func (e *Engine) generateEventsLocked(ctx context.Context, now time.Time) int {
	if e.rng.Float64() < 0.1 {
		e.weatherEventLocked(ctx, now, weatherEvents[e.rng.IntN(len(weatherEvents))])
	}

	breakdowns := 0
	if e.rng.Float64() < 0.05 && len(e.buses) > 0 {
		bus := e.buses[e.rng.IntN(len(e.buses))]
		if bus.IsOperational {
			e.breakdownLocked(ctx, now, bus, breakdownReasons[e.rng.IntN(len(breakdownReasons))])
			breakdowns++
		}
	}

	if e.rng.Float64() < 0.15 {
		e.trafficEventLocked(ctx, now, trafficEvents[e.rng.IntN(len(trafficEvents))])
	}

	for _, bus := range e.buses {
		if !bus.IsOperational || bus.Schedule.DelayMinutes <= 5 {
			continue
		}
		if e.rng.Float64() < 0.3 {
			e.delayAlertLocked(ctx, now, bus)
		}
	}

	return breakdowns
}

func (e *Engine) weatherEventLocked(ctx context.Context, now time.Time, condition types.WeatherImpact) {
	severity := types.SeverityHigh
	if condition == types.WeatherStorm {
		severity = types.SeverityCritical
	}

	for _, bus := range e.buses {
		if !bus.IsOperational || e.rng.Float64() >= 0.3 {
			continue
		}
		extra := 5 + e.rng.IntN(16)
		bus.WeatherImpact = condition
		bus.Schedule.DelayMinutes += extra
		bus.Status = statusForDelay(bus.Schedule.DelayMinutes)

		e.raiseLocked(ctx, now, bus, types.Alert{
			Type:             types.AlertWeather,
			Severity:         severity,
			Title:            fmt.Sprintf("Weather Alert - %s", strings.ToUpper(weatherLabel(condition))),
			Message:          fmt.Sprintf("Bus %s on Route %d delayed by %d minutes due to %s", bus.LicensePlate, bus.RouteID, extra, weatherLabel(condition)),
			WeatherCondition: string(condition),
		})
	}
}

func (e *Engine) breakdownLocked(ctx context.Context, now time.Time, bus *types.Bus, reason string) {
	bus.Status = types.StatusBreakdown
	bus.IsOperational = false
	bus.BreakdownReason = reason
	bus.Schedule.DelayMinutes = types.BreakdownDelayMinutes
	bus.CurrentPosition.Speed = 0

	e.logger.Warn("Bus broke down",
		slog.Int("bus_id", bus.BusID),
		slog.String("plate", bus.LicensePlate),
		slog.String("reason", reason))

	e.raiseLocked(ctx, now, bus, types.Alert{
		Type:            types.AlertBreakdown,
		Severity:        types.SeverityCritical,
		Title:           fmt.Sprintf("Bus Breakdown - %s", bus.LicensePlate),
		Message:         fmt.Sprintf("Bus %s on Route %d has broken down near %s: %s. Replacement bus dispatched.", bus.LicensePlate, bus.RouteID, bus.LastStop, reason),
		BreakdownReason: reason,
		AffectedStops:   append([]string(nil), bus.Route.Stops...),
	})
}

func (e *Engine) trafficEventLocked(ctx context.Context, now time.Time, condition types.TrafficCondition) {
	for _, bus := range e.buses {
		if !bus.IsOperational || e.rng.Float64() >= 0.4 {
			continue
		}
		bus.TrafficCondition = condition

		var (
			extra    int
			severity types.Severity
			message  string
		)
		switch condition {
		case types.TrafficJam:
			extra = 10 + e.rng.IntN(21)
			severity = types.SeverityHigh
			message = fmt.Sprintf("Traffic jam on Route %d: bus %s delayed by %d minutes", bus.RouteID, bus.LicensePlate, extra)
		case types.TrafficHeavy:
			extra = 5 + e.rng.IntN(11)
			severity = types.SeverityMedium
			message = fmt.Sprintf("Heavy traffic on Route %d: bus %s delayed by %d minutes", bus.RouteID, bus.LicensePlate, extra)
		default:
			severity = types.SeverityMedium
			message = fmt.Sprintf("Traffic has cleared on Route %d, bus %s running normally", bus.RouteID, bus.LicensePlate)
		}
		bus.Schedule.DelayMinutes += extra
		bus.Status = statusForDelay(bus.Schedule.DelayMinutes)

		e.raiseLocked(ctx, now, bus, types.Alert{
			Type:     types.AlertTraffic,
			Severity: severity,
			Title:    fmt.Sprintf("Traffic Update - %s", strings.ToUpper(string(condition))),
			Message:  message,
		})
	}
}

func (e *Engine) delayAlertLocked(ctx context.Context, now time.Time, bus *types.Bus) {
	severity := types.SeverityMedium
	if bus.Schedule.DelayMinutes > 15 {
		severity = types.SeverityHigh
	}

	e.raiseLocked(ctx, now, bus, types.Alert{
		Type:     types.AlertDelay,
		Severity: severity,
		Title:    fmt.Sprintf("Bus Delay - %s", bus.LicensePlate),
		Message:  fmt.Sprintf("Bus %s on Route %d is running %d minutes late", bus.LicensePlate, bus.RouteID, bus.Schedule.DelayMinutes),
	})
}

// raiseLocked stores an alert for bus and queues it for the sink when it is
// new rather than a refresh of an active one.
func (e *Engine) raiseLocked(ctx context.Context, now time.Time, bus *types.Bus, a types.Alert) {
	a.BusID = bus.BusID
	a.RouteID = bus.RouteID

	stored, created := e.book.Raise(a, now)
	if !created {
		return
	}

	metrics.RecordAlertRaised(ctx, string(stored.Type), string(stored.Severity))
	e.pending = append(e.pending, raisedAlert{alert: stored, bus: bus.Clone()})
}

// TriggerBreakdown takes a bus out of service immediately. An empty reason
// picks one at random. Breaking an already broken bus is a no-op.
func (e *Engine) TriggerBreakdown(ctx context.Context, busID int, reason string) (types.Alert, error) {
	e.mu.Lock()
	bus, ok := e.byID[busID]
	if !ok {
		e.mu.Unlock()
		return types.Alert{}, fmt.Errorf("trigger breakdown for bus %d: %w", busID, ErrBusNotFound)
	}

	now := e.clock.Now()
	if bus.IsOperational {
		if reason == "" {
			reason = breakdownReasons[e.rng.IntN(len(breakdownReasons))]
		}
		e.breakdownLocked(ctx, now, bus, reason)
	}
	alert, _ := e.book.Lookup(alerts.Key{Type: types.AlertBreakdown, BusID: busID})
	raised := e.pending
	e.pending = nil
	e.mu.Unlock()

	e.publish(raised)
	return alert, nil
}

// SetBusConditions overrides the weather and traffic tags of one bus. Empty
// values leave the current tag unchanged.
func (e *Engine) SetBusConditions(busID int, weather types.WeatherImpact, traffic types.TrafficCondition) error {
	if weather != "" && !weather.Valid() {
		return fmt.Errorf("weather %q: %w", weather, ErrUnknownCondition)
	}
	if traffic != "" && !traffic.Valid() {
		return fmt.Errorf("traffic %q: %w", traffic, ErrUnknownCondition)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bus, ok := e.byID[busID]
	if !ok {
		return fmt.Errorf("set conditions for bus %d: %w", busID, ErrBusNotFound)
	}
	if weather != "" {
		bus.WeatherImpact = weather
	}
	if traffic != "" {
		bus.TrafficCondition = traffic
	}
	return nil
}
