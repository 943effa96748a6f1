package sim

import (
	"fmt"
	"math"
	"time"

	"fleetsim/pkg/types"
)

// GetLiveBusData returns a copy of every bus in fleet order.
func (e *Engine) GetLiveBusData() []types.Bus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]types.Bus, 0, len(e.buses))
	for _, bus := range e.buses {
		out = append(out, bus.Clone())
	}
	return out
}

func (e *Engine) GetBus(busID int) (types.Bus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	bus, ok := e.byID[busID]
	if !ok {
		return types.Bus{}, fmt.Errorf("bus %d: %w", busID, ErrBusNotFound)
	}
	return bus.Clone(), nil
}

// GetAlerts returns the unresolved alerts, oldest first.
func (e *Engine) GetAlerts() []types.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Active()
}

// ResolveAlert marks an alert resolved. It reports whether the id exists;
// resolving twice is not an error.
func (e *Engine) ResolveAlert(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Resolve(id)
}

func (e *Engine) DismissAlert(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Dismiss(id)
}

// GetPredictions returns every retained prediction in generation order.
func (e *Engine) GetPredictions() []types.PredictionData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.predictor.Predictions()
}

func (e *Engine) GetRoutes() []types.Route {
	return e.catalog.Routes()
}

// GetTicketSales returns sales from the last hours hours.
func (e *Engine) GetTicketSales(hours int) []types.TicketSale {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.TicketSales(e.since(hours))
}

// GetGPSLogs returns samples from the last hours hours inside the geohash
// cell prefix. An empty prefix matches everywhere.
func (e *Engine) GetGPSLogs(hours int, geohashPrefix string) []types.GPSLog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.GPSLogs(e.since(hours), geohashPrefix)
}

// GPSLogsSince returns samples appended after the log id afterID. Exporters
// use it as a cursor.
func (e *Engine) GPSLogsSince(afterID int) []types.GPSLog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.GPSLogsAfter(afterID)
}

// GetRouteProgress returns the fractional stop index of a bus.
func (e *Engine) GetRouteProgress(busID int) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.progress[busID]
	if !ok {
		return 0, fmt.Errorf("route progress for bus %d: %w", busID, ErrBusNotFound)
	}
	return p, nil
}

// OperationalBuses and ActiveAlerts feed the observable gauges.
func (e *Engine) OperationalBuses() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.operationalLocked())
}

func (e *Engine) ActiveAlerts() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.book.Active())
}

// maxLookbackHours is the longest window a time.Duration can express.
const maxLookbackHours = int64(math.MaxInt64 / time.Hour)

// since is the start of a window of hours ending now. Windows too long for
// a time.Duration cover all history.
func (e *Engine) since(hours int) time.Time {
	if hours <= 0 {
		hours = 24
	}
	if int64(hours) > maxLookbackHours {
		return time.Time{}
	}
	return e.clock.Now().Add(-time.Duration(hours) * time.Hour)
}
