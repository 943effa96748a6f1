package sim

import (
	"math"
	"sort"
	"time"

	"fleetsim/pkg/geo"
	"fleetsim/pkg/types"
)

const (
	seedTicketSales = 1000
	seedGPSSamples  = 5000
	seedTicketSpan  = 7 * 24 * time.Hour
	seedGPSSpan     = 24 * time.Hour
)

// initFleetLocked rebuilds every bus from the fleet configuration. Buses whose
// route is missing are skipped.
func (e *Engine) initFleetLocked(now time.Time) {
	fleet := e.catalog.Fleet()

	e.buses = make([]*types.Bus, 0, len(fleet))
	e.byID = make(map[int]*types.Bus, len(fleet))
	e.progress = make(map[int]float64, len(fleet))

	for _, cfg := range fleet {
		route, ok := e.catalog.Route(cfg.RouteID)
		if !ok {
			e.logger.Warn("Skipping bus with unknown route", "bus_id", cfg.BusID, "route_id", cfg.RouteID)
			continue
		}

		departure := now.Add(time.Duration(e.rng.Float64() * float64(time.Hour)))
		arrival := departure.Add(time.Duration(route.DistanceKM * float64(time.Minute)))

		n := len(route.Stops)
		progress := e.rng.Float64() * float64(n)
		loop := loopOf(route)
		pos := geo.Interpolate(progress, loop)
		idx := int(math.Floor(progress)) % n

		bus := &types.Bus{
			BusID:        cfg.BusID,
			LicensePlate: cfg.LicensePlate,
			RouteID:      cfg.RouteID,
			Route:        route.Summary(),
			Capacity:     cfg.Capacity,
			Status:       types.StatusOnTime,
			CurrentPosition: types.Position{
				Latitude:  pos.Lat,
				Longitude: pos.Lng,
				Speed:     25 + e.rng.Float64()*20,
				Direction: geo.Bearing(pos, loop[idx+1]),
				Timestamp: now,
			},
			Schedule: types.Schedule{
				PlannedDeparture: departure,
				PlannedArrival:   arrival,
				DelayMinutes:     e.rng.IntN(10) - 5,
			},
			WeatherImpact:    types.WeatherNormal,
			TrafficCondition: types.TrafficNormal,
			IsOperational:    true,
			LastStop:         route.Stops[idx].Name,
			NextStop:         route.Stops[(idx+1)%n].Name,
			EstimatedArrival: now.Add(time.Duration(5+e.rng.IntN(10)) * time.Minute),
		}
		bus.SetOccupancy(int(math.Floor(e.rng.Float64() * float64(cfg.Capacity) * 0.8)))
		bus.Status = statusForDelay(bus.Schedule.DelayMinutes)

		e.buses = append(e.buses, bus)
		e.byID[bus.BusID] = bus
		e.progress[bus.BusID] = progress
	}
}

// seedHistoryLocked fabricates a week of ticket sales and a day of GPS samples
// so reports have data from the first request.
func (e *Engine) seedHistoryLocked(now time.Time) {
	if len(e.buses) == 0 {
		return
	}

	sales := make([]types.TicketSale, 0, seedTicketSales)
	for i := 0; i < seedTicketSales; i++ {
		bus := e.buses[e.rng.IntN(len(e.buses))]
		route, ok := e.catalog.Route(bus.RouteID)
		if !ok {
			continue
		}
		ts := now.Add(-time.Duration(e.rng.Float64() * float64(seedTicketSpan)))
		sales = append(sales, e.newTicketLocked(bus, route, ts))
	}
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Timestamp.Before(sales[j].Timestamp) })
	for _, s := range sales {
		e.ledger.AppendTicket(s)
	}

	samples := make([]types.GPSLog, 0, seedGPSSamples)
	for i := 0; i < seedGPSSamples; i++ {
		bus := e.buses[e.rng.IntN(len(e.buses))]
		route, ok := e.catalog.Route(bus.RouteID)
		if !ok {
			continue
		}
		pos := geo.Interpolate(e.rng.Float64()*float64(len(route.Stops)), loopOf(route))
		samples = append(samples, types.GPSLog{
			BusID:     bus.BusID,
			RouteID:   bus.RouteID,
			Latitude:  pos.Lat,
			Longitude: pos.Lng,
			Speed:     20 + e.rng.Float64()*30,
			Direction: e.rng.Float64() * 360,
			Timestamp: now.Add(-time.Duration(e.rng.Float64() * float64(seedGPSSpan))),
		})
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })
	for _, s := range samples {
		e.ledger.AppendGPS(s)
	}

	e.logger.Debug("Seeded history", "ticket_sales", len(sales), "gps_samples", len(samples))
}

// newTicketLocked draws a sale of 1-3 passengers between two consecutive stops.
func (e *Engine) newTicketLocked(bus *types.Bus, route *types.Route, ts time.Time) types.TicketSale {
	n := len(route.Stops)
	board := 0
	if n > 1 {
		board = e.rng.IntN(n - 1)
	}
	alight := board + 1
	if alight >= n {
		alight = n - 1
	}

	return types.TicketSale{
		BusID:          bus.BusID,
		RouteID:        bus.RouteID,
		PassengerCount: 1 + e.rng.IntN(3),
		Timestamp:      ts,
		Price:          math.Round((2.5+e.rng.Float64()*2)*100) / 100,
		StopBoarding:   route.Stops[board].Name,
		StopAlighting:  route.Stops[alight].Name,
	}
}

// loopOf returns the stop coordinates with the first stop appended so the
// last segment runs back to the start.
func loopOf(route *types.Route) []geo.Coordinate {
	coords := route.Coordinates()
	return append(coords, coords[0])
}

func statusForDelay(delay int) types.BusStatus {
	if delay > 5 {
		return types.StatusDelayed
	}
	return types.StatusOnTime
}
