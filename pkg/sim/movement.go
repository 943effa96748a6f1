package sim

import (
	"math"
	"time"

	"fleetsim/pkg/demand"
	"fleetsim/pkg/geo"
	"fleetsim/pkg/types"
)

// Buses slow down this much at a stop relative to mid-segment.
const stopEasing = 0.3

func weatherFactor(w types.WeatherImpact) float64 {
	switch w {
	case types.WeatherHeavyRain, types.WeatherStorm:
		return 0.6
	case types.WeatherRain, types.WeatherFog:
		return 0.8
	}
	return 1
}

func trafficFactor(t types.TrafficCondition) float64 {
	switch t {
	case types.TrafficJam:
		return 0.3
	case types.TrafficHeavy:
		return 0.7
	}
	return 1
}

// AttenuatedSpeed applies the weather, traffic and stop easing factors to a
// base speed. segmentProgress is the fraction travelled between two stops;
// the easing factor is 0.7 at either stop and 1 mid-segment.
func AttenuatedSpeed(base float64, w types.WeatherImpact, t types.TrafficCondition, segmentProgress float64) float64 {
	easing := 1 - stopEasing*(1-math.Sin(math.Pi*segmentProgress))
	return base * weatherFactor(w) * trafficFactor(t) * easing
}

// moveBusLocked advances one operational bus along its route loop.
func (e *Engine) moveBusLocked(bus *types.Bus, now time.Time) {
	if !bus.IsOperational {
		return
	}
	route, ok := e.catalog.Route(bus.RouteID)
	if !ok {
		return
	}

	n := float64(len(route.Stops))
	loop := loopOf(route)

	increment := (bus.CurrentPosition.Speed / 3600) * e.config.TickInterval.Seconds() / e.config.SegmentLength
	progress := math.Mod(e.progress[bus.BusID]+increment, n)
	if progress < 0 {
		progress += n
	}
	e.progress[bus.BusID] = progress

	prev := geo.Coordinate{Lat: bus.CurrentPosition.Latitude, Lng: bus.CurrentPosition.Longitude}
	pos := geo.Interpolate(progress, loop)

	direction := bus.CurrentPosition.Direction
	if pos != prev {
		direction = geo.Bearing(prev, pos)
	}

	idx := int(math.Floor(progress)) % len(route.Stops)
	segment := progress - math.Floor(progress)

	base := 25 + e.rng.Float64()*15
	speed := math.Max(e.config.MinSpeedKMH, AttenuatedSpeed(base, bus.WeatherImpact, bus.TrafficCondition, segment))

	bus.CurrentPosition = types.Position{
		Latitude:  pos.Lat,
		Longitude: pos.Lng,
		Speed:     speed,
		Direction: direction,
		Timestamp: now,
	}
	bus.LastStop = route.Stops[idx].Name
	bus.NextStop = route.Stops[(idx+1)%len(route.Stops)].Name
	bus.EstimatedArrival = now.Add(time.Duration(5+e.rng.IntN(10)) * time.Minute)

	if segment < 0.1 {
		e.boardAndAlightLocked(bus, route.Stops[idx], idx == 0)
	}
}

// boardAndAlightLocked rolls boarding and alighting at the stop the bus is
// dwelling at. Terminal and major stops see more movement.
func (e *Engine) boardAndAlightLocked(bus *types.Bus, stop types.Stop, first bool) {
	boardP, alightP := 0.3, 0.4
	switch {
	case first:
		boardP, alightP = 0.8, 0.7
	case stop.Type == types.StopMajor:
		boardP, alightP = 0.7, 0.6
	}

	occupancy := bus.Occupancy
	if e.rng.Float64() < boardP {
		occupancy += 1 + e.rng.IntN(8)
	}
	if e.rng.Float64() < alightP {
		occupancy -= 1 + e.rng.IntN(6)
	}
	bus.SetOccupancy(occupancy)
}

// jitterOccupancyLocked nudges occupancy by up to three passengers, more
// often during rush hours.
func (e *Engine) jitterOccupancyLocked(now time.Time) {
	p := 0.2
	if demand.IsPeakHour(now.Hour()) {
		p = 0.4
	}
	for _, bus := range e.buses {
		if !bus.IsOperational {
			continue
		}
		if e.rng.Float64() < p {
			bus.SetOccupancy(bus.Occupancy + e.rng.IntN(7) - 3)
		}
	}
}

// recordGPSLocked appends one sample per bus.
func (e *Engine) recordGPSLocked(now time.Time) int {
	for _, bus := range e.buses {
		sample := types.GPSLog{
			BusID:     bus.BusID,
			RouteID:   bus.RouteID,
			Latitude:  bus.CurrentPosition.Latitude,
			Longitude: bus.CurrentPosition.Longitude,
			Speed:     bus.CurrentPosition.Speed,
			Direction: bus.CurrentPosition.Direction,
			Timestamp: now,
		}
		if bus.IsOperational {
			if seg := e.progress[bus.BusID]; seg-math.Floor(seg) < 0.1 {
				sample.StopID = bus.LastStop
			}
		} else {
			sample.Speed = 0
		}
		e.ledger.AppendGPS(sample)
	}
	return len(e.buses)
}

// maybeSellTicketLocked records at most one sale on a random operational bus.
func (e *Engine) maybeSellTicketLocked(now time.Time) bool {
	p := 0.1
	if demand.IsPeakHour(now.Hour()) {
		p = 0.3
	}
	if e.rng.Float64() >= p {
		return false
	}

	operational := e.operationalLocked()
	if len(operational) == 0 {
		return false
	}
	bus := operational[e.rng.IntN(len(operational))]
	route, ok := e.catalog.Route(bus.RouteID)
	if !ok {
		return false
	}

	e.ledger.AppendTicket(e.newTicketLocked(bus, route, now))
	return true
}

// perturbSchedulesLocked drifts delays by up to three minutes and re-derives
// the status of every operational bus.
func (e *Engine) perturbSchedulesLocked(now time.Time) {
	for _, bus := range e.buses {
		if !bus.IsOperational {
			continue
		}
		if e.rng.Float64() < 0.1 {
			delay := bus.Schedule.DelayMinutes + e.rng.IntN(7) - 3
			bus.Schedule.DelayMinutes = max(-10, min(10, delay))
			if bus.Schedule.DelayMinutes > 0 {
				actual := bus.Schedule.PlannedDeparture.Add(time.Duration(bus.Schedule.DelayMinutes) * time.Minute)
				bus.Schedule.ActualDeparture = &actual
			}
		}
		bus.Status = statusForDelay(bus.Schedule.DelayMinutes)
	}
}

func (e *Engine) operationalLocked() []*types.Bus {
	out := make([]*types.Bus, 0, len(e.buses))
	for _, bus := range e.buses {
		if bus.IsOperational {
			out = append(out, bus)
		}
	}
	return out
}
