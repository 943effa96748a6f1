package sim

import (
	"fmt"
	"math"
	"time"

	"fleetsim/pkg/demand"
	"fleetsim/pkg/types"
)

// onTimeToleranceMinutes is how far from plan a bus may run and still count as
// on time in the comparison metrics.
const onTimeToleranceMinutes = 2

const clockFormat = "15:04"

// GetScheduleComparison contrasts the planned timetable with one where each
// operational bus is re-timed by its current delay, bounded by the route
// headway. Broken down buses show as cancelled in the optimised plan.
func (e *Engine) GetScheduleComparison() types.ScheduleComparison {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := types.ScheduleComparison{
		CurrentSchedules:   make([]types.ScheduleEntry, 0, len(e.buses)),
		OptimizedSchedules: make([]types.ScheduleEntry, 0, len(e.buses)),
	}

	var (
		operational              int
		currentDelay, residual   float64
		currentOnTime, optOnTime int
	)

	for _, bus := range e.buses {
		planned := bus.Schedule.PlannedDeparture
		trip := bus.Schedule.PlannedArrival.Sub(planned)

		out.CurrentSchedules = append(out.CurrentSchedules, types.ScheduleEntry{
			BusID:            bus.BusID,
			RouteID:          bus.RouteID,
			StartTime:        planned.Format(clockFormat),
			EndTime:          bus.Schedule.PlannedArrival.Format(clockFormat),
			Status:           "current",
			AdjustmentReason: "Original schedule",
		})

		if !bus.IsOperational {
			out.OptimizedSchedules = append(out.OptimizedSchedules, types.ScheduleEntry{
				BusID:             bus.BusID,
				RouteID:           bus.RouteID,
				StartTime:         planned.Format(clockFormat),
				EndTime:           bus.Schedule.PlannedArrival.Format(clockFormat),
				Status:            string(types.StatusCancelled),
				AdjustmentReason:  fmt.Sprintf("Cancelled: %s; replacement bus required", cancelReason(bus)),
				OriginalStartTime: planned.Format(clockFormat),
			})
			continue
		}

		delay := bus.Schedule.DelayMinutes
		headway := 0
		if route, ok := e.catalog.Route(bus.RouteID); ok {
			headway = route.HeadwayMinutes
		}
		adjust := boundedAdjustment(delay, headway)
		start := planned.Add(time.Duration(adjust) * time.Minute)

		out.OptimizedSchedules = append(out.OptimizedSchedules, types.ScheduleEntry{
			BusID:                 bus.BusID,
			RouteID:               bus.RouteID,
			StartTime:             start.Format(clockFormat),
			EndTime:               start.Add(trip).Format(clockFormat),
			Status:                "optimized",
			AdjustmentReason:      adjustmentReason(adjust, bus),
			OriginalStartTime:     planned.Format(clockFormat),
			TimeAdjustmentMinutes: adjust,
		})

		operational++
		currentDelay += math.Abs(float64(delay))
		residual += math.Abs(float64(delay - adjust))
		if abs(delay) <= onTimeToleranceMinutes {
			currentOnTime++
		}
		if abs(delay-adjust) <= onTimeToleranceMinutes {
			optOnTime++
		}
	}

	out.ComparisonMetrics = types.ComparisonMetrics{
		TotalBuses: delta(float64(len(e.buses)), float64(operational)),
		AverageDelayMinutes: delta(
			safeDiv(currentDelay, float64(operational)),
			safeDiv(residual, float64(operational)),
		),
		OnTimePercentage: delta(
			100*safeDiv(float64(currentOnTime), float64(operational)),
			100*safeDiv(float64(optOnTime), float64(operational)),
		),
	}
	return out
}

// boundedAdjustment shifts a departure by the observed delay, at most one
// headway either way. A zero headway leaves the delay unbounded.
func boundedAdjustment(delay, headway int) int {
	if headway <= 0 {
		return delay
	}
	return max(-headway, min(headway, delay))
}

func adjustmentReason(adjust int, bus *types.Bus) string {
	switch {
	case adjust > 0:
		cause := "operations"
		switch {
		case bus.WeatherImpact != "" && bus.WeatherImpact != types.WeatherNormal:
			cause = "weather"
		case bus.TrafficCondition == types.TrafficHeavy || bus.TrafficCondition == types.TrafficJam:
			cause = "traffic"
		}
		return fmt.Sprintf("Delayed by %d minutes due to %s", adjust, cause)
	case adjust < 0:
		return fmt.Sprintf("Advanced by %d minutes for better headway", -adjust)
	default:
		return "No adjustment needed"
	}
}

func cancelReason(bus *types.Bus) string {
	if bus.BreakdownReason != "" {
		return bus.BreakdownReason
	}
	return string(bus.Status)
}

// GetRidershipComparison joins the newest prediction for the current hour on
// each route with the passengers actually ticketed in that hour.
func (e *Engine) GetRidershipComparison() []types.RidershipComparison {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.clock.Now()
	hourStart := demand.HourStart(now)
	hourEnd := hourStart.Add(time.Hour)

	latest := e.predictor.Latest(now.Hour())
	out := make([]types.RidershipComparison, 0, len(latest))
	for _, p := range latest {
		actual := e.ledger.Passengers(p.RouteID, hourStart, hourEnd)
		out = append(out, types.RidershipComparison{
			PredictionData:  p,
			ActualRidership: actual,
			Accuracy:        round2(demand.Accuracy(p.PredictedRidership, actual)),
		})
	}
	return out
}

// Stats summarises the fleet for dashboards.
func (e *Engine) Stats() types.FleetStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.clock.Now()
	stats := types.FleetStats{
		TotalBuses:         len(e.buses),
		ActiveAlerts:       len(e.book.Active()),
		PassengersLastHour: e.ledger.TotalPassengers(now.Add(-time.Hour), now.Add(time.Nanosecond)),
		SimulationSpeed:    e.speed,
	}

	occupancy := 0
	for _, bus := range e.buses {
		occupancy += bus.OccupancyPercentage
		if bus.IsOperational {
			stats.OperationalBuses++
		}
		switch bus.Status {
		case types.StatusDelayed:
			stats.DelayedBuses++
		case types.StatusBreakdown:
			stats.BrokenDownBuses++
		}
	}
	stats.AverageOccupancy = round2(safeDiv(float64(occupancy), float64(len(e.buses))))
	return stats
}

func delta(current, optimized float64) types.MetricDelta {
	current, optimized = round2(current), round2(optimized)
	return types.MetricDelta{
		Current:   current,
		Optimized: optimized,
		Change:    round2(optimized - current),
	}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
