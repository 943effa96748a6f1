package types

type ScheduleEntry struct {
	BusID                 int    `json:"bus_id"`
	RouteID               int    `json:"route_id"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time"`
	Status                string `json:"status,omitempty"`
	AdjustmentReason      string `json:"adjustment_reason"`
	OriginalStartTime     string `json:"original_start_time,omitempty"`
	TimeAdjustmentMinutes int    `json:"time_adjustment_minutes"`
}

type MetricDelta struct {
	Current   float64 `json:"current"`
	Optimized float64 `json:"optimized"`
	Change    float64 `json:"change"`
}

type ComparisonMetrics struct {
	TotalBuses          MetricDelta `json:"total_buses"`
	AverageDelayMinutes MetricDelta `json:"average_delay_minutes"`
	OnTimePercentage    MetricDelta `json:"on_time_percentage"`
}

type ScheduleComparison struct {
	CurrentSchedules   []ScheduleEntry   `json:"current_schedules"`
	OptimizedSchedules []ScheduleEntry   `json:"optimized_schedules"`
	ComparisonMetrics  ComparisonMetrics `json:"comparison_metrics"`
}

type RidershipComparison struct {
	PredictionData
	ActualRidership int     `json:"actual_ridership"`
	Accuracy        float64 `json:"accuracy"`
}

// FleetStats is the dashboard overview of the fleet.
type FleetStats struct {
	TotalBuses         int     `json:"total_buses"`
	OperationalBuses   int     `json:"operational_buses"`
	DelayedBuses       int     `json:"delayed_buses"`
	BrokenDownBuses    int     `json:"broken_down_buses"`
	AverageOccupancy   float64 `json:"average_occupancy_percentage"`
	ActiveAlerts       int     `json:"active_alerts"`
	PassengersLastHour int     `json:"passengers_last_hour"`
	SimulationSpeed    float64 `json:"simulation_speed"`
}
