package types

import (
	"math"
	"time"
)

type BusStatus string

const (
	StatusOnTime      BusStatus = "on_time"
	StatusDelayed     BusStatus = "delayed"
	StatusCancelled   BusStatus = "cancelled"
	StatusBreakdown   BusStatus = "breakdown"
	StatusMaintenance BusStatus = "maintenance"
)

type WeatherImpact string

const (
	WeatherNormal    WeatherImpact = "normal"
	WeatherRain      WeatherImpact = "rain"
	WeatherHeavyRain WeatherImpact = "heavy_rain"
	WeatherFog       WeatherImpact = "fog"
	WeatherStorm     WeatherImpact = "storm"
)

// Valid reports whether w is a known weather tag.
func (w WeatherImpact) Valid() bool {
	switch w {
	case WeatherNormal, WeatherRain, WeatherHeavyRain, WeatherFog, WeatherStorm:
		return true
	}
	return false
}

type TrafficCondition string

const (
	TrafficNormal TrafficCondition = "normal"
	TrafficHeavy  TrafficCondition = "heavy"
	TrafficJam    TrafficCondition = "jam"
	TrafficClear  TrafficCondition = "clear"
)

func (t TrafficCondition) Valid() bool {
	switch t {
	case TrafficNormal, TrafficHeavy, TrafficJam, TrafficClear:
		return true
	}
	return false
}

// BreakdownDelayMinutes marks a bus as out of service in schedule views.
const BreakdownDelayMinutes = 999

type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`     // km/h
	Direction float64   `json:"direction"` // degrees, [0, 360)
	Timestamp time.Time `json:"timestamp"`
}

type Schedule struct {
	PlannedDeparture time.Time  `json:"planned_departure"`
	PlannedArrival   time.Time  `json:"planned_arrival"`
	ActualDeparture  *time.Time `json:"actual_departure,omitempty"`
	ActualArrival    *time.Time `json:"actual_arrival,omitempty"`
	DelayMinutes     int        `json:"delay_minutes"`
}

// Bus is the single canonical fleet entity.
type Bus struct {
	BusID               int              `json:"bus_id"`
	LicensePlate        string           `json:"license_plate"`
	RouteID             int              `json:"route_id"`
	Route               RouteSummary     `json:"route"`
	Capacity            int              `json:"capacity"`
	Status              BusStatus        `json:"status"`
	CurrentPosition     Position         `json:"current_position"`
	Occupancy           int              `json:"occupancy"`
	OccupancyPercentage int              `json:"occupancy_percentage"`
	Schedule            Schedule         `json:"schedule"`
	WeatherImpact       WeatherImpact    `json:"weather_impact"`
	TrafficCondition    TrafficCondition `json:"traffic_condition"`
	BreakdownReason     string           `json:"breakdown_reason,omitempty"`
	IsOperational       bool             `json:"is_operational"`
	LastStop            string           `json:"last_stop"`
	NextStop            string           `json:"next_stop"`
	EstimatedArrival    time.Time        `json:"estimated_arrival"`
}

// OccupancyPercent is round(100*occupancy/capacity), or 0 for a non-positive capacity.
func OccupancyPercent(occupancy, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return int(math.Round(float64(occupancy) * 100 / float64(capacity)))
}

// SetOccupancy clamps n into [0, capacity] and refreshes the percentage.
func (b *Bus) SetOccupancy(n int) {
	if n < 0 {
		n = 0
	}
	if n > b.Capacity {
		n = b.Capacity
	}
	b.Occupancy = n
	b.OccupancyPercentage = OccupancyPercent(n, b.Capacity)
}

// Clone returns a copy that shares no mutable state with b.
func (b Bus) Clone() Bus {
	out := b
	out.Route.Stops = append([]string(nil), b.Route.Stops...)
	if b.Schedule.ActualDeparture != nil {
		t := *b.Schedule.ActualDeparture
		out.Schedule.ActualDeparture = &t
	}
	if b.Schedule.ActualArrival != nil {
		t := *b.Schedule.ActualArrival
		out.Schedule.ActualArrival = &t
	}
	return out
}
