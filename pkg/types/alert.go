package types

import "time"

type AlertType string

const (
	AlertDelay        AlertType = "delay"
	AlertCancellation AlertType = "cancellation"
	AlertReschedule   AlertType = "reschedule"
	AlertCongestion   AlertType = "congestion"
	AlertMaintenance  AlertType = "maintenance"
	AlertBreakdown    AlertType = "breakdown"
	AlertWeather      AlertType = "weather"
	AlertTraffic      AlertType = "traffic"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Alert struct {
	ID               string    `json:"id"`
	Type             AlertType `json:"type"`
	Severity         Severity  `json:"severity"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	RouteID          int       `json:"route_id"`
	BusID            int       `json:"bus_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Resolved         bool      `json:"resolved"`
	WeatherCondition string    `json:"weather_condition,omitempty"`
	BreakdownReason  string    `json:"breakdown_reason,omitempty"`
	AffectedStops    []string  `json:"affected_stops,omitempty"`
}

func (a Alert) Clone() Alert {
	out := a
	out.AffectedStops = append([]string(nil), a.AffectedStops...)
	return out
}
