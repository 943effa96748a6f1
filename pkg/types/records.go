package types

import "time"

type TicketSale struct {
	TicketID       int       `json:"ticket_id"`
	BusID          int       `json:"bus_id"`
	RouteID        int       `json:"route_id"`
	PassengerCount int       `json:"passenger_count"`
	Timestamp      time.Time `json:"timestamp"`
	Price          float64   `json:"price"`
	StopBoarding   string    `json:"stop_boarding"`
	StopAlighting  string    `json:"stop_alighting"`
}

type GPSLog struct {
	LogID     int       `json:"log_id"`
	BusID     int       `json:"bus_id"`
	RouteID   int       `json:"route_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	Direction float64   `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
	StopID    string    `json:"stop_id,omitempty"`
	Geohash   string    `json:"geohash"`
}

type PredictionFactors struct {
	Weather           float64 `json:"weather"`
	DayOfWeek         int     `json:"day_of_week"`
	HistoricalAverage float64 `json:"historical_average"`
	Events            float64 `json:"events"`
}

// PredictionData is an immutable forecast for one (route, hour) pair. Newer
// records supersede older ones for the same key.
type PredictionData struct {
	RouteID            int               `json:"route_id"`
	Hour               int               `json:"hour"`
	PredictedRidership int               `json:"predicted_ridership"`
	ActualRidership    *int              `json:"actual_ridership,omitempty"`
	Confidence         float64           `json:"confidence"`
	Timestamp          time.Time         `json:"timestamp"`
	ForecastFor        time.Time         `json:"forecast_for"`
	Factors            PredictionFactors `json:"factors"`
}
