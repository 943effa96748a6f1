package types

import "fleetsim/pkg/geo"

type StopType string

const (
	StopMajor        StopType = "major"
	StopIntermediate StopType = "intermediate"
)

// Stop is a named point on a route polyline.
type Stop struct {
	Name     string         `json:"name" yaml:"name" validate:"required"`
	Location geo.Coordinate `json:"location" yaml:"location"`
	Type     StopType       `json:"type" yaml:"type" validate:"omitempty,oneof=major intermediate"`
}

// Route is an immutable catalog entry. Stops are ordered and the first stop is
// the route's source.
type Route struct {
	RouteID        int     `json:"route_id" yaml:"route_id" validate:"gt=0"`
	Source         string  `json:"source" yaml:"source" validate:"required"`
	Destination    string  `json:"destination" yaml:"destination" validate:"required"`
	Stops          []Stop  `json:"stops" yaml:"stops" validate:"min=2,dive"`
	DistanceKM     float64 `json:"distance" yaml:"distance_km" validate:"gte=0"`
	Color          string  `json:"color" yaml:"color"`
	HeadwayMinutes int     `json:"frequency_minutes" yaml:"headway_minutes" validate:"gte=0"`
}

// Coordinates returns the stop locations in order.
func (r *Route) Coordinates() []geo.Coordinate {
	coords := make([]geo.Coordinate, len(r.Stops))
	for i, s := range r.Stops {
		coords[i] = s.Location
	}
	return coords
}

// StopNames returns every stop name after the source.
func (r *Route) StopNames() []string {
	if len(r.Stops) < 2 {
		return nil
	}
	names := make([]string, 0, len(r.Stops)-1)
	for _, s := range r.Stops[1:] {
		names = append(names, s.Name)
	}
	return names
}

// Summary is the denormalised view embedded in each bus.
func (r *Route) Summary() RouteSummary {
	return RouteSummary{
		Source:      r.Source,
		Destination: r.Destination,
		Stops:       r.StopNames(),
		DistanceKM:  r.DistanceKM,
		Color:       r.Color,
	}
}

type RouteSummary struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Stops       []string `json:"stops"`
	DistanceKM  float64  `json:"distance"`
	Color       string   `json:"color,omitempty"`
}
