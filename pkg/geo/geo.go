package geo

import "math"

const earthRadiusKM = 6371.0

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// Interpolate returns the point at fractional index progress along stops.
// Progress at or past the last index clamps to the last stop and progress at
// or below zero returns the first. Wraparound is left to the caller.
func Interpolate(progress float64, stops []Coordinate) Coordinate {
	switch {
	case len(stops) == 0:
		return Coordinate{}
	case progress <= 0 || len(stops) == 1:
		return stops[0]
	case progress >= float64(len(stops)-1):
		return stops[len(stops)-1]
	}

	idx := int(math.Floor(progress))
	frac := progress - float64(idx)
	from, to := stops[idx], stops[idx+1]

	return Coordinate{
		Lat: from.Lat + (to.Lat-from.Lat)*frac,
		Lng: from.Lng + (to.Lng-from.Lng)*frac,
	}
}

// Bearing returns the initial great-circle bearing from one point to another
// in degrees within [0, 360). Coincident points yield 0.
func Bearing(from, to Coordinate) float64 {
	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)
	dLng := toRadians(to.Lng - from.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	b := math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
	if b >= 360 {
		b = 0
	}
	return b
}

// HaversineKM returns the great-circle distance between two points in kilometres.
func HaversineKM(a, b Coordinate) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathLengthKM sums the haversine distance along consecutive points.
func PathLengthKM(points []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineKM(points[i-1], points[i])
	}
	return total
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
