package domain

import (
	"math"
	"time"
)

const earthRadiusMeters = 6371000.0

// GeoPoint is a map-renderable coordinate.
type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// IsZero reports the (0,0) placeholder the device reports before a fix.
func (p GeoPoint) IsZero() bool {
	return p.Longitude == 0 && p.Latitude == 0
}

// PositionSample is one geolocation fix. Never persisted.
type PositionSample struct {
	Longitude  float64
	Latitude   float64
	Accuracy   float64
	CapturedAt time.Time
}

// Point drops the capture metadata.
func (s PositionSample) Point() GeoPoint {
	return GeoPoint{Longitude: s.Longitude, Latitude: s.Latitude}
}

// DistanceMeters is the haversine distance between two points.
func DistanceMeters(a, b GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
