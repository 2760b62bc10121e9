package domain

import (
	"fmt"
	"math"
)

// ProximityRecord is one nearby counterparty, keyed by CounterpartyID.
type ProximityRecord struct {
	CounterpartyID string   `json:"counterpartyId"`
	DisplayName    string   `json:"displayName"`
	ContactName    string   `json:"contactName"`
	Coordinate     GeoPoint `json:"coordinate"`
	DistanceMeters float64  `json:"distanceMeters"`
}

// DistanceLabel renders the distance the way list rows show it.
func (r ProximityRecord) DistanceLabel() string {
	if r.DistanceMeters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(r.DistanceMeters)))
	}
	return fmt.Sprintf("%.1f km", r.DistanceMeters/1000)
}
