// Package realtime maintains the authenticated presence channel to the
// discovery service.
package realtime

import (
	"encoding/json"

	"github.com/spec-kit/thelewala-agent/internal/domain"
)

// Event names on the wire.
const (
	EventVendorPeriodicUpdates   = "vendorPeriodicUpdates"
	EventCustomerPeriodicUpdates = "customerPeriodicUpdates"
	EventStartSelling            = "startSelling"
	EventStopSelling             = "stopSelling"
	EventWelcome                 = "welcome"
	EventNearbyVendorsUpdate     = "nearbyVendorsUpdate"
)

// Frame is the envelope for every message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PositionPayload is the data of every outbound position frame.
type PositionPayload struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// WelcomePayload is sent by the server once per connection.
type WelcomePayload struct {
	Message  string `json:"message"`
	ClientID string `json:"clientId"`
}

func positionFrame(event string, sample domain.PositionSample) (Frame, error) {
	data, err := json.Marshal(PositionPayload{Longitude: sample.Longitude, Latitude: sample.Latitude})
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: data}, nil
}

// periodicEvent is the position report event for role.
func periodicEvent(role domain.ActorRole) string {
	if role == domain.RoleVendor {
		return EventVendorPeriodicUpdates
	}
	return EventCustomerPeriodicUpdates
}
