package dto

import "github.com/spec-kit/thelewala-agent/internal/domain"

// AddressRequest payload for POST /customer/address.
type AddressRequest struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CustomerAddress is one saved customer address; Coordinate is [lng, lat].
type CustomerAddress struct {
	ID         string     `json:"id"`
	Address    string     `json:"address"`
	Coordinate [2]float64 `json:"coordinate"`
	CreatedAt  string     `json:"createdAt"`
}

// CustomerLocation groups a customer's addresses.
type CustomerLocation struct {
	CustomerID   string            `json:"customerId"`
	CustomerName string            `json:"customerName"`
	Addresses    []CustomerAddress `json:"addresses"`
}

// CustomerLocationsData is the data field of the customer-locations response.
type CustomerLocationsData struct {
	VendorID       string             `json:"vendorId"`
	Customers      []CustomerLocation `json:"customers"`
	TotalCustomers int                `json:"totalCustomers"`
	TotalAddresses int                `json:"totalAddresses"`
	Timestamp      string             `json:"timestamp"`
}

// CustomerLocationsResponse is returned by GET /vendor/address/customer-locations.
type CustomerLocationsResponse struct {
	Success bool                  `json:"success"`
	Data    CustomerLocationsData `json:"data"`
}

// StreamResponse reports the presence state after a stream action.
type StreamResponse struct {
	Streaming    bool   `json:"streaming"`
	ChannelState string `json:"channelState"`
	ClientID     string `json:"clientId,omitempty"`
}

// DirectoryResponse lists nearby counterparties.
type DirectoryResponse struct {
	Records []DirectoryRecord `json:"records"`
	Count   int               `json:"count"`
}

// DirectoryRecord is a nearby counterparty with its rendered distance.
type DirectoryRecord struct {
	domain.ProximityRecord
	DistanceLabel string `json:"distance"`
	Subscribed    bool   `json:"subscribed"`
}

// PointsResponse carries the map projection.
type PointsResponse struct {
	Points []domain.GeoPoint `json:"points"`
}

// RegisterAddressResponse echoes the saved address.
type RegisterAddressResponse struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
