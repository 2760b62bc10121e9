package dto

import "github.com/spec-kit/thelewala-agent/internal/domain"

// SubscribeRequest adds a vendor the UI already knows about.
type SubscribeRequest struct {
	VendorID      string `json:"vendorId"`
	Name          string `json:"name"`
	DistanceLabel string `json:"distance"`
	Description   string `json:"description"`
	ImageURL      string `json:"imageUrl"`
}

// SubscriptionListResponse lists ledger entries.
type SubscriptionListResponse struct {
	Subscriptions []domain.SubscriptionRecord `json:"subscriptions"`
	Count         int                         `json:"count"`
}
