package domain

import "time"

// LocalDateLayout formats SubscribedAtLocalDate.
const LocalDateLayout = "2006-01-02"

// DefaultVendorImageURL is used until vendors carry their own artwork.
const DefaultVendorImageURL = "https://dummyimage.com/64x64/000/fff"

// SubscriptionRecord is a customer's follow of a vendor. Unique by VendorID per role.
type SubscriptionRecord struct {
	ID                    string    `json:"id"`
	VendorID              string    `json:"vendorId"`
	Name                  string    `json:"name"`
	DistanceLabel         string    `json:"distance"`
	Description           string    `json:"description"`
	ImageURL              string    `json:"imageUrl"`
	SubscribedAtLocalDate string    `json:"subscribed"`
	CreatedAt             time.Time `json:"-"`
}

// SubscriptionFromProximity builds the ledger entry offered for a nearby vendor.
func SubscriptionFromProximity(rec ProximityRecord) SubscriptionRecord {
	return SubscriptionRecord{
		VendorID:      rec.CounterpartyID,
		Name:          rec.DisplayName,
		DistanceLabel: rec.DistanceLabel(),
		Description:   "Vendor managed by " + rec.ContactName,
		ImageURL:      DefaultVendorImageURL,
	}
}
