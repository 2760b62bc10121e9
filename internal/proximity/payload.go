package proximity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/thelewala-agent/internal/domain"
)

// looseFloat accepts JSON numbers and numeric strings. A string may carry a
// unit suffix ("2.5 km"); only the leading number is read.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return errors.New("missing number")
	}
	if b[0] != '"' {
		v, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return err
		}
		*f = looseFloat(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := leadingFloat(s)
	if err != nil {
		return err
	}
	*f = looseFloat(v)
	return nil
}

func leadingFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			end++
			continue
		}
		break
	}
	for end > 0 {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return v, nil
		}
		end--
	}
	return 0, fmt.Errorf("not a number: %q", s)
}

// nearbyVendor is one element of a nearbyVendorsUpdate push. Coordinates are
// [lng, lat]; distance is in kilometers.
type nearbyVendor struct {
	Coordinates   []looseFloat `json:"coordinates"`
	BusinessName  string       `json:"businessName"`
	ContactPerson string       `json:"contactPerson"`
	Distance      *looseFloat  `json:"distance"`
	VendorID      string       `json:"vendorId"`
}

type nearbyPayload struct {
	NearbyVendors []json.RawMessage `json:"nearbyVendors"`
}

// DecodeNearbyVendors parses a nearbyVendorsUpdate payload. Malformed
// entries are skipped and counted.
func DecodeNearbyVendors(raw json.RawMessage) ([]domain.ProximityRecord, int, error) {
	var items []json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, 0, err
		}
	} else {
		var payload nearbyPayload
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, 0, err
		}
		items = payload.NearbyVendors
	}

	records := make([]domain.ProximityRecord, 0, len(items))
	skipped := 0
	for _, item := range items {
		var v nearbyVendor
		if err := json.Unmarshal(item, &v); err != nil {
			skipped++
			continue
		}
		if v.VendorID == "" || len(v.Coordinates) < 2 {
			skipped++
			continue
		}
		point := domain.GeoPoint{Longitude: float64(v.Coordinates[0]), Latitude: float64(v.Coordinates[1])}
		if point.IsZero() {
			skipped++
			continue
		}
		rec := domain.ProximityRecord{
			CounterpartyID: v.VendorID,
			DisplayName:    v.BusinessName,
			ContactName:    v.ContactPerson,
			Coordinate:     point,
		}
		if v.Distance != nil {
			rec.DistanceMeters = float64(*v.Distance) * 1000
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}
