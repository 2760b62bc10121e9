package domain

import (
	"math"
	"testing"
	"time"

	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		ok    bool
	}{
		{"valid", Credentials{Email: "a@b.com", Password: "secret1"}, true},
		{"empty email", Credentials{Email: "  ", Password: "secret1"}, false},
		{"empty password", Credentials{Email: "a@b.com", Password: "   "}, false},
		{"malformed email", Credentials{Email: "a.b.com", Password: "secret1"}, false},
		{"short password", Credentials{Email: "a@b.com", Password: "abc"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.ok && !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
				t.Fatalf("Validate = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestCredentials_Normalize(t *testing.T) {
	got := Credentials{Email: "  A@B.Com ", Password: " pw ", PhoneNumber: " 123 "}.Normalize()
	if got.Email != "a@b.com" {
		t.Errorf("Email = %q", got.Email)
	}
	if got.Password != " pw " {
		t.Errorf("Password should not be trimmed, got %q", got.Password)
	}
	if got.PhoneNumber != "123" {
		t.Errorf("PhoneNumber = %q", got.PhoneNumber)
	}
}

func TestVendorSignUp_Validate(t *testing.T) {
	valid := VendorSignUp{
		BusinessName:     "Chai Corner",
		ContactPerson:    "Ravi",
		Email:            "ravi@chai.in",
		PhoneNumber:      "9999999999",
		Password:         "secret1",
		ConfirmPassword:  "secret1",
		BusinessCategory: "Restaurant",
		BusinessAddress:  "MG Road",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	mismatch := valid
	mismatch.ConfirmPassword = "secret2"
	if err := mismatch.Validate(); apperrors.UserMessage(err) != "Passwords do not match." {
		t.Errorf("mismatch: %v", err)
	}

	noCategory := valid
	noCategory.BusinessCategory = " "
	if err := noCategory.Validate(); apperrors.UserMessage(err) != "Business category is required." {
		t.Errorf("no category: %v", err)
	}

	noAddress := valid
	noAddress.BusinessAddress = ""
	if err := noAddress.Validate(); apperrors.UserMessage(err) != "Business address is required." {
		t.Errorf("no address: %v", err)
	}
}

func TestCustomerSignUp_Validate(t *testing.T) {
	valid := CustomerSignUp{FirstName: "Asha", LastName: "K", Email: "asha@x.io", PhoneNumber: "1", Password: "secret1"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	missing := valid
	missing.PhoneNumber = ""
	if err := missing.Validate(); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("missing phone: %v", err)
	}
}

func TestSession_ValidAt(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := Session{BearerToken: "T1", ExpiryEpochMillis: now.UnixMilli() + 1}
	if !s.ValidAt(now) {
		t.Error("session expiring in the future should be valid")
	}
	s.ExpiryEpochMillis = now.UnixMilli()
	if s.ValidAt(now) {
		t.Error("session expiring now should be invalid")
	}
	if (Session{ExpiryEpochMillis: now.UnixMilli() + 1000}).ValidAt(now) {
		t.Error("session without token should be invalid")
	}
}

func TestParseActorRole(t *testing.T) {
	if r, err := ParseActorRole(" Vendor "); err != nil || r != RoleVendor {
		t.Errorf("ParseActorRole = %v, %v", r, err)
	}
	if _, err := ParseActorRole("staff"); err == nil {
		t.Error("unknown role should fail")
	}
	if RoleVendor.Counterpart() != RoleCustomer || RoleCustomer.Counterpart() != RoleVendor {
		t.Error("Counterpart mismatch")
	}
}

func TestDistanceMeters(t *testing.T) {
	a := GeoPoint{Longitude: 77.2090, Latitude: 28.6139}
	if d := DistanceMeters(a, a); d != 0 {
		t.Errorf("distance to self = %v", d)
	}
	// one degree of latitude is roughly 111.2 km
	b := GeoPoint{Longitude: 77.2090, Latitude: 29.6139}
	if d := DistanceMeters(a, b); math.Abs(d-111195) > 200 {
		t.Errorf("distance = %v, want ~111195", d)
	}
}

func TestSubscriptionFromProximity(t *testing.T) {
	rec := ProximityRecord{CounterpartyID: "v1", DisplayName: "Chai Corner", ContactName: "Ravi", DistanceMeters: 1520}
	sub := SubscriptionFromProximity(rec)
	if sub.VendorID != "v1" || sub.Name != "Chai Corner" {
		t.Errorf("unexpected record %+v", sub)
	}
	if sub.Description != "Vendor managed by Ravi" {
		t.Errorf("Description = %q", sub.Description)
	}
	if sub.DistanceLabel != "1.5 km" {
		t.Errorf("DistanceLabel = %q", sub.DistanceLabel)
	}
	if sub.SubscribedAtLocalDate != "" {
		t.Error("date is stamped by the ledger, not the builder")
	}
}
