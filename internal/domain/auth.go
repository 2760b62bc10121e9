package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActorRole differentiates vendor vs customer sessions.
type ActorRole string

const (
	RoleVendor   ActorRole = "vendor"
	RoleCustomer ActorRole = "customer"
)

// ParseActorRole accepts the persisted userType tag.
func ParseActorRole(s string) (ActorRole, error) {
	switch ActorRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleVendor:
		return RoleVendor, nil
	case RoleCustomer:
		return RoleCustomer, nil
	default:
		return "", fmt.Errorf("unknown actor role %q", s)
	}
}

// Counterpart returns the role whose presence this role discovers.
func (r ActorRole) Counterpart() ActorRole {
	if r == RoleVendor {
		return RoleCustomer
	}
	return RoleVendor
}

// AuthState is the session manager's state.
type AuthState string

const (
	AuthStateUnknown         AuthState = "UNKNOWN"
	AuthStateUnauthenticated AuthState = "UNAUTHENTICATED"
	AuthStateAuthenticated   AuthState = "AUTHENTICATED"
)

// Session is the one credential held per device.
type Session struct {
	BearerToken       string
	ExpiryEpochMillis int64
	Role              ActorRole
}

// ExpiresAt returns the expiry as a time.
func (s Session) ExpiresAt() time.Time {
	return time.UnixMilli(s.ExpiryEpochMillis)
}

// ValidAt reports whether the session can be used at now.
func (s Session) ValidAt(now time.Time) bool {
	return s.BearerToken != "" && s.ExpiryEpochMillis > 0 && now.UnixMilli() < s.ExpiryEpochMillis
}
