// Package credstore persists the device session record and role tag.
package credstore

import (
	"context"
	"errors"
)

// Keys written by the session manager.
const (
	KeyUserAccessToken = "userAccessToken"
	KeyUserType        = "userType"
)

// AccessPolicy controls when an entry may be read or written.
type AccessPolicy int

const (
	// AccessibleWhenUnlocked entries are unavailable while the keyring is locked.
	AccessibleWhenUnlocked AccessPolicy = iota + 1
	// AccessibleAlways entries stay readable while locked.
	AccessibleAlways
)

func (p AccessPolicy) valid() bool {
	return p == AccessibleWhenUnlocked || p == AccessibleAlways
}

func normalizePolicy(p AccessPolicy) AccessPolicy {
	if !p.valid() {
		return AccessibleWhenUnlocked
	}
	return p
}

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("credential not found")

// Store is a small key-value store for secrets. Implementations must be safe
// for concurrent use; concurrent writes to one key are last-write-wins.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, policy AccessPolicy) error
	Remove(ctx context.Context, key string) error
}
