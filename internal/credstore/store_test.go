package credstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE credentials (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		policy INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return NewSQLiteStore(db)
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if ok, err := store.Exists(ctx, KeyUserAccessToken); err != nil || ok {
		t.Fatalf("Exists on empty store = %v, %v", ok, err)
	}
	if _, err := store.Get(ctx, KeyUserAccessToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store err = %v, want ErrNotFound", err)
	}

	if err := store.Set(ctx, KeyUserAccessToken, `{"accessToken":"T1","expiry":1}`, AccessibleWhenUnlocked); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, KeyUserAccessToken, `{"accessToken":"T2","expiry":2}`, AccessibleWhenUnlocked); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err := store.Get(ctx, KeyUserAccessToken)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != `{"accessToken":"T2","expiry":2}` {
		t.Errorf("Get = %q, last write should win", got)
	}
	if ok, _ := store.Exists(ctx, KeyUserAccessToken); !ok {
		t.Error("Exists should report the stored key")
	}

	if err := store.Remove(ctx, KeyUserAccessToken); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, KeyUserAccessToken); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
	if _, err := store.Get(ctx, KeyUserAccessToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newTestSQLiteStore(t))
}

func TestSealedStore_RoundTrip(t *testing.T) {
	keyring, err := NewKeyring("device-pass", "salt")
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	exerciseStore(t, NewSealedStore(newTestSQLiteStore(t), keyring))
}

func TestSealedStore_ValuesAreNotStoredInClear(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	keyring, _ := NewKeyring("device-pass", "salt")
	store := NewSealedStore(inner, keyring)

	if err := store.Set(ctx, KeyUserType, "vendor", AccessibleAlways); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, _ := inner.Get(ctx, KeyUserType)
	if strings.Contains(raw, "vendor") || !strings.HasPrefix(raw, "v1:2:") {
		t.Errorf("raw value = %q", raw)
	}
}

func TestSealedStore_LockGatesWhenUnlockedEntries(t *testing.T) {
	ctx := context.Background()
	keyring, _ := NewKeyring("device-pass", "salt")
	store := NewSealedStore(NewMemoryStore(), keyring)

	_ = store.Set(ctx, KeyUserAccessToken, "secret", AccessibleWhenUnlocked)
	_ = store.Set(ctx, KeyUserType, "customer", AccessibleAlways)

	keyring.Lock()
	if _, err := store.Get(ctx, KeyUserAccessToken); !apperrors.HasCode(err, apperrors.CodeStorageLocked) {
		t.Errorf("locked Get err = %v, want STORAGE_LOCKED", err)
	}
	if err := store.Set(ctx, KeyUserAccessToken, "other", AccessibleWhenUnlocked); !apperrors.HasCode(err, apperrors.CodeStorageLocked) {
		t.Errorf("locked Set err = %v, want STORAGE_LOCKED", err)
	}
	if got, err := store.Get(ctx, KeyUserType); err != nil || got != "customer" {
		t.Errorf("always-accessible Get = %q, %v", got, err)
	}

	if err := keyring.Unlock("device-pass"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if got, err := store.Get(ctx, KeyUserAccessToken); err != nil || got != "secret" {
		t.Errorf("unlocked Get = %q, %v", got, err)
	}
}

func TestKeyring_UnlockRequiresPassphrase(t *testing.T) {
	keyring, _ := NewKeyring("device-pass", "salt")
	keyring.Lock()

	if err := keyring.Unlock("guess"); !apperrors.HasCode(err, apperrors.CodeAuthFailure) {
		t.Errorf("wrong passphrase err = %v", err)
	}
	if !keyring.Locked() {
		t.Fatal("keyring unlocked by a wrong passphrase")
	}
	if err := keyring.Unlock("device-pass"); err != nil || keyring.Locked() {
		t.Errorf("Unlock = %v, locked = %v", err, keyring.Locked())
	}
}

func TestSealedStore_CorruptValues(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	keyring, _ := NewKeyring("device-pass", "salt")
	store := NewSealedStore(inner, keyring)

	cases := map[string]string{
		"plain":      `{"accessToken":"T1"}`,
		"bad b64":    "v1:1:!!!",
		"bad policy": "v1:9:AAAA",
		"truncated":  "v1:1:AAAA",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_ = inner.Set(ctx, KeyUserAccessToken, raw, AccessibleWhenUnlocked)
			if _, err := store.Get(ctx, KeyUserAccessToken); !apperrors.HasCode(err, apperrors.CodeStorageCorrupt) {
				t.Errorf("Get err = %v, want STORAGE_CORRUPT", err)
			}
		})
	}

	// a record sealed under another key fails authentication
	other, _ := NewKeyring("other-pass", "salt")
	_ = NewSealedStore(inner, other).Set(ctx, KeyUserAccessToken, "secret", AccessibleWhenUnlocked)
	if _, err := store.Get(ctx, KeyUserAccessToken); !apperrors.HasCode(err, apperrors.CodeStorageCorrupt) {
		t.Errorf("foreign key Get err = %v, want STORAGE_CORRUPT", err)
	}
}

func TestNewKeyring_RequiresPassphrase(t *testing.T) {
	if _, err := NewKeyring("", "salt"); err == nil {
		t.Error("expected error for empty passphrase")
	}
}
