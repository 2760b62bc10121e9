package credstore

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

const sealedVersion = "v1"

// Keyring holds the value-sealing key derived from the device passphrase.
// Locking gates AccessibleWhenUnlocked entries; AccessibleAlways entries
// remain usable.
type Keyring struct {
	mu     sync.RWMutex
	key    []byte
	salt   []byte
	locked bool
}

// NewKeyring derives a 256-bit key with Argon2id.
func NewKeyring(passphrase, salt string) (*Keyring, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if salt == "" {
		return nil, errors.New("salt is required")
	}
	return &Keyring{key: deriveKey(passphrase, []byte(salt)), salt: []byte(salt)}, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}

// Lock makes AccessibleWhenUnlocked entries unreadable until Unlock.
func (k *Keyring) Lock() {
	k.mu.Lock()
	k.locked = true
	k.mu.Unlock()
}

// Unlock reopens the keyring when passphrase derives the same key.
func (k *Keyring) Unlock(passphrase string) error {
	candidate := deriveKey(passphrase, k.salt)
	k.mu.Lock()
	defer k.mu.Unlock()
	if subtle.ConstantTimeCompare(candidate, k.key) != 1 {
		return apperrors.NewForbidden("Incorrect device passphrase.")
	}
	k.locked = false
	return nil
}

func (k *Keyring) Locked() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.locked
}

// SealedStore encrypts values with XChaCha20-Poly1305 before handing them to
// the underlying store. The stored form is "v1:<policy>:<base64(nonce|ciphertext)>";
// the key is bound as additional data so records cannot be swapped between keys.
type SealedStore struct {
	inner   Store
	keyring *Keyring
}

// NewSealedStore wraps inner.
func NewSealedStore(inner Store, keyring *Keyring) *SealedStore {
	return &SealedStore{inner: inner, keyring: keyring}
}

func (s *SealedStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.inner.Exists(ctx, key)
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}

	policy, payload, err := splitSealed(raw)
	if err != nil {
		return "", apperrors.NewStorageCorrupt(key, err)
	}
	if policy == AccessibleWhenUnlocked && s.keyring.Locked() {
		return "", apperrors.NewStorageLocked(key)
	}

	plain, err := s.open(key, payload)
	if err != nil {
		return "", apperrors.NewStorageCorrupt(key, err)
	}
	return plain, nil
}

func (s *SealedStore) Set(ctx context.Context, key, value string, policy AccessPolicy) error {
	policy = normalizePolicy(policy)
	if policy == AccessibleWhenUnlocked && s.keyring.Locked() {
		return apperrors.NewStorageLocked(key)
	}

	sealed, err := s.seal(key, value)
	if err != nil {
		return apperrors.NewStorageFailure("seal", err)
	}
	encoded := fmt.Sprintf("%s:%d:%s", sealedVersion, policy, sealed)
	return s.inner.Set(ctx, key, encoded, policy)
}

func (s *SealedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *SealedStore) seal(key, value string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.keyring.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return base64.RawStdEncoding.EncodeToString(out), nil
}

func (s *SealedStore) open(key, payload string) (string, error) {
	data, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(s.keyring.key)
	if err != nil {
		return "", err
	}
	if len(data) < aead.NonceSize() {
		return "", errors.New("sealed value too short")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func splitSealed(raw string) (AccessPolicy, string, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || parts[0] != sealedVersion {
		return 0, "", errors.New("unrecognized sealed value")
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || !AccessPolicy(n).valid() {
		return 0, "", fmt.Errorf("invalid policy %q", parts[1])
	}
	return AccessPolicy(n), parts[2], nil
}
