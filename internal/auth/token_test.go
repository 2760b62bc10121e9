package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestTokenInspector_ExpiryOf(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signToken(t, &Claims{
		Role: "vendor",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "v-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	ti := NewTokenInspector()
	got, ok := ti.ExpiryOf(tok)
	if !ok {
		t.Fatal("expected an expiry")
	}
	if !got.Equal(exp) {
		t.Errorf("ExpiryOf = %v, want %v", got, exp)
	}

	claims, err := ti.Inspect(tok)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if claims.Role != "vendor" || claims.Subject != "v-1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenInspector_ExpiredTokenStillInspected(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	tok := signToken(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}})

	got, ok := NewTokenInspector().ExpiryOf(tok)
	if !ok || !got.Equal(exp) {
		t.Errorf("ExpiryOf = %v, %v", got, ok)
	}
}

func TestTokenInspector_OpaqueTokens(t *testing.T) {
	ti := NewTokenInspector()
	for _, tok := range []string{"", "opaque-token", "a.b.c"} {
		if _, ok := ti.ExpiryOf(tok); ok {
			t.Errorf("ExpiryOf(%q) should report no expiry", tok)
		}
	}

	noExp := signToken(t, &Claims{Role: "customer"})
	if _, ok := ti.ExpiryOf(noExp); ok {
		t.Error("token without exp should report no expiry")
	}
}
