package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParse_ValidHS256(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !claims.IsAdmin() {
		t.Fatalf("expected admin claims, got %+v", claims)
	}
}

func TestParse_RejectsUnexpectedAlgorithm(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   RoleAdmin,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS384, claims)
	tokenStr, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := Parse(secret, tokenStr); err == nil {
		t.Fatalf("expected parse to reject non-HS256 token")
	}
}

func TestParse_RejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, RoleAdmin, -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := Parse(secret, token); err == nil {
		t.Fatalf("expected parse to reject expired token")
	}
}

func TestAdminKeyRoundTrip(t *testing.T) {
	hash, err := HashAdminKey("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashAdminKey: %v", err)
	}

	if err := VerifyAdminKey(hash, "correct horse battery staple"); err != nil {
		t.Fatalf("VerifyAdminKey: %v", err)
	}
	if err := VerifyAdminKey(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatched key to fail")
	}
	if err := VerifyAdminKey("", "anything"); err == nil {
		t.Fatalf("expected empty hash to fail")
	}
}
