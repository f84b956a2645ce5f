package auth

import (
	"testing"
	"time"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	a, err := NewAuthenticator("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	token, expiresAt, err := a.GenerateClientToken("satellite-1")
	if err != nil {
		t.Fatalf("GenerateClientToken() error = %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("Expected expiry in the future, got %v", expiresAt)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.ClientID != "satellite-1" || claims.Subject != "satellite-1" {
		t.Errorf("Unexpected client id: %+v", claims)
	}
	if claims.Role != RoleBusClient {
		t.Errorf("Expected role %q, got %q", RoleBusClient, claims.Role)
	}
}

func TestAuthenticator_RejectsInvalidTokens(t *testing.T) {
	a, _ := NewAuthenticator("test-secret", time.Hour)
	other, _ := NewAuthenticator("other-secret", time.Hour)
	expired, _ := NewAuthenticator("test-secret", time.Hour)
	expired.ttl = -time.Minute

	foreign, _, _ := other.GenerateClientToken("satellite-1")
	stale, _, _ := expired.GenerateClientToken("satellite-1")

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: stale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.ValidateToken(tt.token); err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}
}

func TestAuthenticator_Validation(t *testing.T) {
	if _, err := NewAuthenticator("", time.Hour); err == nil {
		t.Error("Expected error for empty secret")
	}

	a, _ := NewAuthenticator("test-secret", 0)
	if a.ttl != DefaultTokenTTL {
		t.Errorf("Expected default ttl, got %v", a.ttl)
	}
	if _, _, err := a.GenerateClientToken(""); err == nil {
		t.Error("Expected error for empty client id")
	}
}
