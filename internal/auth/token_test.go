package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Generate("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Expected subject user-1, got %q", claims.Subject)
	}
	if claims.Email != "a@example.com" {
		t.Errorf("Expected email a@example.com, got %q", claims.Email)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a", time.Hour).Generate("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := NewTokenIssuer("secret-b", time.Hour).Verify(token); err == nil {
		t.Error("Expected verification to fail with a different secret")
	}
}

func TestVerify_Expired(t *testing.T) {
	issuer := NewTokenIssuer("secret", -time.Minute)
	token, err := issuer.Generate("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Error("Expected verification of an expired token to fail")
	}
}

func TestVerify_Garbage(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	if _, err := issuer.Verify("not-a-token"); err == nil {
		t.Error("Expected garbage token to be rejected")
	}
}
