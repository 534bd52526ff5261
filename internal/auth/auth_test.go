package auth

import (
	"testing"
	"time"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	tok, err := v.Mint(Identity{UserID: "u1", Username: "Alice"}, time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != "u1" || id.Username != "Alice" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := NewVerifier("secret-a").Mint(Identity{UserID: "u1", Username: "Alice"}, time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := NewVerifier("secret-b").Verify(tok); err == nil {
		t.Fatalf("expected error for token signed with another secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier("test-secret")
	tok, err := v.Mint(Identity{UserID: "u1", Username: "Alice"}, -time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := v.Verify(tok); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestVerifyRejectsEmpty(t *testing.T) {
	if _, err := NewVerifier("s").Verify(""); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestFromHeader(t *testing.T) {
	if got := FromHeader("Bearer abc"); got != "abc" {
		t.Fatalf("FromHeader bearer: %q", got)
	}
	if got := FromHeader("abc"); got != "abc" {
		t.Fatalf("FromHeader raw: %q", got)
	}
	if got := FromHeader(""); got != "" {
		t.Fatalf("FromHeader empty: %q", got)
	}
}
