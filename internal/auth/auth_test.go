package auth

import (
	"context"
	"testing"
	"time"
)

func setSecret(t *testing.T) {
	t.Helper()
	t.Setenv("WARDEN_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidate(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("u1", "c1", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "u1" || claims.CommunityID != "c1" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.SessionID == "" {
		t.Fatal("session id missing")
	}
}

func TestValidateRejectsTampering(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("u1", "c1", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAndValidate(token + "x"); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("u1", "c1", time.Millisecond)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	t.Setenv("WARDEN_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("u1", "c1", time.Hour); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := ContextWithPrincipal(context.Background(), Principal{UserID: "u1", CommunityID: "c1", SessionID: "s1"})
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID != "u1" || p.SessionID != "s1" {
		t.Fatalf("principal = %+v, ok=%v", p, ok)
	}
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("empty context must not carry a principal")
	}
}
