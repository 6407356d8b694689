package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/campushub/eventhub/internal/models"
)

const testSecret = "super-secret-test-key"

func TestGenerateAndParseToken(t *testing.T) {
	iss := NewIssuer(testSecret, time.Hour)

	token, err := iss.Generate("user-123", models.RoleStudent)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("UserID: got %q, want user-123", claims.UserID)
	}
	if claims.Role != models.RoleStudent {
		t.Errorf("Role: got %q, want student", claims.Role)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("lifetime: got %v, want 1h", got)
	}
}

func TestParseToken_InvalidSecret(t *testing.T) {
	token, err := NewIssuer(testSecret, time.Hour).Generate("user-abc", models.RoleFaculty)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := NewIssuer("wrong-secret", time.Hour).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	iss := NewIssuer(testSecret, time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	iss.Now = func() time.Time { return issued }
	token, err := iss.Generate("user-1", models.RoleAdmin)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	iss.Now = time.Now
	if _, err := iss.Parse(token); err == nil {
		t.Fatal("expected an expired token to be rejected")
	}
}

func TestParseToken_Malformed(t *testing.T) {
	iss := NewIssuer(testSecret, time.Hour)
	for _, tok := range []string{"", "not.a.real.token"} {
		if _, err := iss.Parse(tok); err == nil {
			t.Errorf("expected error for %q", tok)
		}
	}
}

func TestParseToken_UnknownRole(t *testing.T) {
	iss := NewIssuer(testSecret, time.Hour)
	token, _ := iss.Generate("user-1", models.UserRole("company"))
	if _, err := iss.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected a token with an unknown role to be rejected, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	iss := NewIssuer(testSecret, time.Hour)
	token, _ := iss.Generate("t-9", models.RoleTrainer)
	p, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.UserID != "t-9" || p.Role != models.RoleTrainer {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("expected the password to match")
	}
	if CheckPassword(hash, "battery staple") {
		t.Error("expected a wrong password to fail")
	}
	if CheckPassword("not-a-hash", "correct horse") {
		t.Error("expected a malformed hash to fail")
	}
}
