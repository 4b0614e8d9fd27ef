package tokens

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := jt.SignedString([]byte("test-secret-32-bytes-should-be-long"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestDecode_Claims(t *testing.T) {
	now := time.Now().Unix()
	tok := signedToken(t, jwt.MapClaims{
		"sub":   "user-123",
		"email": "test@example.com",
		"name":  "Test User",
		"iat":   now,
		"exp":   now + 900,
	})

	p, err := Decode(tok)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if p.Subject != "user-123" || p.Email != "test@example.com" || p.Name != "Test User" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.ExpiresAt != now+900 || p.IssuedAt != now {
		t.Fatalf("unexpected timestamps: %+v", p)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, tok := range []string{"", "not.a.jwt", "onlyonepart"} {
		if _, err := Decode(tok); !errors.Is(err, ErrDecode) {
			t.Fatalf("Decode(%q) = %v, want ErrDecode", tok, err)
		}
	}
}

func TestDecode_MissingExp(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "u1"})
	if _, err := Decode(tok); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for token without exp, got %v", err)
	}
}

func TestIsExpired_PastExp(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()})
	if !IsExpired(tok, 0) {
		t.Fatalf("token with past exp should be expired at threshold 0")
	}
}

func TestIsExpired_FutureExp(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(10 * time.Minute).Unix()})
	if IsExpired(tok, 0) {
		t.Fatalf("token with future exp should not be expired at threshold 0")
	}
	if IsExpired(tok, DefaultExpiryThreshold) {
		t.Fatalf("token well beyond the threshold should not be expired")
	}
}

func TestIsExpired_WithinThreshold(t *testing.T) {
	// expires in 30s: valid strictly, expired with the 60s margin
	tok := signedToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(30 * time.Second).Unix()})
	if IsExpired(tok, 0) {
		t.Fatalf("token should still be valid at threshold 0")
	}
	if !IsExpired(tok, DefaultExpiryThreshold) {
		t.Fatalf("token inside the threshold window should count as expired")
	}
}

func TestIsExpired_MalformedFailsClosed(t *testing.T) {
	if !IsExpired("garbage", 0) {
		t.Fatalf("malformed token must be treated as expired")
	}
}

func TestExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	tok := signedToken(t, jwt.MapClaims{"sub": "u1", "exp": exp})
	if got := Expiry(tok).Unix(); got != exp {
		t.Fatalf("Expiry = %d, want %d", got, exp)
	}
	if !Expiry("garbage").IsZero() {
		t.Fatalf("Expiry of malformed token should be zero time")
	}
}
