package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecode marks a structurally invalid bearer token.
var ErrDecode = errors.New("malformed token")

// DefaultExpiryThreshold is the defensive margin applied to expiry checks
// so a token does not expire mid-request.
const DefaultExpiryThreshold = 60 * time.Second

// Payload is the self-describing part of an access token. The gateway
// never verifies the signature; the issuing backend is trusted and
// invalid tokens are rejected by the backend on the next call anyway.
type Payload struct {
	Subject   string
	Email     string
	Name      string
	IssuedAt  int64
	ExpiresAt int64
}

// Decode parses the token payload without signature verification.
// Returns an ErrDecode-wrapped error when the token is not a well-formed
// JWT or carries no exp claim.
func Decode(token string) (*Payload, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrDecode)
	}

	p := &Payload{ExpiresAt: exp.Unix()}
	if sub, err := claims.GetSubject(); err == nil {
		p.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		p.Name = name
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		p.IssuedAt = iat.Unix()
	}
	return p, nil
}

// IsExpired reports whether the token is expired, or expires within the
// given threshold. Undecodable tokens count as expired (fail-closed).
// Use threshold 0 for a strict check.
func IsExpired(token string, threshold time.Duration) bool {
	p, err := Decode(token)
	if err != nil {
		return true
	}
	return p.ExpiresAt <= time.Now().Add(threshold).Unix()
}

// Expiry returns the token's expiry instant, or the zero time when the
// token cannot be decoded.
func Expiry(token string) time.Time {
	p, err := Decode(token)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(p.ExpiresAt, 0)
}
