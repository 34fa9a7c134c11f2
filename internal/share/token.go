// Package share issues and verifies signed links to a restaurant's extracted
// menu.
package share

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid share token")

// DevSecret signs tokens when no secret is configured.
const DevSecret = "dev-share-secret"

type claims struct {
	jwt.RegisteredClaims
	GeneratedAt string `json:"gen"`
}

// Signer creates and checks HS256 share tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer. An empty secret falls back to DevSecret; a
// zero ttl issues tokens that never expire.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if secret == "" {
		secret = DevSecret
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue binds a restaurant and its menu generation time into a token.
func (s *Signer) Issue(restaurantID string, generatedAt time.Time) (string, error) {
	if restaurantID == "" || generatedAt.IsZero() {
		return "", errors.New("restaurant id and generation time are required")
	}

	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  restaurantID,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339Nano),
	}
	if s.ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature, expiry and restaurant, returning the
// generation time it carries.
func (s *Signer) Verify(token, restaurantID string) (time.Time, error) {
	if token == "" {
		return time.Time{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Subject != restaurantID {
		return time.Time{}, ErrInvalidToken
	}

	gen, err := time.Parse(time.RFC3339Nano, c.GeneratedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad generation time", ErrInvalidToken)
	}
	return gen, nil
}

// BuildURL returns <origin>/menu/<identifier>?share=<token>, or "" when
// identifier or token is missing.
func BuildURL(origin, identifier, token string) string {
	if identifier == "" || token == "" {
		return ""
	}
	return strings.TrimRight(origin, "/") + "/menu/" + url.PathEscape(identifier) + "?share=" + url.QueryEscape(token)
}
