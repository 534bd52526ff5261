package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens are issued by the platform's login service; this package only
// verifies them and extracts the connection identity.

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated user bound to a connection.
type Identity struct {
	UserID   string
	Username string
}

type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses an HS256 token and returns the identity carried in its
// sub/name claims.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if strings.TrimSpace(c.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = c.Subject
	}
	return Identity{UserID: c.Subject, Username: name}, nil
}

// Mint signs a token for the given identity. Used by tests and the dev
// token tool; production tokens come from the login service.
func (v *Verifier) Mint(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Name: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

// FromHeader extracts a bearer token from an Authorization header value.
func FromHeader(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return h
}
