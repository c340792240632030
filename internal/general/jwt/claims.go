package jwt

import (
	"time"

	"hailo/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims identify an actor: the subject is the rider or driver id.
type Claims struct {
	Role user.Role `json:"role"` // RIDER or DRIVER
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// NewActorClaims builds claims for actorID valid for ttl.
func NewActorClaims(actorID string, role user.Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   actorID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}

// ActorID is the token subject.
func (c *Claims) ActorID() string {
	return c.Subject
}
