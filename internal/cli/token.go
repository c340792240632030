package cli

import (
	"fmt"
	"time"

	"hailo/internal/domain/user"
	"hailo/internal/general/jwt"
)

// GenerateToken mints a JWT for a rider or driver and returns the raw token plus the claims.
//
// Typical use (dev-only):
//
//	token, _, err := cli.GenerateToken(secret, 2*time.Hour, "rider-1", "RIDER")
//
// Keep this package dev/internal only. Do not call it from production code paths.
func GenerateToken(secret string, ttl time.Duration, actorID string, roleStr string) (string, jwt.Claims, error) {
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}

	mgr, err := jwt.NewManager(secret, ttl)
	if err != nil {
		return "", jwt.Claims{}, err
	}

	token, claims, err := mgr.Issue(actorID, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
