package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kfreiman/careerlink/internal/orchestrate"
)

// ErrNoSubject is returned when a token carries no subject claim.
var ErrNoSubject = errors.New("token has no subject claim")

// ClaimsFromToken reads the identity carried by a JWT: sub, email and name.
// The signature is not verified; the backend does that when the token is
// presented.
func ClaimsFromToken(token string) (orchestrate.Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return orchestrate.Identity{}, fmt.Errorf("parse token claims: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return orchestrate.Identity{}, fmt.Errorf("read subject: %w", err)
	}
	if sub == "" {
		return orchestrate.Identity{}, ErrNoSubject
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return orchestrate.Identity{
		ID:          sub,
		Email:       email,
		DisplayName: name,
	}, nil
}
