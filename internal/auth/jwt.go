// Package auth is the identity collaborator boundary: it turns a bearer
// credential into an identity snapshot, or refuses the connection.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coursehub/liveclass/internal/domain"
)

// Claims carried by the platform's access tokens.
type Claims struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
	jwt.RegisteredClaims
}

// Verifier resolves bearer credentials into identities.
type Verifier interface {
	Verify(token string) (domain.Identity, error)
}

type hmacVerifier struct {
	secret []byte
}

func NewVerifier(secret string) Verifier {
	return &hmacVerifier{secret: []byte(secret)}
}

func (v *hmacVerifier) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, domain.ErrAuthFailed
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, domain.ErrAuthFailed
	}
	if claims.Subject == "" || !claims.Active {
		return domain.Identity{}, domain.ErrAuthFailed
	}

	role := domain.IdentityRole(claims.Role)
	switch role {
	case domain.RoleAdmin, domain.RoleModerator, domain.RoleMember:
	default:
		role = domain.RoleMember
	}

	return domain.Identity{
		ID:     domain.IdentityID(claims.Subject),
		Name:   claims.Name,
		Avatar: claims.Avatar,
		Role:   role,
		Active: claims.Active,
	}, nil
}

// IssueToken mints a token for the given identity; used by tests and by
// the platform's auth service in development.
func IssueToken(secret string, id domain.Identity, ttl time.Duration) (string, error) {
	claims := &Claims{
		Name:   id.Name,
		Avatar: id.Avatar,
		Role:   string(id.Role),
		Active: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(id.ID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "liveclass",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
