package actor

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

// Claims is the JWT payload for actor tokens.
type Claims struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// TokenResolver issues and verifies actor tokens. An empty secret disables
// token auth entirely: every caller resolves to the default operator.
type TokenResolver struct {
	secret []byte
}

// NewTokenResolver creates a resolver signing with the given secret.
func NewTokenResolver(secret string) *TokenResolver {
	return &TokenResolver{secret: []byte(secret)}
}

// Generate issues a signed token for the given identity.
func (r *TokenResolver) Generate(id Identity, ttl time.Duration) (string, error) {
	if len(r.secret) == 0 {
		return "", cverrors.ErrUnauthorized
	}

	now := time.Now()
	claims := Claims{
		UserID:      id.ID,
		DisplayName: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}

// Resolve maps an Authorization header value to an identity.
// A missing header resolves to the default operator; a present but invalid
// token is rejected with ErrUnauthorized.
func (r *TokenResolver) Resolve(authHeader string) (Identity, error) {
	if authHeader == "" {
		return DefaultOperator, nil
	}

	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenStr == authHeader || tokenStr == "" {
		return Identity{}, cverrors.ErrUnauthorized
	}
	if len(r.secret) == 0 {
		return Identity{}, cverrors.ErrUnauthorized
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, cverrors.ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return Identity{}, cverrors.ErrUnauthorized
	}

	name := claims.DisplayName
	if name == "" {
		name = claims.UserID
	}
	return Identity{ID: claims.UserID, DisplayName: name}, nil
}
