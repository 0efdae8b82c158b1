package utils // package utils provides token helpers shared by services and tests

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed HS256 bearer token with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs a token carrying the claims middleware.JWTAuth
// reads: sub (the opaque user id issued by the auth provider), role, exp and
// iat.  Production tokens come from the auth provider; this is used by
// tooling that needs to call the booking API with a shared secret.
func NewAccessToken(secret, userID, role string, ttl time.Duration) (AccessToken, error) {
	if userID == "" {
		return AccessToken{}, errors.New("user id is required")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
