// Package auth issues and verifies the HS256 bearer tokens that scope every remote call to a user.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/model"
)

// Leeway tolerates clock skew between client and server.
const Leeway = 30 * time.Second

// Issue creates a signed HS256 JWT for the given subject.
func Issue(signKey []byte, userID uuid.UUID, ttl time.Duration, now time.Time) (model.Tokens, error) {
	if len(signKey) == 0 {
		return model.Tokens{}, errors.New("empty signing key")
	}
	if userID == uuid.Nil {
		return model.Tokens{}, fmt.Errorf("%w: empty subject", errs.ErrValidation)
	}
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// Verify checks signature and validity window and returns the subject as a user id.
func Verify(signKey []byte, token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return signKey, nil
	}, jwt.WithLeeway(Leeway))
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return id, nil
}

// Inspect reads subject and expiry without verifying the signature.
// The client uses it to learn its own identity from a stored token.
func Inspect(token string) (uuid.UUID, time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return uuid.Nil, time.Time{}, err
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("bad subject: %w", err)
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return id, exp, nil
}
