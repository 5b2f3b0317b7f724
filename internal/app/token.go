package app

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"movierec/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenLifetime is how long an issued bearer token stays valid.
const TokenLifetime = 30 * time.Minute

// ErrInvalidToken covers every way a presented token can be rejected.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewTokenIssuer creates an issuer bound to a signing key, issuer and audience.
func NewTokenIssuer(key []byte, issuer, audience string) *TokenIssuer {
	return &TokenIssuer{key: key, issuer: issuer, audience: audience, now: time.Now}
}

// WithClock replaces the time source.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// Issue returns a signed token for id and its expiry. Claims carry whole
// seconds, so the issue time is truncated first and the returned expiry
// matches the signed one.
func (t *TokenIssuer) Issue(id domain.Identity) (string, time.Time, error) {
	now := t.now().Truncate(time.Second)
	expiresAt := now.Add(TokenLifetime)

	claims := Claims{
		Email:    id.Email,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry and returns
// the identity in the token. Any failure is ErrInvalidToken.
func (t *TokenIssuer) Verify(raw string) (domain.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
		// jwt rejects now == exp; the leeway lets the exact expiry instant
		// through and the check below rejects anything after it.
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		return domain.Identity{}, errors.Join(ErrInvalidToken, err)
	}
	if t.now().After(claims.ExpiresAt.Time) {
		return domain.Identity{}, errors.Join(ErrInvalidToken, jwt.ErrTokenExpired)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return domain.Identity{}, ErrInvalidToken
	}

	return domain.Identity{UserID: userID, Username: claims.Username, Email: claims.Email}, nil
}
