// Package auth issues and validates the HMAC-signed JWT pairs used by the
// API, and carries the authenticated caller through request contexts.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/errors"
)

// Token use markers. Refresh tokens are never accepted by the API
// middleware; they are only good for the refresh endpoint.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims is the JWT payload for both token kinds.
type Claims struct {
	UserID   string   `json:"user_id"`
	Groups   []string `json:"groups,omitempty"`
	Admin    bool     `json:"admin,omitempty"`
	TokenUse string   `json:"token_use"`
	jwt.RegisteredClaims
}

// Issuer mints and validates token pairs with a shared HMAC secret.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer creates an Issuer. TTLs of zero fall back to sane defaults.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 2 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// RefreshTTL reports how long refresh tokens stay valid, for session expiry.
func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// IssuePair mints an access/refresh token pair for the user.
func (i *Issuer) IssuePair(u identity.User) (identity.TokenPair, error) {
	now := time.Now().UTC()

	access, err := i.sign(Claims{
		UserID:   u.ID,
		Groups:   u.Groups,
		Admin:    u.Admin,
		TokenUse: UseAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	})
	if err != nil {
		return identity.TokenPair{}, err
	}

	refresh, err := i.sign(Claims{
		UserID:   u.ID,
		TokenUse: UseRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	})
	if err != nil {
		return identity.TokenPair{}, err
	}

	return identity.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ParseAccess validates an access token and returns its claims.
func (i *Issuer) ParseAccess(tokenString string) (*Claims, error) {
	return i.parse(tokenString, UseAccess)
}

// ParseRefresh validates a refresh token and returns its claims.
func (i *Issuer) ParseRefresh(tokenString string) (*Claims, error) {
	return i.parse(tokenString, UseRefresh)
}

func (i *Issuer) parse(tokenString, use string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims type")
	}
	if claims.TokenUse != use {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "wrong token use")
	}
	return claims, nil
}

// HashToken derives the session key for a refresh token. The raw token never
// touches storage.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Identity is the authenticated caller, as established by the middleware.
type Identity struct {
	UserID string
	Groups []string
	Admin  bool
}

// InAnyGroup reports whether the caller holds at least one of the named
// groups. An empty requirement list means no restriction.
func (id Identity) InAnyGroup(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		for _, g := range id.Groups {
			if g == name {
				return true
			}
		}
	}
	return false
}

type contextKey string

const identityKey contextKey = "auth_identity"

// WithIdentity stores the caller on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller and whether one is present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
