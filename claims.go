package localuser

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IdentityClaims is the signed stateless token payload. The identity id,
// display name, username, and email claims are mandatory: the token service
// fails closed rather than issue an incomplete token.
type IdentityClaims struct {
	jwt.RegisteredClaims
	UID         string   `json:"uid,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Username    string   `json:"username,omitempty"`
	Email       string   `json:"email,omitempty"`
	Groups      []string `json:"groups,omitempty"`
}

// AccountID returns the identity id carried by the claims.
func (c *IdentityClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Age returns how long ago the token was issued.
func (c *IdentityClaims) Age(now time.Time) time.Duration {
	if c.RegisteredClaims.IssuedAt == nil {
		return 0
	}
	return now.Sub(c.RegisteredClaims.IssuedAt.Time)
}

// Expires returns the expiration time, zero when unset.
func (c *IdentityClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// validateRequired guards against a misconfigured claims builder silently
// issuing incomplete tokens.
func (c *IdentityClaims) validateRequired() error {
	required := map[string]string{
		"uid":          c.AccountID(),
		"display_name": c.DisplayName,
		"username":     c.Username,
		"email":        c.Email,
	}

	for field, value := range required {
		if value == "" {
			clone := ErrInvalidTokenPayload.Clone()
			if clone == nil {
				return ErrInvalidTokenPayload
			}
			return clone.WithMetadata(map[string]any{"claim": field})
		}
	}

	return nil
}

// DefaultClaimsBuilder produces the minimal required claim set from an
// account. Installations can replace it to enrich the payload, the required
// identity claims stay mandatory either way.
func DefaultClaimsBuilder(_ context.Context, account *Account) (*IdentityClaims, error) {
	if account == nil {
		return nil, ErrInvalidTokenPayload
	}

	return &IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: account.ID.String(),
		},
		UID:         account.ID.String(),
		DisplayName: account.DisplayName,
		Username:    account.Username,
		Email:       account.Email,
		Groups:      append([]string(nil), account.Groups...),
	}, nil
}

// AccountFromClaims rebuilds the transient account projection a signed token
// represents. Signed tokens are only minted for verified accounts, so the
// projection is treated as verified for the remainder of the request.
func AccountFromClaims(claims *IdentityClaims) *Account {
	if claims == nil {
		return nil
	}

	account := &Account{
		DisplayName: claims.DisplayName,
		Username:    claims.Username,
		Email:       claims.Email,
		AuthType:    AuthTypePassword,
		Active:      true,
		Groups:      append([]string(nil), claims.Groups...),
	}

	if id, err := uuid.Parse(claims.AccountID()); err == nil {
		account.ID = id
	}

	if claims.RegisteredClaims.IssuedAt != nil {
		issued := claims.RegisteredClaims.IssuedAt.Time
		account.VerifiedAt = &issued
	}

	return account
}
