package localuser

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService signs and validates the stateless token family. Verification
// is pure CPU work, it never touches the store.
type TokenService struct {
	signingKey       []byte
	method           string
	expiration       time.Duration
	refreshThreshold time.Duration
	logger           Logger
	now              func() time.Time
}

// NewTokenService builds a service from the jwt configuration block.
func NewTokenService(cfg Config) *TokenService {
	return &TokenService{
		signingKey:       []byte(cfg.GetSigningSecret()),
		method:           cfg.GetSigningMethod(),
		expiration:       cfg.GetTokenExpiration(),
		refreshThreshold: cfg.GetRefreshThreshold(),
		logger:           defLogger{},
		now:              time.Now,
	}
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock injects a custom clock (useful for tests).
func (ts *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// Enabled reports whether signed-token mode is configured. Without a secret
// the subsystem stays on opaque bearer sessions.
func (ts *TokenService) Enabled() bool {
	return len(ts.signingKey) > 0
}

// Mint validates the required claim set and signs it. Issue and expiry times
// are stamped here so every token follows the configured window.
func (ts *TokenService) Mint(claims *IdentityClaims) (string, error) {
	if claims == nil {
		return "", ErrInvalidTokenPayload
	}

	if err := claims.validateRequired(); err != nil {
		return "", err
	}

	now := ts.now()
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ts.expiration))
	if claims.RegisteredClaims.ID == "" {
		claims.RegisteredClaims.ID = uuid.NewString()
	}

	method := jwt.GetSigningMethod(ts.method)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return "", goerrors.New(
			fmt.Sprintf("unsupported signing method: %s", ts.method),
			goerrors.CategoryInternal,
		)
	}

	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Validate parses and verifies a token string, returning structured claims.
func (ts *TokenService) Validate(raw string) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &IdentityClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	})

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token validate could not decode claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// NeedsRefresh reports whether a valid token has aged past the refresh
// threshold and should be proactively reissued.
func (ts *TokenService) NeedsRefresh(claims *IdentityClaims) bool {
	if claims == nil || claims.RegisteredClaims.IssuedAt == nil {
		return false
	}
	return claims.Age(ts.now()) > ts.refreshThreshold
}
