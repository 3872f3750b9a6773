package localuser

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the recognized authentication options
type Config interface {
	GetSignupEnabled() bool
	GetForgotEnabled() bool
	GetForceLogoutEnabled() bool
	GetSocketTokenEnabled() bool
	GetAnonymousEnabled() bool
	GetBootstrapEnabled() bool
	GetSysadminGroupCode() string
	GetIdleSessionWindow() time.Duration
	GetRememberMeWindow() time.Duration
	GetIdleTouchTolerance() time.Duration
	GetMaxLoginAttempts() int
	GetSigningSecret() string
	GetSigningMethod() string
	GetTokenExpiration() time.Duration
	GetRefreshThreshold() time.Duration
	GetCookieName() string
	GetNonceExpiry() time.Duration
}

// PasswordHasher is the opaque one-way hashing primitive. Hashes carry a
// per record salt that must be presented back on comparison.
type PasswordHasher interface {
	HashPassword(password string) (hash, salt string, err error)
	ComparePasswordAndHash(password, salt, hash string) error
}

// CredentialCarrier exposes the inbound credential locations in resolution
// priority order: authorization header, access_token parameter, cookie.
type CredentialCarrier interface {
	AuthorizationHeader() string
	AccessToken() string
	Cookie(name string) string
}

// ClaimsBuilder assembles the signed token payload for an account. Builders
// may enrich the claim set but must keep the required identity claims, the
// token service fails closed when any of them are missing.
type ClaimsBuilder func(ctx context.Context, account *Account) (*IdentityClaims, error)

// Notifier is the abstract notification collaborator. Delivery is
// fire-and-forget: failures are logged, never surfaced to the caller.
type Notifier interface {
	Send(ctx context.Context, msg NotificationMessage) error
}

// NotificationMessage is the payload handed to a Notifier.
type NotificationMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] LOCALUSER "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] LOCALUSER "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] LOCALUSER "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] LOCALUSER "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
