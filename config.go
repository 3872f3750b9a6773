package localuser

import "time"

const (
	// DefaultIdleSessionWindow is how long an untouched bearer session stays valid.
	DefaultIdleSessionWindow = time.Hour
	// DefaultRememberMeWindow is the extended window for remember-me sessions.
	DefaultRememberMeWindow = 14 * 24 * time.Hour
	// DefaultIdleTouchTolerance avoids rewriting last_seen on every request.
	DefaultIdleTouchTolerance = 10 * time.Minute
	// DefaultMaxLoginAttempts is the durable per-account attempt cap.
	DefaultMaxLoginAttempts = 20
	// DefaultTokenExpiration is the signed token lifetime.
	DefaultTokenExpiration = 600 * time.Second
	// DefaultRefreshThreshold is the signed token age that triggers reissue.
	DefaultRefreshThreshold = 500 * time.Second
	// DefaultNonceExpiry is the socket token lifetime.
	DefaultNonceExpiry = 5 * time.Second
	// DefaultCookieName is the signed-token cookie.
	DefaultCookieName = "access_token"
	// DefaultSysadminGroup is the privileged bootstrap group code.
	DefaultSysadminGroup = "sysadmin"
)

// Settings is the concrete Config implementation. Use NewSettings to get a
// value with every feature enabled and the documented defaults applied, then
// override individual fields.
type Settings struct {
	Signup      bool
	Forgot      bool
	ForceLogout bool
	SocketToken bool
	Anonymous   bool
	Bootstrap   bool

	SysadminGroupCode  string
	IdleSessionWindow  time.Duration
	RememberMeWindow   time.Duration
	IdleTouchTolerance time.Duration
	MaxLoginAttempts   int
	NonceExpiry        time.Duration

	JWT JWTSettings
}

// JWTSettings configures the signed stateless token family. Leaving Secret
// empty keeps the subsystem in opaque-bearer mode.
type JWTSettings struct {
	Secret           string
	Algorithm        string
	Expiration       time.Duration
	RefreshThreshold time.Duration
	CookieName       string
}

var _ Config = (*Settings)(nil)

// NewSettings returns Settings with all lifecycle features enabled and the
// default windows in place.
func NewSettings() *Settings {
	return &Settings{
		Signup:             true,
		Forgot:             true,
		ForceLogout:        true,
		SocketToken:        true,
		Anonymous:          true,
		Bootstrap:          true,
		SysadminGroupCode:  DefaultSysadminGroup,
		IdleSessionWindow:  DefaultIdleSessionWindow,
		RememberMeWindow:   DefaultRememberMeWindow,
		IdleTouchTolerance: DefaultIdleTouchTolerance,
		MaxLoginAttempts:   DefaultMaxLoginAttempts,
		NonceExpiry:        DefaultNonceExpiry,
		JWT: JWTSettings{
			Algorithm:        "HS256",
			Expiration:       DefaultTokenExpiration,
			RefreshThreshold: DefaultRefreshThreshold,
			CookieName:       DefaultCookieName,
		},
	}
}

func (s *Settings) GetSignupEnabled() bool      { return s.Signup }
func (s *Settings) GetForgotEnabled() bool      { return s.Forgot }
func (s *Settings) GetForceLogoutEnabled() bool { return s.ForceLogout }
func (s *Settings) GetSocketTokenEnabled() bool { return s.SocketToken }
func (s *Settings) GetAnonymousEnabled() bool   { return s.Anonymous }
func (s *Settings) GetBootstrapEnabled() bool   { return s.Bootstrap }

func (s *Settings) GetSysadminGroupCode() string {
	if s.SysadminGroupCode == "" {
		return DefaultSysadminGroup
	}
	return s.SysadminGroupCode
}

func (s *Settings) GetIdleSessionWindow() time.Duration {
	if s.IdleSessionWindow <= 0 {
		return DefaultIdleSessionWindow
	}
	return s.IdleSessionWindow
}

func (s *Settings) GetRememberMeWindow() time.Duration {
	if s.RememberMeWindow <= 0 {
		return DefaultRememberMeWindow
	}
	return s.RememberMeWindow
}

func (s *Settings) GetIdleTouchTolerance() time.Duration {
	if s.IdleTouchTolerance <= 0 {
		return DefaultIdleTouchTolerance
	}
	return s.IdleTouchTolerance
}

func (s *Settings) GetMaxLoginAttempts() int {
	if s.MaxLoginAttempts <= 0 {
		return DefaultMaxLoginAttempts
	}
	return s.MaxLoginAttempts
}

func (s *Settings) GetNonceExpiry() time.Duration {
	if s.NonceExpiry <= 0 {
		return DefaultNonceExpiry
	}
	return s.NonceExpiry
}

func (s *Settings) GetSigningSecret() string { return s.JWT.Secret }

func (s *Settings) GetSigningMethod() string {
	if s.JWT.Algorithm == "" {
		return "HS256"
	}
	return s.JWT.Algorithm
}

func (s *Settings) GetTokenExpiration() time.Duration {
	if s.JWT.Expiration <= 0 {
		return DefaultTokenExpiration
	}
	return s.JWT.Expiration
}

func (s *Settings) GetRefreshThreshold() time.Duration {
	if s.JWT.RefreshThreshold <= 0 {
		return DefaultRefreshThreshold
	}
	return s.JWT.RefreshThreshold
}

func (s *Settings) GetCookieName() string {
	if s.JWT.CookieName == "" {
		return DefaultCookieName
	}
	return s.JWT.CookieName
}
