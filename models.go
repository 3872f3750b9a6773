package localuser

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthType discriminates how an account authenticates
type AuthType = string

const (
	// AuthTypePassword is an interactive account with a hashed password
	AuthTypePassword AuthType = "password"
	// AuthTypeServiceSecret is a machine account with a long-lived secret
	AuthTypeServiceSecret AuthType = "service-secret"
)

// TokenPurpose tags the single verification token slot each account carries
type TokenPurpose = string

const (
	// TokenPurposeSignup proves control of the signup email
	TokenPurposeSignup TokenPurpose = "signup-verify"
	// TokenPurposeReset authorizes a forgot-password reset
	TokenPurposeReset TokenPurpose = "password-reset"
	// TokenPurposeVerified marks a spent signup token
	TokenPurposeVerified TokenPurpose = "verified"
	// TokenPurposeResetDone marks a spent reset token
	TokenPurposeResetDone TokenPurpose = "reset-complete"
	// TokenPurposeBootstrap marks seeded accounts that never need verification
	TokenPurposeBootstrap TokenPurpose = "initialized"
)

// VerificationToken is the tagged value stored in the account's single
// verification slot. Only one outstanding purpose-token exists at a time;
// rotating it spends the previous one.
type VerificationToken struct {
	Purpose  TokenPurpose `bun:"purpose" json:"-"`
	Value    string       `bun:"token" json:"-"`
	IssuedAt *time.Time   `bun:"issued_at,nullzero" json:"-"`
}

// NewVerificationToken mints a fresh token for the given purpose.
func NewVerificationToken(purpose TokenPurpose) VerificationToken {
	now := time.Now()
	return VerificationToken{
		Purpose:  purpose,
		Value:    GenerateVerifyValue(),
		IssuedAt: &now,
	}
}

// Live reports whether the token can still be redeemed.
func (v VerificationToken) Live() bool {
	return v.Purpose == TokenPurposeSignup || v.Purpose == TokenPurposeReset
}

// Matches compares the stored value against a presented one.
func (v VerificationToken) Matches(purpose TokenPurpose, value string) bool {
	return v.Live() && v.Purpose == purpose && v.Value != "" && v.Value == value
}

// Account is the persisted identity record
type Account struct {
	bun.BaseModel `bun:"table:localuser_accounts,alias:acc"`

	ID          uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email       string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Username    string    `bun:"username,notnull,unique" json:"username,omitempty"`
	DisplayName string    `bun:"display_name" json:"display_name,omitempty"`

	AuthType      AuthType `bun:"auth_type,notnull" json:"auth_type,omitempty"`
	PasswordHash  string   `bun:"password_hash" json:"-"`
	PasswordSalt  string   `bun:"password_salt" json:"-"`
	ServiceSecret string   `bun:"service_secret" json:"-"`

	Verify     VerificationToken `bun:"embed:verify_" json:"-"`
	VerifiedAt *time.Time        `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	Active     bool              `bun:"active,notnull" json:"active"`

	Groups []string `bun:"groups" json:"groups,omitempty"`

	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"-"`
	LastLoginAt    *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	LastLogoutAt   *time.Time `bun:"last_logout_at,nullzero" json:"last_logout_at,omitempty"`

	Sessions []*BearerSession `bun:"rel:has-many,join:id=account_id" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsVerified reports whether the account completed email verification. An
// unverified account can never authenticate.
func (a *Account) IsVerified() bool {
	return a != nil && a.VerifiedAt != nil
}

// HasAnyGroup reports whether the account belongs to at least one of the
// given group codes.
func (a *Account) HasAnyGroup(codes ...string) bool {
	if a == nil {
		return false
	}
	for _, code := range codes {
		for _, g := range a.Groups {
			if g == code {
				return true
			}
		}
	}
	return false
}

// Profile is the sanitized account projection that crosses the trust
// boundary. It never carries the password hash, salt, raw service secret, or
// the bearer session list.
type Profile struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	DisplayName   string     `json:"display_name"`
	AuthType      AuthType   `json:"auth_type"`
	Active        bool       `json:"active"`
	Groups        []string   `json:"groups"`
	ServiceSecret string     `json:"service_secret,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Sanitize builds the safe projection. Service secrets are masked unless the
// secret was rotated in the same call and revealSecret is set.
func (a *Account) Sanitize(revealSecret bool) *Profile {
	if a == nil {
		return nil
	}

	p := &Profile{
		ID:          a.ID,
		Email:       a.Email,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		AuthType:    a.AuthType,
		Active:      a.Active,
		Groups:      append([]string(nil), a.Groups...),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}

	if a.AuthType == AuthTypeServiceSecret {
		if revealSecret {
			p.ServiceSecret = a.ServiceSecret
		} else {
			p.ServiceSecret = MaskSecret(a.ServiceSecret)
		}
	}

	return p
}

// Group is a provisioned authorization group
type Group struct {
	bun.BaseModel `bun:"table:localuser_groups,alias:grp"`

	ID     uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code   string    `bun:"code,notnull,unique" json:"code"`
	Name   string    `bun:"name,notnull,unique" json:"name"`
	Active bool      `bun:"active,notnull" json:"active"`
	Note   string    `bun:"note" json:"note,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// BearerSession is one live opaque-token session. Sessions are stored in
// their own table so append, prune, and cap run as one conditional write
// instead of a read-modify-write on an embedded array.
type BearerSession struct {
	bun.BaseModel `bun:"table:localuser_sessions,alias:bst"`

	ID        uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID uuid.UUID `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Token     string    `bun:"token,notnull,unique" json:"-"`
	Remember  bool      `bun:"remember,notnull" json:"remember"`
	LastSeen  time.Time `bun:"last_seen,notnull" json:"last_seen"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Window returns the expiry window this session is judged against.
func (b *BearerSession) Window(idle, remember time.Duration) time.Duration {
	if b.Remember {
		return remember
	}
	return idle
}

// SocketNonce is a short-lived, single-use handshake credential minted for an
// already-resolved session. It lives outside the bearer and signed families.
type SocketNonce struct {
	bun.BaseModel `bun:"table:localuser_nonces,alias:non"`

	ID         uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID  uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Token      string     `bun:"token,notnull,unique" json:"token"`
	ExpiresAt  time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	ConsumedAt *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	record.Username = strings.ToLower(strings.TrimSpace(record.Username))

	if record.AuthType == "" {
		record.AuthType = AuthTypePassword
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func prepareGroupDefaults(record *Group) {
	if record == nil {
		return
	}

	// Code is immutable once set, it gets referenced from account group lists.
	record.Code = strings.ToLower(strings.TrimSpace(record.Code))
	if record.Name == "" {
		record.Name = record.Code
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
