package localuser

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

const (
	// baseLoginBackoff is the cool-down after the first failed attempt. It
	// doubles per attempt up to maxLoginBackoff.
	baseLoginBackoff = 100 * time.Millisecond
	maxLoginBackoff  = 5 * time.Minute
)

// LoginResult is what a successful login-finalization hands back: the minted
// credential plus the sanitized account projection.
type LoginResult struct {
	Kind    CredentialKind `json:"kind"`
	Token   string         `json:"token"`
	Profile *Profile       `json:"profile"`
	Session *BearerSession `json:"-"`
}

// LoginFinalizer is the shared tail of every transition that establishes a
// session: password login and signup verification both end here. In signed
// mode it mints a stateless token, otherwise it appends an opaque bearer
// session, and either way the account's login bookkeeping is updated in the
// same transaction.
type LoginFinalizer struct {
	repo          RepositoryManager
	tokens        *TokenService
	config        Config
	claimsBuilder ClaimsBuilder
}

func NewLoginFinalizer(repo RepositoryManager, opts Config) *LoginFinalizer {
	return &LoginFinalizer{
		repo:          repo,
		tokens:        NewTokenService(opts),
		config:        opts,
		claimsBuilder: DefaultClaimsBuilder,
	}
}

// WithClaimsBuilder replaces the signed-token payload builder.
func (f *LoginFinalizer) WithClaimsBuilder(builder ClaimsBuilder) *LoginFinalizer {
	if builder != nil {
		f.claimsBuilder = builder
	}
	return f
}

// WithTokenService shares an already configured token service.
func (f *LoginFinalizer) WithTokenService(tokens *TokenService) *LoginFinalizer {
	if tokens != nil {
		f.tokens = tokens
	}
	return f
}

// FinalizeTx mints the session credential and records the successful login.
// Must run inside the transaction of the enclosing transition so a failed
// mint rolls back the whole state change.
func (f *LoginFinalizer) FinalizeTx(ctx context.Context, tx bun.IDB, account *Account, remember bool) (*LoginResult, error) {
	result := &LoginResult{
		Profile: account.Sanitize(false),
	}

	if f.tokens.Enabled() {
		claims, err := f.claimsBuilder(ctx, account)
		if err != nil {
			return nil, wrapInternal(err, "failed to build token claims")
		}

		token, err := f.tokens.Mint(claims)
		if err != nil {
			return nil, err
		}

		result.Kind = CredentialSigned
		result.Token = token
	} else {
		windows := SessionWindows{
			Idle:     f.config.GetIdleSessionWindow(),
			Remember: f.config.GetRememberMeWindow(),
		}

		session, err := f.repo.Sessions().AppendTx(ctx, tx, account, remember, windows)
		if err != nil {
			return nil, err
		}

		result.Kind = CredentialBearer
		if remember {
			result.Kind = CredentialRememberMe
		}
		result.Token = session.Token
		result.Session = session
	}

	if err := f.repo.Accounts().TrackSuccessfulLoginTx(ctx, tx, account); err != nil {
		return nil, wrapInternal(err, "failed to record successful login")
	}

	return result, nil
}

// checkLoginBackoff enforces the durable per-account rate limit. The counter
// lives on the record so a process restart cannot reset it. Each failed
// attempt doubles the cool-down up to maxLoginBackoff; the counter hitting
// the configured cap locks the account out until a password reset.
func checkLoginBackoff(account *Account, maxAttempts int, now time.Time) error {
	if account.LoginAttempts >= maxAttempts {
		return ErrTooManyLoginAttempts
	}

	if account.LoginAttempts == 0 || account.LoginAttemptAt == nil {
		return nil
	}

	backoff := baseLoginBackoff
	for i := 1; i < account.LoginAttempts && backoff < maxLoginBackoff; i++ {
		backoff *= 2
	}
	if backoff > maxLoginBackoff {
		backoff = maxLoginBackoff
	}

	if now.Sub(*account.LoginAttemptAt) < backoff {
		return ErrTooManyLoginAttempts
	}

	return nil
}
