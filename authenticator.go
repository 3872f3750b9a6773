package localuser

import (
	"context"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
)

// Resolution is the outcome of credential resolution: the account the request
// now acts as, plus whatever artifacts the winning strategy produced.
type Resolution struct {
	Kind    CredentialKind
	Account *Account
	Session *BearerSession
	Claims  *IdentityClaims
	// RefreshedToken carries a proactively reissued signed token. The
	// transport layer hands it back to the client, the current token stays
	// valid until its own expiry.
	RefreshedToken string
}

// Anonymous reports whether this request fell through to the anonymous
// principal because it carried no credential.
func (r *Resolution) Anonymous() bool {
	return r != nil && r.Kind == CredentialNone
}

// SessionAuthenticator resolves inbound credentials to accounts. Every
// request goes through one classification and exactly one strategy, there is
// no fallthrough between strategies.
type SessionAuthenticator struct {
	repo          RepositoryManager
	tokens        *TokenService
	config        Config
	claimsBuilder ClaimsBuilder
	activitySink  ActivitySink
	logger        Logger
	now           func() time.Time
}

// NewSessionAuthenticator returns an authenticator wired to the store and the
// signed-token service built from the same configuration.
func NewSessionAuthenticator(repo RepositoryManager, opts Config) *SessionAuthenticator {
	return &SessionAuthenticator{
		repo:          repo,
		tokens:        NewTokenService(opts),
		config:        opts,
		claimsBuilder: DefaultClaimsBuilder,
		activitySink:  noopActivitySink{},
		logger:        defLogger{},
		now:           time.Now,
	}
}

func (s *SessionAuthenticator) WithLogger(logger Logger) *SessionAuthenticator {
	if logger != nil {
		s.logger = logger
		s.tokens.WithLogger(logger)
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *SessionAuthenticator) WithActivitySink(sink ActivitySink) *SessionAuthenticator {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsBuilder replaces the payload builder used when reissuing signed
// tokens past the refresh threshold.
func (s *SessionAuthenticator) WithClaimsBuilder(builder ClaimsBuilder) *SessionAuthenticator {
	if builder != nil {
		s.claimsBuilder = builder
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *SessionAuthenticator) WithClock(clock func() time.Time) *SessionAuthenticator {
	if clock != nil {
		s.now = clock
		s.tokens.WithClock(clock)
	}
	return s
}

// TokenService returns the signed-token service used by this authenticator.
func (s *SessionAuthenticator) TokenService() *TokenService {
	return s.tokens
}

// ExtractCredential pulls the raw credential out of a carrier in priority
// order: authorization header, explicit access_token parameter, cookie. The
// first location that holds a value wins, later ones are never consulted.
func ExtractCredential(carrier CredentialCarrier, cookieName string) string {
	if carrier == nil {
		return ""
	}

	if header := strings.TrimSpace(carrier.AuthorizationHeader()); header != "" {
		return stripBearerScheme(header)
	}

	if token := strings.TrimSpace(carrier.AccessToken()); token != "" {
		return token
	}

	return strings.TrimSpace(carrier.Cookie(cookieName))
}

func stripBearerScheme(header string) string {
	const scheme = "bearer "
	if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return header
}

// Resolve authenticates the request the carrier describes. Requests with no
// credential fall through to the anonymous account when one is provisioned;
// every other classification dispatches to its single strategy. Resolved
// accounts must be verified, an unverified account never authenticates.
func (s *SessionAuthenticator) Resolve(ctx context.Context, carrier CredentialCarrier) (*Resolution, error) {
	credential := ExtractCredential(carrier, s.config.GetCookieName())

	if credential == "" {
		return s.resolveAnonymous(ctx)
	}

	kind := ClassifyCredential(credential, s.tokens.Enabled())

	var res *Resolution
	var err error

	switch kind {
	case CredentialServiceSecret:
		res, err = s.resolveServiceSecret(ctx, credential)
	case CredentialSigned:
		res, err = s.resolveSigned(ctx, credential)
	default:
		res, err = s.resolveBearer(ctx, credential, kind)
	}

	if err != nil {
		return nil, err
	}

	if !res.Account.IsVerified() {
		s.logger.Warn("resolution rejected unverified account", "account_id", res.Account.ID)
		return nil, ErrAccountUnverified
	}

	return res, nil
}

// resolveAnonymous is the fallback for credential-less requests. The
// anonymous account is an ordinary store record so its groups, activity, and
// deactivation behave like any other account's.
func (s *SessionAuthenticator) resolveAnonymous(ctx context.Context) (*Resolution, error) {
	if !s.config.GetAnonymousEnabled() {
		return nil, ErrUnauthenticated
	}

	account, err := s.repo.Accounts().GetAnonymous(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, wrapInternal(err, "failed to load anonymous account")
	}

	return &Resolution{
		Kind:    CredentialNone,
		Account: account,
	}, nil
}

func (s *SessionAuthenticator) resolveServiceSecret(ctx context.Context, secret string) (*Resolution, error) {
	account, err := s.repo.Accounts().GetByServiceSecret(ctx, secret)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Warn("resolution found no account for service secret")
			return nil, ErrInvalidCredentials
		}
		return nil, wrapInternal(err, "failed to resolve service secret")
	}

	return &Resolution{
		Kind:    CredentialServiceSecret,
		Account: account,
	}, nil
}

func (s *SessionAuthenticator) resolveBearer(ctx context.Context, token string, kind CredentialKind) (*Resolution, error) {
	windows := s.sessionWindows()

	session, err := s.repo.Sessions().FindByToken(ctx, token, windows)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, wrapInternal(err, "failed to resolve bearer session")
	}

	account, err := s.repo.Accounts().GetByID(ctx, session.AccountID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// The session outlived its account, treat the credential as dead.
			return nil, ErrInvalidCredentials
		}
		return nil, wrapInternal(err, "failed to load session account")
	}

	if !account.Active {
		return nil, ErrInvalidCredentials
	}

	s.touchSession(ctx, session)

	return &Resolution{
		Kind:    kind,
		Account: account,
		Session: session,
	}, nil
}

func (s *SessionAuthenticator) resolveSigned(ctx context.Context, raw string) (*Resolution, error) {
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		s.logger.Warn("signed token validation failed", "error", err)
		return nil, ErrInvalidCredentials
	}

	account := AccountFromClaims(claims)
	res := &Resolution{
		Kind:    CredentialSigned,
		Account: account,
		Claims:  claims,
	}

	if s.tokens.NeedsRefresh(claims) {
		refreshed, err := s.reissueToken(ctx, account)
		if err != nil {
			// Reissue is best effort, the presented token is still valid.
			s.logger.Warn("signed token reissue failed", "account_id", account.ID, "error", err)
		} else {
			res.RefreshedToken = refreshed
		}
	}

	return res, nil
}

// reissueToken mints a replacement signed token for an aging one so active
// clients never see their credential expire mid session.
func (s *SessionAuthenticator) reissueToken(ctx context.Context, account *Account) (string, error) {
	claims, err := s.claimsBuilder(ctx, account)
	if err != nil {
		return "", err
	}

	return s.tokens.Mint(claims)
}

// touchSession refreshes last_seen when the session has been idle past the
// touch tolerance. The write is detached from the request: a touch failure is
// logged and the request proceeds.
func (s *SessionAuthenticator) touchSession(ctx context.Context, session *BearerSession) {
	now := s.now()
	if now.Sub(session.LastSeen) <= s.config.GetIdleTouchTolerance() {
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		if err := s.repo.Sessions().Touch(detached, session, now); err != nil {
			s.logger.Warn("bearer session touch failed", "account_id", session.AccountID, "error", err)
		}
	}()
}

func (s *SessionAuthenticator) sessionWindows() SessionWindows {
	return SessionWindows{
		Idle:     s.config.GetIdleSessionWindow(),
		Remember: s.config.GetRememberMeWindow(),
	}
}
