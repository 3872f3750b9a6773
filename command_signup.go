package localuser

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type SignupMessage struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`

	OnResponse func(*SignupResponse)
}

func (e SignupMessage) Type() string { return "localuser.signup" }

type SignupResponse struct {
	Profile     *Profile `json:"profile"`
	VerifyToken string   `json:"-"`
}

// SignupHandler creates an unverified password account and dispatches the
// verification notification. It never establishes a session, the account has
// to redeem the token first.
type SignupHandler struct {
	repo     RepositoryManager
	config   Config
	hasher   PasswordHasher
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

func NewSignupHandler(repo RepositoryManager, opts Config) *SignupHandler {
	return &SignupHandler{
		repo:     repo,
		config:   opts,
		hasher:   NewPasswordHasher(),
		notifier: nil,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *SignupHandler) WithHasher(hasher PasswordHasher) *SignupHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *SignupHandler) WithNotifier(notifier Notifier) *SignupHandler {
	h.notifier = notifier
	return h
}

func (h *SignupHandler) WithActivitySink(sink ActivitySink) *SignupHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *SignupHandler) WithLogger(logger Logger) *SignupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	if !h.config.GetSignupEnabled() {
		return goerrors.New("signup is disabled", goerrors.CategoryAuthz).
			WithTextCode("SIGNUP_DISABLED").
			WithCode(goerrors.CodeForbidden)
	}

	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, salt, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		account.Email = event.Email
		account.Username = usernameOrEmailLocal(event.Username, event.Email)
		account.DisplayName = event.DisplayName
		account.AuthType = AuthTypePassword
		account.PasswordHash = hash
		account.PasswordSalt = salt
		account.Active = true
		account.Verify = NewVerificationToken(TokenPurposeSignup)

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			// Collapse both unique violations into one generic conflict so
			// callers cannot probe which identifier is taken.
			return goerrors.Wrap(err, ErrDuplicateIdentity.Category, ErrDuplicateIdentity.Message).
				WithTextCode(ErrDuplicateIdentity.TextCode).
				WithCode(ErrDuplicateIdentity.Code)
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	dispatchNotification(ctx, h.notifier, h.logger, NotificationMessage{
		To:       account.Email,
		Subject:  "Verify your account",
		TextBody: fmt.Sprintf("Your verification token is %s", account.Verify.Value),
	})

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventSignup,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"email": account.Email},
	})

	if event.OnResponse != nil {
		event.OnResponse(&SignupResponse{
			Profile:     account.Sanitize(false),
			VerifyToken: account.Verify.Value,
		})
	}

	return nil
}

func usernameOrEmailLocal(username, email string) string {
	if username != "" {
		return username
	}

	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}

	return email
}
