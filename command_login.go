package localuser

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type LoginMessage struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Remember   bool   `json:"remember_me"`

	OnResponse func(*LoginResult)
}

func (e LoginMessage) Type() string { return "localuser.login" }

// LoginHandler authenticates an email-or-username plus password pair and
// finalizes a session. Not-found and wrong-password collapse into the same
// outward error; a correct password against an unverified account surfaces
// the unverified state, since knowing the password already proves more than
// the error does.
type LoginHandler struct {
	repo      RepositoryManager
	config    Config
	hasher    PasswordHasher
	finalizer *LoginFinalizer
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

func NewLoginHandler(repo RepositoryManager, opts Config) *LoginHandler {
	return &LoginHandler{
		repo:      repo,
		config:    opts,
		hasher:    NewPasswordHasher(),
		finalizer: NewLoginFinalizer(repo, opts),
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
	}
}

func (h *LoginHandler) WithHasher(hasher PasswordHasher) *LoginHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *LoginHandler) WithFinalizer(finalizer *LoginFinalizer) *LoginHandler {
	if finalizer != nil {
		h.finalizer = finalizer
	}
	return h
}

func (h *LoginHandler) WithActivitySink(sink ActivitySink) *LoginHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *LoginHandler) WithLogger(logger Logger) *LoginHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *LoginHandler) WithClock(clock func() time.Time) *LoginHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *LoginHandler) Execute(ctx context.Context, event LoginMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LoginHandler) execute(ctx context.Context, event LoginMessage) error {
	account := &Account{}
	var login *LoginResult
	var badPassword bool

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = h.repo.Accounts().GetByIdentityTx(ctx, tx, event.Identifier)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrIncorrectLogin
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
		}

		if account.AuthType != AuthTypePassword {
			return ErrIncorrectLogin
		}

		if err := checkLoginBackoff(account, h.config.GetMaxLoginAttempts(), h.now()); err != nil {
			return err
		}

		if err := h.hasher.ComparePasswordAndHash(event.Password, account.PasswordSalt, account.PasswordHash); err != nil {
			badPassword = true
			return ErrIncorrectLogin
		}

		if !account.IsVerified() {
			return ErrAccountUnverified
		}

		login, err = h.finalizer.FinalizeTx(ctx, tx, account, event.Remember)
		if err != nil {
			return err
		}

		return nil
	})

	// The failed-attempt counter must survive the rollback of the enclosing
	// transaction, so it gets its own committed write.
	if badPassword {
		if trackErr := h.repo.Accounts().TrackAttemptedLogin(ctx, account); trackErr != nil {
			h.logger.Warn("failed to track login attempt", "account_id", account.ID, "error", trackErr)
		}
	}

	if err != nil {
		h.recordOutcome(ctx, ActivityEventLoginFailure, account, event.Identifier, err)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "login transaction failed")
	}

	h.recordOutcome(ctx, ActivityEventLoginSuccess, account, event.Identifier, nil)

	if event.OnResponse != nil {
		event.OnResponse(login)
	}

	return nil
}

func (h *LoginHandler) recordOutcome(ctx context.Context, eventType ActivityEventType, account *Account, identifier string, cause error) {
	actor := ActorRef{Type: "unknown"}
	accountID := ""
	if account != nil && account.ID != uuid.Nil {
		actor = ActorRef{ID: account.ID.String(), Type: "account"}
		accountID = account.ID.String()
	}

	metadata := map[string]any{"identifier": identifier}
	if cause != nil {
		metadata["error"] = cause.Error()
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		Metadata:  metadata,
	})
}
