package localuser

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ResetMessage struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (e ResetMessage) Type() string { return "localuser.password.reset" }

// resetTokenTTL caps how long a reset token stays redeemable after the
// forgot request rotated it in.
const resetTokenTTL = "24h"

// ResetHandler finalizes a password reset. Email, live reset token, and
// password auth type all have to line up, and the token must be younger
// than resetTokenTTL; any mismatch returns the same error so the caller
// cannot tell which part was wrong. A successful reset
// spends the token, clears the attempt counter, and does not log the
// account in.
type ResetHandler struct {
	repo     RepositoryManager
	config   Config
	hasher   PasswordHasher
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewResetHandler(repo RepositoryManager, opts Config) *ResetHandler {
	return &ResetHandler{
		repo:     repo,
		config:   opts,
		hasher:   NewPasswordHasher(),
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (h *ResetHandler) WithHasher(hasher PasswordHasher) *ResetHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *ResetHandler) WithActivitySink(sink ActivitySink) *ResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ResetHandler) WithLogger(logger Logger) *ResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ResetHandler) WithClock(clock func() time.Time) *ResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ResetHandler) Execute(ctx context.Context, event ResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResetHandler) execute(ctx context.Context, event ResetMessage) error {
	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = h.repo.Accounts().GetByIdentityTx(ctx, tx, event.Email)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrInvalidCredentials
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
		}

		if account.AuthType != AuthTypePassword {
			return ErrInvalidCredentials
		}

		if !account.Verify.Matches(TokenPurposeReset, event.Token) {
			return ErrInvalidCredentials
		}

		if account.Verify.IssuedAt != nil {
			stale, err := IsOutsideThresholdPeriod(*account.Verify.IssuedAt, resetTokenTTL, h.now())
			if err != nil || stale {
				return ErrInvalidCredentials
			}
		}

		hash, salt, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		account.PasswordHash = hash
		account.PasswordSalt = salt
		account.Verify = NewVerificationToken(TokenPurposeResetDone)
		account.LoginAttempts = 0
		account.LoginAttemptAt = nil

		if _, err := h.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
	})

	return nil
}
