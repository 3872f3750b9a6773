package localuser

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ForgotMessage struct {
	Email string `json:"email"`

	OnResponse func(*ForgotResponse)
}

func (e ForgotMessage) Type() string { return "localuser.password.forgot" }

// ForgotResponse is identical whether or not the email exists. Callers get
// no signal either way.
type ForgotResponse struct {
	Message string `json:"message"`
}

// ForgotHandler starts a password reset. The response never reveals whether
// the email belongs to an account: when it does, the verification slot is
// rotated to a reset token and the notification goes out; when it does not,
// nothing happens and the envelope looks the same.
type ForgotHandler struct {
	repo     RepositoryManager
	config   Config
	notifier Notifier
	logger   Logger
}

func NewForgotHandler(repo RepositoryManager, opts Config) *ForgotHandler {
	return &ForgotHandler{
		repo:   repo,
		config: opts,
		logger: defLogger{},
	}
}

func (h *ForgotHandler) WithNotifier(notifier Notifier) *ForgotHandler {
	h.notifier = notifier
	return h
}

func (h *ForgotHandler) WithLogger(logger Logger) *ForgotHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ForgotHandler) Execute(ctx context.Context, event ForgotMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ForgotHandler) execute(ctx context.Context, event ForgotMessage) error {
	if !h.config.GetForgotEnabled() {
		return goerrors.New("password reset is disabled", goerrors.CategoryAuthz).
			WithTextCode("FORGOT_DISABLED").
			WithCode(goerrors.CodeForbidden)
	}

	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = h.repo.Accounts().GetByIdentityTx(ctx, tx, event.Email)
		if err != nil {
			if goerrors.IsNotFound(err) {
				// Success either way, the caller learns nothing.
				account = nil
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
		}

		if account.AuthType != AuthTypePassword {
			account = nil
			return nil
		}

		account.Verify = NewVerificationToken(TokenPurposeReset)

		if _, err := h.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate reset token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if account != nil {
		dispatchNotification(ctx, h.notifier, h.logger, NotificationMessage{
			To:       account.Email,
			Subject:  "Reset your password",
			TextBody: fmt.Sprintf("Your password reset token is %s", account.Verify.Value),
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(&ForgotResponse{
			Message: "If that account exists, a reset message is on its way",
		})
	}

	return nil
}
