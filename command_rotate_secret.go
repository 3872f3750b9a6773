package localuser

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RotateSecretMessage struct {
	// Account is the already-resolved service account rotating its own
	// secret. Rotation never happens implicitly on login.
	Account *Account

	OnResponse func(*RotateSecretResponse)
}

func (e RotateSecretMessage) Type() string { return "localuser.secret.rotate" }

type RotateSecretResponse struct {
	// Profile carries the new secret in the clear. This is the only moment
	// the full value is ever revealed; every later read is masked.
	Profile *Profile `json:"profile"`
}

// RotateSecretHandler regenerates a service account's long-lived secret on
// an explicit, authenticated request. The old secret stops working the
// moment the transaction commits.
type RotateSecretHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewRotateSecretHandler(repo RepositoryManager) *RotateSecretHandler {
	return &RotateSecretHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *RotateSecretHandler) WithActivitySink(sink ActivitySink) *RotateSecretHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RotateSecretHandler) WithLogger(logger Logger) *RotateSecretHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RotateSecretHandler) Execute(ctx context.Context, event RotateSecretMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during secret rotation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RotateSecretHandler) execute(ctx context.Context, event RotateSecretMessage) error {
	if event.Account == nil {
		return ErrUnauthenticated
	}

	if event.Account.AuthType != AuthTypeServiceSecret {
		return ErrForbidden
	}

	account := event.Account

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account.ServiceSecret = GenerateServiceSecret()
		if _, err := h.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate service secret")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "secret rotation transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&RotateSecretResponse{
			Profile: account.Sanitize(true),
		})
	}

	return nil
}
