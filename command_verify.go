package localuser

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type VerifyMessage struct {
	Token string `json:"token"`

	OnResponse func(*VerifyResponse)
}

func (e VerifyMessage) Type() string { return "localuser.verify" }

type VerifyResponse struct {
	Login *LoginResult `json:"login"`
}

// VerifyHandler redeems a signup verification token. The token is single
// use: redemption marks the account verified, rotates the slot to a spent
// marker, and runs straight into login finalization so verification doubles
// as the first login.
type VerifyHandler struct {
	repo      RepositoryManager
	config    Config
	finalizer *LoginFinalizer
	activity  ActivitySink
	logger    Logger
}

func NewVerifyHandler(repo RepositoryManager, opts Config) *VerifyHandler {
	return &VerifyHandler{
		repo:      repo,
		config:    opts,
		finalizer: NewLoginFinalizer(repo, opts),
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

func (h *VerifyHandler) WithFinalizer(finalizer *LoginFinalizer) *VerifyHandler {
	if finalizer != nil {
		h.finalizer = finalizer
	}
	return h
}

func (h *VerifyHandler) WithActivitySink(sink ActivitySink) *VerifyHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *VerifyHandler) WithLogger(logger Logger) *VerifyHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyHandler) Execute(ctx context.Context, event VerifyMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyHandler) execute(ctx context.Context, event VerifyMessage) error {
	account := &Account{}
	var login *LoginResult

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = h.repo.Accounts().GetByVerifyTokenTx(ctx, tx, TokenPurposeSignup, event.Token)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrInvalidCredentials
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve verification token")
		}

		now := time.Now()
		account.VerifiedAt = &now
		// Spend the token. The slot only ever holds one live purpose-token,
		// a second redemption attempt will not find it.
		account.Verify = NewVerificationToken(TokenPurposeVerified)

		if _, err := h.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account verified")
		}

		login, err = h.finalizer.FinalizeTx(ctx, tx, account, false)
		if err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify account")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventVerified,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&VerifyResponse{Login: login})
	}

	return nil
}
