package localuser

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ForceLogoutMessage struct {
	// AccountID is the target whose sessions are all invalidated.
	AccountID uuid.UUID `json:"account_id"`
	// Actor is the privileged caller. When set, membership in the sysadmin
	// group is checked here as well as at the route.
	Actor *Account
}

func (e ForceLogoutMessage) Type() string { return "localuser.logout.forced" }

// ForceLogoutHandler clears every session a target account holds,
// invalidating all of its bearer tokens at once regardless of which
// credential the caller used.
type ForceLogoutHandler struct {
	repo     RepositoryManager
	config   Config
	activity ActivitySink
	logger   Logger
}

func NewForceLogoutHandler(repo RepositoryManager, opts Config) *ForceLogoutHandler {
	return &ForceLogoutHandler{
		repo:     repo,
		config:   opts,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *ForceLogoutHandler) WithActivitySink(sink ActivitySink) *ForceLogoutHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ForceLogoutHandler) WithLogger(logger Logger) *ForceLogoutHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ForceLogoutHandler) Execute(ctx context.Context, event ForceLogoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during forced logout",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ForceLogoutHandler) execute(ctx context.Context, event ForceLogoutMessage) error {
	if !h.config.GetForceLogoutEnabled() {
		return goerrors.New("forced logout is disabled", goerrors.CategoryAuthz).
			WithTextCode("FORCE_LOGOUT_DISABLED").
			WithCode(goerrors.CodeForbidden)
	}

	if event.Actor != nil && !event.Actor.HasAnyGroup(h.config.GetSysadminGroupCode()) {
		return ErrForbidden
	}

	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = h.repo.Accounts().GetByIDTx(ctx, tx, event.AccountID.String())
		if err != nil {
			if goerrors.IsNotFound(err) {
				return goerrors.New("account not found", goerrors.CategoryNotFound).
					WithCode(goerrors.CodeNotFound)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
		}

		if err := h.repo.Sessions().ClearTx(ctx, tx, account.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear sessions")
		}

		now := time.Now()
		account.LastLogoutAt = &now
		if _, err := h.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record logout time")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "forced logout transaction failed")
	}

	actor := ActorRef{Type: "system"}
	if event.Actor != nil {
		actor = ActorRef{ID: event.Actor.ID.String(), Type: "account"}
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventForcedLogout,
		Actor:     actor,
		AccountID: account.ID.String(),
	})

	return nil
}
