package localuser

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type LogoutMessage struct {
	// Resolution is the credential resolution of the caller. Only the one
	// session behind the caller's own credential is removed, other devices
	// stay logged in.
	Resolution *Resolution

	OnResponse func(*LogoutResponse)
}

func (e LogoutMessage) Type() string { return "localuser.logout" }

type LogoutResponse struct {
	// Cleared distinguishes clearing a live session from the idempotent
	// no-session case. Both outcomes are successes.
	Cleared bool   `json:"cleared"`
	Message string `json:"message"`
}

// LogoutHandler ends the caller's own session. Logout is idempotent: calling
// it with a signed token, an anonymous resolution, or after the session
// already expired succeeds with an informational message.
type LogoutHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewLogoutHandler(repo RepositoryManager) *LogoutHandler {
	return &LogoutHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *LogoutHandler) WithActivitySink(sink ActivitySink) *LogoutHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *LogoutHandler) WithLogger(logger Logger) *LogoutHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *LogoutHandler) Execute(ctx context.Context, event LogoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during logout",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LogoutHandler) execute(ctx context.Context, event LogoutMessage) error {
	res := event.Resolution

	if res == nil || res.Session == nil || res.Anonymous() {
		if event.OnResponse != nil {
			event.OnResponse(&LogoutResponse{
				Cleared: false,
				Message: "no active session to clear",
			})
		}
		return nil
	}

	cleared := false

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		removed, err := h.repo.Sessions().RemoveTx(ctx, tx, res.Account.ID, res.Session.Token)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove session")
		}
		cleared = removed

		if removed {
			now := time.Now()
			res.Account.LastLogoutAt = &now
			if _, err := h.repo.Accounts().UpdateTx(ctx, tx, res.Account); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record logout time")
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "logout transaction failed")
	}

	if cleared {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventLogout,
			Actor:     ActorRef{ID: res.Account.ID.String(), Type: "account"},
			AccountID: res.Account.ID.String(),
		})
	}

	if event.OnResponse != nil {
		msg := "session cleared"
		if !cleared {
			msg = "no active session to clear"
		}
		event.OnResponse(&LogoutResponse{Cleared: cleared, Message: msg})
	}

	return nil
}
