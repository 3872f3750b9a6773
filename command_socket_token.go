package localuser

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type SocketTokenMessage struct {
	// Account is the already-resolved caller. Nonces are never minted for
	// unresolved requests.
	Account *Account

	OnResponse func(*SocketTokenResponse)
}

func (e SocketTokenMessage) Type() string { return "localuser.socket.token" }

type SocketTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SocketTokenHandler mints the short-lived single-use nonce a realtime
// side channel redeems during its handshake. The nonce is independent of
// the bearer and signed token families.
type SocketTokenHandler struct {
	repo   RepositoryManager
	config Config
	logger Logger
}

func NewSocketTokenHandler(repo RepositoryManager, opts Config) *SocketTokenHandler {
	return &SocketTokenHandler{
		repo:   repo,
		config: opts,
		logger: defLogger{},
	}
}

func (h *SocketTokenHandler) WithLogger(logger Logger) *SocketTokenHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SocketTokenHandler) Execute(ctx context.Context, event SocketTokenMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during socket token mint",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SocketTokenHandler) execute(ctx context.Context, event SocketTokenMessage) error {
	if !h.config.GetSocketTokenEnabled() {
		return goerrors.New("socket tokens are disabled", goerrors.CategoryAuthz).
			WithTextCode("SOCKET_TOKEN_DISABLED").
			WithCode(goerrors.CodeForbidden)
	}

	if event.Account == nil {
		return ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	nonce, err := h.repo.Nonces().Mint(ctx, event.Account.ID, h.config.GetNonceExpiry())
	if err != nil {
		return wrapInternal(err, "failed to mint socket token")
	}

	if event.OnResponse != nil {
		event.OnResponse(&SocketTokenResponse{
			Token:     nonce.Token,
			ExpiresAt: nonce.ExpiresAt,
		})
	}

	return nil
}
