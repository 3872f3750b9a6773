package localuser

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SocketNonces mints and redeems the short-lived handshake tokens used by
// realtime side channels. Every nonce is single use.
type SocketNonces interface {
	Mint(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (*SocketNonce, error)
	Consume(ctx context.Context, token string) (*SocketNonce, error)
}

type socketNonces struct {
	db  *bun.DB
	now func() time.Time
}

var _ SocketNonces = (*socketNonces)(nil)

type NoncesOption func(*socketNonces)

// WithNoncesClock injects a custom clock (useful for tests).
func WithNoncesClock(clock func() time.Time) NoncesOption {
	return func(n *socketNonces) {
		if clock != nil {
			n.now = clock
		}
	}
}

func NewSocketNoncesRepository(db *bun.DB, opts ...NoncesOption) SocketNonces {
	repo := &socketNonces{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (n *socketNonces) Mint(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (*SocketNonce, error) {
	now := n.now()
	nonce := &SocketNonce{
		ID:        uuid.New(),
		AccountID: accountID,
		Token:     GenerateNonceToken(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if _, err := n.db.NewInsert().Model(nonce).Exec(ctx); err != nil {
		return nil, wrapInternal(err, "failed to mint socket nonce")
	}

	return nonce, nil
}

// Consume redeems a nonce exactly once. The conditional update is the
// single-use guard: a second redemption matches zero rows.
func (n *socketNonces) Consume(ctx context.Context, token string) (*SocketNonce, error) {
	now := n.now()

	res, err := n.db.NewUpdate().
		Model((*SocketNonce)(nil)).
		Set("consumed_at = ?", now).
		Where("token = ?", token).
		Where("consumed_at IS NULL").
		Where("expires_at >= ?", now).
		Exec(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to consume socket nonce")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, wrapInternal(err, "failed to consume socket nonce")
	}
	if affected == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"reason": "nonce missing, expired, or already used"})
	}

	nonce := &SocketNonce{}
	err = n.db.NewSelect().
		Model(nonce).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to load consumed socket nonce")
	}

	return nonce, nil
}
