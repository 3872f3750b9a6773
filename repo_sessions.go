package localuser

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaxLiveSessions caps the bearer sessions one account can hold. The oldest
// session is evicted first once the cap is reached.
const MaxLiveSessions = 10

// SessionWindows carries the expiry windows a lookup is judged against.
type SessionWindows struct {
	Idle     time.Duration
	Remember time.Duration
}

// BearerSessions owns the per-account opaque session list. Append runs
// prune, cap, and insert inside the caller's transaction so concurrent
// logins cannot lose each other's writes.
type BearerSessions interface {
	AppendTx(ctx context.Context, tx bun.IDB, account *Account, remember bool, windows SessionWindows) (*BearerSession, error)
	FindByToken(ctx context.Context, token string, windows SessionWindows) (*BearerSession, error)
	Touch(ctx context.Context, session *BearerSession, at time.Time) error
	RemoveTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string) (bool, error)
	ClearTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error
	CountLive(ctx context.Context, accountID uuid.UUID) (int, error)
}

type bearerSessions struct {
	db  *bun.DB
	now func() time.Time
}

var _ BearerSessions = (*bearerSessions)(nil)

type SessionsOption func(*bearerSessions)

// WithSessionsClock injects a custom clock (useful for tests).
func WithSessionsClock(clock func() time.Time) SessionsOption {
	return func(s *bearerSessions) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewBearerSessionsRepository(db *bun.DB, opts ...SessionsOption) BearerSessions {
	repo := &bearerSessions{
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

// AppendTx does the housekeeping the login-finalization path relies on:
// expired sessions are dropped, the list is capped at MaxLiveSessions with
// the oldest evicted, and the fresh session is inserted, all in one
// transaction with the enclosing account save.
func (s *bearerSessions) AppendTx(ctx context.Context, tx bun.IDB, account *Account, remember bool, windows SessionWindows) (*BearerSession, error) {
	now := s.now()

	if err := s.pruneTx(ctx, tx, account.ID, now, windows); err != nil {
		return nil, wrapInternal(err, "failed to prune bearer sessions")
	}

	if err := s.capTx(ctx, tx, account.ID); err != nil {
		return nil, wrapInternal(err, "failed to cap bearer sessions")
	}

	session := &BearerSession{
		ID:        uuid.New(),
		AccountID: account.ID,
		Token:     GenerateBearerToken(remember),
		Remember:  remember,
		LastSeen:  now,
		CreatedAt: now,
	}

	if _, err := tx.NewInsert().Model(session).Exec(ctx); err != nil {
		return nil, wrapInternal(err, "failed to record bearer session")
	}

	return session, nil
}

func (s *bearerSessions) pruneTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, now time.Time, windows SessionWindows) error {
	idleCutoff := now.Add(-windows.Idle)
	rememberCutoff := now.Add(-windows.Remember)

	_, err := tx.NewDelete().
		Model((*BearerSession)(nil)).
		Where("account_id = ?", accountID).
		Where("(remember = ? AND last_seen < ?) OR (remember = ? AND last_seen < ?)",
			false, idleCutoff, true, rememberCutoff).
		Exec(ctx)

	return err
}

func (s *bearerSessions) capTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	var live []*BearerSession
	err := tx.NewSelect().
		Model(&live).
		Column("id").
		Where("account_id = ?", accountID).
		OrderExpr("last_seen ASC").
		Scan(ctx)
	if err != nil {
		return err
	}

	// One slot must open up for the session about to be appended.
	excess := len(live) - (MaxLiveSessions - 1)
	if excess <= 0 {
		return nil
	}

	stale := make([]uuid.UUID, 0, excess)
	for _, sess := range live[:excess] {
		stale = append(stale, sess.ID)
	}

	_, err = tx.NewDelete().
		Model((*BearerSession)(nil)).
		Where("id IN (?)", bun.In(stale)).
		Exec(ctx)

	return err
}

// FindByToken resolves a live session by its exact token. Sessions idle past
// their window are treated as not found.
func (s *bearerSessions) FindByToken(ctx context.Context, token string, windows SessionWindows) (*BearerSession, error) {
	if token == "" {
		return nil, repository.NewRecordNotFound()
	}

	session := &BearerSession{}
	err := s.db.NewSelect().
		Model(session).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	cutoff := s.now().Add(-session.Window(windows.Idle, windows.Remember))
	if session.LastSeen.Before(cutoff) {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"reason": "session expired"})
	}

	return session, nil
}

// Touch refreshes last_seen. Callers run it fire-and-forget, a failure here
// must never fail the enclosing read path.
func (s *bearerSessions) Touch(ctx context.Context, session *BearerSession, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*BearerSession)(nil)).
		Set("last_seen = ?", at).
		Where("token = ?", session.Token).
		Exec(ctx)

	return err
}

// RemoveTx drops the single session matching the caller's own credential.
func (s *bearerSessions) RemoveTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string) (bool, error) {
	res, err := tx.NewDelete().
		Model((*BearerSession)(nil)).
		Where("account_id = ?", accountID).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// ClearTx invalidates every session the account holds.
func (s *bearerSessions) ClearTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*BearerSession)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)

	return err
}

func (s *bearerSessions) CountLive(ctx context.Context, accountID uuid.UUID) (int, error) {
	return s.db.NewSelect().
		Model((*BearerSession)(nil)).
		Where("account_id = ?", accountID).
		Count(ctx)
}
