package localuser

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Accounts() Accounts
	Groups() Groups
	Sessions() BearerSessions
	Nonces() SocketNonces
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	groups   Groups
	sessions BearerSessions
	nonces   SocketNonces
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		groups:   NewGroupsRepository(db),
		sessions: NewBearerSessionsRepository(db),
		nonces:   NewSocketNoncesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.groups == nil {
		return errors.New("repository groups should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.nonces == nil {
		return errors.New("repository nonces should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Groups() Groups {
	return m.groups
}

func (m mngr) Sessions() BearerSessions {
	return m.sessions
}

func (m mngr) Nonces() SocketNonces {
	return m.nonces
}
