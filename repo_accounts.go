package localuser

import (
	"context"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the credential store for identity records
type Accounts interface {
	repository.Repository[*Account]

	GetByIdentity(ctx context.Context, identifier string) (*Account, error)
	GetByIdentityTx(ctx context.Context, tx bun.IDB, identifier string) (*Account, error)
	GetByVerifyToken(ctx context.Context, purpose TokenPurpose, value string) (*Account, error)
	GetByVerifyTokenTx(ctx context.Context, tx bun.IDB, purpose TokenPurpose, value string) (*Account, error)
	GetByServiceSecret(ctx context.Context, secret string) (*Account, error)
	GetAnonymous(ctx context.Context) (*Account, error)

	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

// AnonymousUsername designates the fallback principal for requests that
// carry no credential at all.
const AnonymousUsername = "anonymous"

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

// GetByIdentity resolves an account by email or username. Identifiers with an
// @ are treated as emails, anything else as a username. Only active accounts
// can authenticate, inactive ones are invisible to this lookup.
func (a *accounts) GetByIdentity(ctx context.Context, identifier string) (*Account, error) {
	return a.GetByIdentityTx(ctx, a.db, identifier)
}

func (a *accounts) GetByIdentityTx(ctx context.Context, tx bun.IDB, identifier string) (*Account, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return nil, repository.NewRecordNotFound()
	}

	column := "username"
	if strings.Contains(identifier, "@") {
		column = "email"
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", identifier).
		Where("?TableAlias.active = ?", true).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"identifier": identifier})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) GetByVerifyToken(ctx context.Context, purpose TokenPurpose, value string) (*Account, error) {
	return a.GetByVerifyTokenTx(ctx, a.db, purpose, value)
}

func (a *accounts) GetByVerifyTokenTx(ctx context.Context, tx bun.IDB, purpose TokenPurpose, value string) (*Account, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.verify_purpose = ?", purpose).
		Where("?TableAlias.verify_token = ?", value).
		Where("?TableAlias.active = ?", true).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) GetByServiceSecret(ctx context.Context, secret string) (*Account, error) {
	if secret == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.auth_type = ?", AuthTypeServiceSecret).
		Where("?TableAlias.service_secret = ?", secret).
		Where("?TableAlias.active = ?", true).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) GetAnonymous(ctx context.Context) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", AnonymousUsername).
		Where("?TableAlias.active = ?", true).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, account)
}

// TrackAttemptedLoginTx increments the durable attempt counter. The counter
// survives restarts so the rate limit cannot be reset by bouncing the server.
func (a *accounts) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	now := time.Now()
	_, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempts = login_attempts + 1").
		Set("login_attempt_at = ?", now).
		Where("id = ?", account.ID).
		Exec(ctx)

	return err
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	now := time.Now()
	_, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("last_login_at = ?", now).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("id = ?", account.ID).
		Exec(ctx)

	return err
}
