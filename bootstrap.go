package localuser

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// BootstrapOptions names the records seeded on first run. Zero values fall
// back to the documented defaults; SysadminPassword left empty generates a
// random one and logs it once.
type BootstrapOptions struct {
	SysadminEmail    string
	SysadminUsername string
	SysadminPassword string
	AnonymousEmail   string
}

// Bootstrapper idempotently provisions the records the subsystem expects at
// runtime: the sysadmin group, a verified sysadmin account in it, and the
// verified anonymous fallback account. Seeded records get deterministic IDs
// derived from their email so repeated runs converge on the same rows.
type Bootstrapper struct {
	repo   RepositoryManager
	config Config
	hasher PasswordHasher
	logger Logger
}

func NewBootstrapper(repo RepositoryManager, opts Config) *Bootstrapper {
	return &Bootstrapper{
		repo:   repo,
		config: opts,
		hasher: NewPasswordHasher(),
		logger: defLogger{},
	}
}

func (b *Bootstrapper) WithHasher(hasher PasswordHasher) *Bootstrapper {
	if hasher != nil {
		b.hasher = hasher
	}
	return b
}

func (b *Bootstrapper) WithLogger(logger Logger) *Bootstrapper {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Run seeds the bootstrap records. Already-existing records are left alone,
// a collision on a unique constraint is success not failure. Safe to call on
// every startup.
func (b *Bootstrapper) Run(ctx context.Context, opts BootstrapOptions) error {
	if !b.config.GetBootstrapEnabled() {
		b.logger.Debug("bootstrap disabled, skipping")
		return nil
	}

	applyBootstrapDefaults(&opts)

	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	err := b.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		sysadminGroup := b.config.GetSysadminGroupCode()

		if err := b.repo.Groups().EnsureTx(ctx, tx, sysadminGroup, "System Administrators"); err != nil {
			return err
		}

		if err := b.ensureAccount(ctx, tx, &Account{
			Email:       opts.SysadminEmail,
			Username:    opts.SysadminUsername,
			DisplayName: "System Administrator",
			AuthType:    AuthTypePassword,
			Active:      true,
			Groups:      []string{sysadminGroup},
		}, opts.SysadminPassword); err != nil {
			return err
		}

		if b.config.GetAnonymousEnabled() {
			if err := b.ensureAccount(ctx, tx, &Account{
				Email:       opts.AnonymousEmail,
				Username:    AnonymousUsername,
				DisplayName: "Anonymous",
				AuthType:    AuthTypePassword,
				Active:      true,
			}, ""); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bootstrap transaction failed")
	}

	return nil
}

// ensureAccount creates the record unless its username is already taken.
// Seeded accounts are verified from birth, the bootstrap marker keeps the
// verification slot spent.
func (b *Bootstrapper) ensureAccount(ctx context.Context, tx bun.IDB, account *Account, password string) error {
	existing, err := b.repo.Accounts().GetByIdentityTx(ctx, tx, account.Username)
	if err == nil && existing != nil {
		return nil
	}
	if err != nil && !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check bootstrap account")
	}

	if password == "" {
		// No usable password for the anonymous account; a random throwaway
		// still gets hashed so the column is never empty.
		password = GenerateVerifyValue()
		if account.Username != AnonymousUsername {
			b.logger.Warn("bootstrap generated a password", "username", account.Username, "password", password)
		}
	}

	hash, salt, err := b.hasher.HashPassword(password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash bootstrap password")
	}

	now := time.Now()
	account.PasswordHash = hash
	account.PasswordSalt = salt
	account.VerifiedAt = &now
	account.Verify = VerificationToken{
		Purpose:  TokenPurposeBootstrap,
		Value:    GenerateVerifyValue(),
		IssuedAt: &now,
	}

	if id, err := hashid.NewUUID(account.Email); err == nil {
		account.ID = id
	}

	if _, err := b.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
		// Concurrent bootstrap runs race on the unique constraints, the
		// loser's conflict is still a successful outcome.
		b.logger.Debug("bootstrap account already present", "username", account.Username)
		return nil
	}

	b.logger.Info("bootstrap seeded account", "username", account.Username)
	return nil
}

func applyBootstrapDefaults(opts *BootstrapOptions) {
	if opts.SysadminUsername == "" {
		opts.SysadminUsername = "sysadmin"
	}
	if opts.SysadminEmail == "" {
		opts.SysadminEmail = "sysadmin@localhost"
	}
	if opts.AnonymousEmail == "" {
		opts.AnonymousEmail = "anonymous@localhost"
	}
}
