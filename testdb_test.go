package localuser_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	localuser "github.com/goliatone/go-localuser"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCreateAccounts = `CREATE TABLE localuser_accounts (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL UNIQUE,
    display_name TEXT,
    auth_type TEXT NOT NULL,
    password_hash TEXT,
    password_salt TEXT,
    service_secret TEXT,
    verify_purpose TEXT,
    verify_token TEXT,
    verify_issued_at TIMESTAMP NULL,
    verified_at TIMESTAMP NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    groups TEXT,
    login_attempts INTEGER NOT NULL DEFAULT 0,
    login_attempt_at TIMESTAMP NULL,
    last_login_at TIMESTAMP NULL,
    last_logout_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

	sqliteCreateSessions = `CREATE TABLE localuser_sessions (
    id TEXT NOT NULL PRIMARY KEY,
    account_id TEXT NOT NULL,
    token TEXT NOT NULL UNIQUE,
    remember BOOLEAN NOT NULL DEFAULT FALSE,
    last_seen TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (account_id) REFERENCES localuser_accounts (id) ON DELETE CASCADE
);`

	sqliteCreateGroups = `CREATE TABLE localuser_groups (
    id TEXT NOT NULL PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL UNIQUE,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    note TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

	sqliteCreateNonces = `CREATE TABLE localuser_nonces (
    id TEXT NOT NULL PRIMARY KEY,
    account_id TEXT NOT NULL,
    token TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    consumed_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (account_id) REFERENCES localuser_accounts (id) ON DELETE CASCADE
);`
)

func setupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	for _, stmt := range []string{
		sqliteCreateAccounts,
		sqliteCreateSessions,
		sqliteCreateGroups,
		sqliteCreateNonces,
	} {
		_, err = bunDB.Exec(stmt)
		require.NoError(t, err)
	}

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return bunDB, cleanup
}

func setupRepoManager(t *testing.T) (localuser.RepositoryManager, *bun.DB, func()) {
	t.Helper()

	db, cleanup := setupTestDB(t)
	repo := localuser.NewRepositoryManager(db)
	repo.MustValidate()

	return repo, db, cleanup
}

// seedAccount inserts a verified, active password account ready to log in.
func seedAccount(t *testing.T, repo localuser.RepositoryManager, email, username, password string) *localuser.Account {
	t.Helper()

	hasher := localuser.NewPasswordHasher()
	hash, salt, err := hasher.HashPassword(password)
	require.NoError(t, err)

	now := time.Now()
	account := &localuser.Account{
		Email:        email,
		Username:     username,
		DisplayName:  username,
		AuthType:     localuser.AuthTypePassword,
		PasswordHash: hash,
		PasswordSalt: salt,
		VerifiedAt:   &now,
		Active:       true,
	}

	account, err = repo.Accounts().Create(context.Background(), account)
	require.NoError(t, err)

	return account
}
