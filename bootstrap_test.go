package localuser_test

import (
	"context"
	"testing"

	localuser "github.com/goliatone/go-localuser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapSeedsDefaults(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	cfg := localuser.NewSettings()

	boot := localuser.NewBootstrapper(repo, cfg)
	require.NoError(t, boot.Run(ctx, localuser.BootstrapOptions{
		SysadminPassword: "bootstrap password",
	}))

	sysadmin, err := repo.Accounts().GetByIdentity(ctx, "sysadmin")
	require.NoError(t, err)
	assert.True(t, sysadmin.IsVerified())
	assert.True(t, sysadmin.HasAnyGroup(cfg.GetSysadminGroupCode()))

	group, err := repo.Groups().GetByCode(ctx, cfg.GetSysadminGroupCode())
	require.NoError(t, err)
	assert.Equal(t, "System Administrators", group.Name)

	anon, err := repo.Accounts().GetAnonymous(ctx)
	require.NoError(t, err)
	assert.True(t, anon.IsVerified())

	// Seeded with a usable password: the sysadmin can log in right away.
	login := localuser.NewLoginHandler(repo, cfg)
	require.NoError(t, login.Execute(ctx, localuser.LoginMessage{
		Identifier: "sysadmin",
		Password:   "bootstrap password",
	}))
}

func TestBootstrapIsIdempotent(t *testing.T) {
	repo, db, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	cfg := localuser.NewSettings()
	boot := localuser.NewBootstrapper(repo, cfg)

	require.NoError(t, boot.Run(ctx, localuser.BootstrapOptions{}))
	require.NoError(t, boot.Run(ctx, localuser.BootstrapOptions{}))

	accounts, err := db.NewSelect().Model((*localuser.Account)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, accounts)

	groups, err := db.NewSelect().Model((*localuser.Group)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, groups)
}

func TestBootstrapDisabled(t *testing.T) {
	repo, db, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	cfg := localuser.NewSettings()
	cfg.Bootstrap = false

	require.NoError(t, localuser.NewBootstrapper(repo, cfg).Run(ctx, localuser.BootstrapOptions{}))

	accounts, err := db.NewSelect().Model((*localuser.Account)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, accounts)
}

func TestBootstrapSkipsAnonymousWhenDisabled(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	cfg := localuser.NewSettings()
	cfg.Anonymous = false

	require.NoError(t, localuser.NewBootstrapper(repo, cfg).Run(ctx, localuser.BootstrapOptions{}))

	_, err := repo.Accounts().GetAnonymous(ctx)
	require.Error(t, err)
}
