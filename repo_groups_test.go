package localuser_test

import (
	"context"
	"testing"

	localuser "github.com/goliatone/go-localuser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupsEnsureIsIdempotent(t *testing.T) {
	repo, db, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, repo.Groups().Ensure(ctx, "Staff", "Staff Members"))
	require.NoError(t, repo.Groups().Ensure(ctx, "staff", "Staff Members"))
	require.NoError(t, repo.Groups().Ensure(ctx, "STAFF", "Staff Members"))

	group, err := repo.Groups().GetByCode(ctx, "staff")
	require.NoError(t, err)
	assert.Equal(t, "staff", group.Code)
	assert.Equal(t, "Staff Members", group.Name)
	assert.True(t, group.Active)

	count, err := db.NewSelect().Model((*localuser.Group)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGroupsNameDefaultsToCode(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, repo.Groups().Ensure(ctx, "ops", ""))

	group, err := repo.Groups().GetByCode(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, "ops", group.Name)
}
