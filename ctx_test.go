package localuser_test

import (
	"context"
	"testing"

	localuser "github.com/goliatone/go-localuser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountContextRoundTrip(t *testing.T) {
	base := context.Background()

	_, ok := localuser.AccountFromContext(base)
	assert.False(t, ok)

	account := &localuser.Account{Username: "ctx", Groups: []string{"staff"}}
	ctx := localuser.WithAccount(base, account)

	got, ok := localuser.AccountFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "ctx", got.Username)
}

func TestResolutionContextRoundTrip(t *testing.T) {
	base := context.Background()

	_, ok := localuser.ResolutionFromContext(base)
	assert.False(t, ok)

	res := &localuser.Resolution{Kind: localuser.CredentialBearer}
	ctx := localuser.WithResolution(base, res)

	got, ok := localuser.ResolutionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, localuser.CredentialBearer, got.Kind)
}

func TestMemberOf(t *testing.T) {
	account := &localuser.Account{Groups: []string{"staff"}}
	ctx := localuser.WithAccount(context.Background(), account)

	assert.True(t, localuser.MemberOf(ctx, "staff"))
	assert.True(t, localuser.MemberOf(ctx, "sysadmin", "staff"))
	assert.False(t, localuser.MemberOf(ctx, "sysadmin"))
	assert.False(t, localuser.MemberOf(context.Background(), "staff"))
}
