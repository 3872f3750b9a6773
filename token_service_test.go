package localuser_test

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	localuser "github.com/goliatone/go-localuser"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedSettings() *localuser.Settings {
	cfg := localuser.NewSettings()
	cfg.JWT.Secret = "test-signing-secret"
	return cfg
}

func testClaims() *localuser.IdentityClaims {
	account := &localuser.Account{
		ID:          uuid.New(),
		Email:       "tester@example.com",
		Username:    "tester",
		DisplayName: "Tester",
		Groups:      []string{"staff"},
	}
	claims, _ := localuser.DefaultClaimsBuilder(nil, account)
	return claims
}

func TestTokenServiceMintAndValidate(t *testing.T) {
	ts := localuser.NewTokenService(signedSettings())
	require.True(t, ts.Enabled())

	claims := testClaims()
	token, err := ts.Mint(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, claims.UID, parsed.UID)
	assert.Equal(t, "tester", parsed.Username)
	assert.Equal(t, "tester@example.com", parsed.Email)
	assert.Equal(t, []string{"staff"}, parsed.Groups)
}

func TestTokenServiceDisabledWithoutSecret(t *testing.T) {
	ts := localuser.NewTokenService(localuser.NewSettings())
	assert.False(t, ts.Enabled())
}

func TestTokenServiceFailsClosedOnMissingClaims(t *testing.T) {
	ts := localuser.NewTokenService(signedSettings())

	claims := testClaims()
	claims.Email = ""

	_, err := ts.Mint(claims)
	require.Error(t, err)
	var rich *goerrors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, "INVALID_TOKEN_PAYLOAD", rich.TextCode)
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	ts := localuser.NewTokenService(signedSettings()).
		WithClock(func() time.Time { return past })

	token, err := ts.Mint(testClaims())
	require.NoError(t, err)

	// Validation runs on jwt's own clock, one hour after issue.
	live := localuser.NewTokenService(signedSettings())
	_, err = live.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, localuser.ErrTokenExpired)
}

func TestTokenServiceRejectsForeignSignature(t *testing.T) {
	ts := localuser.NewTokenService(signedSettings())

	other := localuser.NewSettings()
	other.JWT.Secret = "a-different-secret"
	foreign := localuser.NewTokenService(other)

	token, err := foreign.Mint(testClaims())
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.Error(t, err)
}

func TestTokenServiceNeedsRefresh(t *testing.T) {
	now := time.Now()
	ts := localuser.NewTokenService(signedSettings()).
		WithClock(func() time.Time { return now })

	claims := testClaims()
	_, err := ts.Mint(claims)
	require.NoError(t, err)

	assert.False(t, ts.NeedsRefresh(claims))

	// Just before the threshold (500s) the token is still fresh.
	early := localuser.NewTokenService(signedSettings()).
		WithClock(func() time.Time { return now.Add(499 * time.Second) })
	assert.False(t, early.NeedsRefresh(claims))

	aged := localuser.NewTokenService(signedSettings()).
		WithClock(func() time.Time { return now.Add(501 * time.Second) })
	assert.True(t, aged.NeedsRefresh(claims))
}
