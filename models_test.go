package localuser_test

import (
	"testing"
	"time"

	localuser "github.com/goliatone/go-localuser"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationTokenLifecycle(t *testing.T) {
	signup := localuser.NewVerificationToken(localuser.TokenPurposeSignup)
	assert.True(t, signup.Live())
	assert.True(t, signup.Matches(localuser.TokenPurposeSignup, signup.Value))
	assert.False(t, signup.Matches(localuser.TokenPurposeReset, signup.Value))
	assert.False(t, signup.Matches(localuser.TokenPurposeSignup, "other-value"))

	spent := localuser.NewVerificationToken(localuser.TokenPurposeVerified)
	assert.False(t, spent.Live())
	assert.False(t, spent.Matches(localuser.TokenPurposeVerified, spent.Value))
}

func TestAccountIsVerified(t *testing.T) {
	account := &localuser.Account{}
	assert.False(t, account.IsVerified())

	now := time.Now()
	account.VerifiedAt = &now
	assert.True(t, account.IsVerified())

	var nilAccount *localuser.Account
	assert.False(t, nilAccount.IsVerified())
}

func TestAccountHasAnyGroup(t *testing.T) {
	account := &localuser.Account{Groups: []string{"staff", "billing"}}

	assert.True(t, account.HasAnyGroup("staff"))
	assert.True(t, account.HasAnyGroup("nope", "billing"))
	assert.False(t, account.HasAnyGroup("sysadmin"))
	assert.False(t, account.HasAnyGroup())

	var nilAccount *localuser.Account
	assert.False(t, nilAccount.HasAnyGroup("staff"))
}

func TestSanitizeStripsSecrets(t *testing.T) {
	account := &localuser.Account{
		ID:           uuid.New(),
		Email:        "svc@example.com",
		Username:     "svc-bot",
		AuthType:     localuser.AuthTypeServiceSecret,
		PasswordHash: "hash",
		PasswordSalt: "salt",
		ServiceSecret: "svc" +
			"SuperSecretValue123",
		Active: true,
		Groups: []string{"bots"},
	}

	profile := account.Sanitize(false)
	require.NotNil(t, profile)

	assert.Equal(t, account.Email, profile.Email)
	assert.Equal(t, []string{"bots"}, profile.Groups)
	// Masked: everything hidden but the last 3 characters.
	assert.NotEqual(t, account.ServiceSecret, profile.ServiceSecret)
	assert.Contains(t, profile.ServiceSecret, "123")
	assert.Contains(t, profile.ServiceSecret, "*")

	revealed := account.Sanitize(true)
	assert.Equal(t, account.ServiceSecret, revealed.ServiceSecret)
}

func TestSanitizePasswordAccountHasNoSecret(t *testing.T) {
	account := &localuser.Account{
		ID:           uuid.New(),
		Email:        "user@example.com",
		Username:     "user",
		AuthType:     localuser.AuthTypePassword,
		PasswordHash: "hash",
		PasswordSalt: "salt",
	}

	profile := account.Sanitize(false)
	assert.Empty(t, profile.ServiceSecret)
}

func TestBearerSessionWindow(t *testing.T) {
	idle := time.Hour
	remember := 14 * 24 * time.Hour

	session := &localuser.BearerSession{Remember: false}
	assert.Equal(t, idle, session.Window(idle, remember))

	session.Remember = true
	assert.Equal(t, remember, session.Window(idle, remember))
}
