package localuser_test

import (
	"context"
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	localuser "github.com/goliatone/go-localuser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewControllerDefaults(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	assert.Panics(t, func() {
		localuser.NewController()
	})

	assert.Panics(t, func() {
		localuser.NewController(localuser.WithControllerRepo(repo))
	})

	controller := localuser.NewController(
		localuser.WithControllerRepo(repo),
		localuser.WithControllerConfig(localuser.NewSettings()),
	)

	assert.NotNil(t, controller.Auth)
	assert.NotNil(t, controller.Notifier)
	assert.Equal(t, "/auth/login", controller.Routes.Login)
}

func TestControllerSignup(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	controller := localuser.NewController(
		localuser.WithControllerRepo(repo),
		localuser.WithControllerConfig(localuser.NewSettings()),
	)

	mockCtx := new(MockContext)
	mockCtx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*localuser.SignupPayload)
		payload.Email = "web@example.com"
		payload.Password = "correct horse battery"
		payload.ConfirmPassword = "correct horse battery"
	}).Return(nil)
	mockCtx.On("Context").Return(context.Background())

	var status int
	var body map[string]any
	mockCtx.On("JSON", mock.AnythingOfType("int"), mock.Anything).Run(func(args mock.Arguments) {
		status = args.Get(0).(int)
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Signup(mockCtx))

	assert.Equal(t, 201, status)
	assert.Equal(t, true, body["success"])
	require.NotNil(t, body["profile"])

	// The record really was created.
	account, err := repo.Accounts().GetByIdentity(context.Background(), "web@example.com")
	require.NoError(t, err)
	assert.False(t, account.IsVerified())
}

func TestControllerSignupValidation(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	controller := localuser.NewController(
		localuser.WithControllerRepo(repo),
		localuser.WithControllerConfig(localuser.NewSettings()),
	)

	mockCtx := new(MockContext)
	mockCtx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*localuser.SignupPayload)
		payload.Email = "not-an-email"
		payload.Password = "short"
		payload.ConfirmPassword = "different"
	}).Return(nil)

	var status int
	var body map[string]any
	mockCtx.On("JSON", mock.AnythingOfType("int"), mock.Anything).Run(func(args mock.Arguments) {
		status = args.Get(0).(int)
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Signup(mockCtx))

	assert.Equal(t, 400, status)
	assert.Equal(t, false, body["success"])

	fields := body["errors"].(map[string]string)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "confirm_password")
}

func TestControllerLoginRejectsBadPassword(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	seedAccount(t, repo, "web2@example.com", "web2", "hunter2hunter2")

	controller := localuser.NewController(
		localuser.WithControllerRepo(repo),
		localuser.WithControllerConfig(localuser.NewSettings()),
	)

	mockCtx := new(MockContext)
	mockCtx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*localuser.LoginPayload)
		payload.Identifier = "web2@example.com"
		payload.Password = "wrong password"
	}).Return(nil)
	mockCtx.On("Context").Return(context.Background())

	var status int
	var body map[string]any
	mockCtx.On("JSON", mock.AnythingOfType("int"), mock.Anything).Run(func(args mock.Arguments) {
		status = args.Get(0).(int)
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Login(mockCtx))

	assert.Equal(t, 401, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "INCORRECT_CREDENTIALS", body["code"])
}

func TestControllerMe(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	account := seedAccount(t, repo, "me@example.com", "me", "hunter2hunter2")

	controller := localuser.NewController(
		localuser.WithControllerRepo(repo),
		localuser.WithControllerConfig(localuser.NewSettings()),
	)

	mockCtx := new(MockContext)
	mockCtx.On("Locals", localuser.AccountLocalsKey).Return(account)

	var body map[string]any
	mockCtx.On("JSON", 200, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Me(mockCtx))

	profile := body["profile"].(*localuser.Profile)
	assert.Equal(t, "me@example.com", profile.Email)

	// Without the authenticate middleware there is no account to report.
	bare := new(MockContext)
	bare.On("Locals", localuser.AccountLocalsKey).Return(nil)

	var status int
	bare.On("JSON", mock.AnythingOfType("int"), mock.Anything).Run(func(args mock.Arguments) {
		status = args.Get(0).(int)
	}).Return(nil)

	require.NoError(t, controller.Me(bare))
	assert.Equal(t, 401, status)
}

func TestFormatValidationErrorToMap(t *testing.T) {
	verrs := validation.Errors{
		"email":    errors.New("must be a valid email"),
		"password": errors.New("the length must be between 10 and 100"),
	}

	out := localuser.FormatValidationErrorToMap(verrs)
	assert.Equal(t, "must be a valid email", out["email"])
	assert.Equal(t, "the length must be between 10 and 100", out["password"])

	out = localuser.FormatValidationErrorToMap(errors.New("malformed body"))
	assert.Equal(t, "malformed body", out["payload"])
}
