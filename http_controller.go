package localuser

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// ControllerRoutes names the paths the controller registers.
type ControllerRoutes struct {
	Signup       string
	Verify       string
	Login        string
	Forgot       string
	Reset        string
	Logout       string
	ForceLogout  string
	RotateSecret string
	Me           string
	SocketToken  string
}

// Controller wires the lifecycle handlers to HTTP routes. Every response is
// the `{success, message}` envelope plus operation-specific fields.
type Controller struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Config       Config
	Auth         *SessionAuthenticator
	Notifier     Notifier
	Activity     ActivitySink
	Routes       *ControllerRoutes
	ErrorHandler router.ErrorHandler
}

type ControllerOption func(*Controller) *Controller

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithControllerConfig(cfg Config) ControllerOption {
	return func(c *Controller) *Controller {
		c.Config = cfg
		return c
	}
}

func WithControllerAuth(auth *SessionAuthenticator) ControllerOption {
	return func(c *Controller) *Controller {
		c.Auth = auth
		return c
	}
}

func WithControllerNotifier(notifier Notifier) ControllerOption {
	return func(c *Controller) *Controller {
		c.Notifier = notifier
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) *Controller {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) ControllerOption {
	return func(c *Controller) *Controller {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:       defLogger{},
		Activity:     noopActivitySink{},
		ErrorHandler: WriteError,
		Routes: &ControllerRoutes{
			Signup:       "/auth/signup",
			Verify:       "/auth/verify",
			Login:        "/auth/login",
			Forgot:       "/auth/forgot",
			Reset:        "/auth/reset",
			Logout:       "/auth/logout",
			ForceLogout:  "/auth/users/:id/logout",
			RotateSecret: "/auth/secret",
			Me:           "/auth/me",
			SocketToken:  "/auth/sockettoken",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("missing RepositoryManager in localuser controller")
	}

	if c.Config == nil {
		panic("missing Config in localuser controller")
	}

	if c.Auth == nil {
		c.Auth = NewSessionAuthenticator(c.Repo, c.Config).
			WithLogger(c.Logger).
			WithActivitySink(c.Activity)
	}

	if c.Notifier == nil {
		c.Notifier = NewLogNotifier(c.Logger)
	}

	return c
}

// RegisterRoutes mounts the lifecycle endpoints. Routes past the
// authentication boundary get the Authenticate middleware; forced logout
// additionally requires the sysadmin group.
func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) *Controller {
	controller := NewController(opts...)

	authenticated := Authenticate(controller.Auth, controller.ErrorHandler)
	sysadminOnly := RequireGroups(controller.ErrorHandler, controller.Config.GetSysadminGroupCode())

	app.Post(controller.Routes.Signup, controller.Signup).SetName("auth.signup")
	app.Post(controller.Routes.Verify, controller.Verify).SetName("auth.verify")
	app.Post(controller.Routes.Login, controller.Login).SetName("auth.login")
	app.Post(controller.Routes.Forgot, controller.Forgot).SetName("auth.forgot")
	app.Post(controller.Routes.Reset, controller.Reset).SetName("auth.reset")

	app.Post(controller.Routes.Logout, controller.Logout, authenticated).SetName("auth.logout")
	app.Post(controller.Routes.ForceLogout, controller.ForceLogout, authenticated, sysadminOnly).SetName("auth.logout.forced")
	app.Post(controller.Routes.RotateSecret, controller.RotateSecret, authenticated).SetName("auth.secret.rotate")
	app.Get(controller.Routes.Me, controller.Me, authenticated).SetName("auth.me")
	app.Get(controller.Routes.SocketToken, controller.SocketToken, authenticated).SetName("auth.sockettoken")

	return controller
}

// SignupPayload is the signup request body
type SignupPayload struct {
	Email           string `form:"email" json:"email"`
	Username        string `form:"username" json:"username"`
	DisplayName     string `form:"display_name" json:"display_name"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules
func (r SignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Username, validation.Length(2, 100)),
		validation.Field(&r.DisplayName, validation.Length(1, 200)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *Controller) Signup(ctx router.Context) error {
	payload := new(SignupPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.validationError(ctx, err, "error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err, "error validating payload")
	}

	if a.Debug {
		a.Logger.Debug("signup payload: %s", print.MaybePrettyJSON(payload))
	}

	var res *SignupResponse
	msg := SignupMessage{
		Email:       payload.Email,
		Username:    payload.Username,
		DisplayName: payload.DisplayName,
		Password:    payload.Password,
		OnResponse:  func(r *SignupResponse) { res = r },
	}

	handler := NewSignupHandler(a.Repo, a.Config).
		WithNotifier(a.Notifier).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("signup error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"success": true,
		"message": "account created, check your email for a verification token",
		"profile": res.Profile,
	})
}

// VerifyPayload redeems a signup verification token
type VerifyPayload struct {
	Token string `form:"token" json:"token"`
}

// Validate will run validation rules
func (r VerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, validation.Length(16, 128)),
	)
}

func (a *Controller) Verify(ctx router.Context) error {
	payload := new(VerifyPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.validationError(ctx, err, "error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err, "error validating payload")
	}

	var res *VerifyResponse
	msg := VerifyMessage{
		Token:      payload.Token,
		OnResponse: func(r *VerifyResponse) { res = r },
	}

	handler := NewVerifyHandler(a.Repo, a.Config).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("verify error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": "account verified",
		"token":   res.Login.Token,
		"kind":    res.Login.Kind,
		"profile": res.Login.Profile,
	})
}

// LoginPayload is the login request body. The identifier is an email or a
// username, disambiguated by the presence of an @.
type LoginPayload struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) Login(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.validationError(ctx, err, "error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err, "error validating payload")
	}

	if a.Debug {
		a.Logger.Debug("login identifier: %s", payload.Identifier)
	}

	var res *LoginResult
	msg := LoginMessage{
		Identifier: payload.Identifier,
		Password:   payload.Password,
		Remember:   payload.RememberMe,
		OnResponse: func(r *LoginResult) { res = r },
	}

	handler := NewLoginHandler(a.Repo, a.Config).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": "login successful",
		"token":   res.Token,
		"kind":    res.Kind,
		"profile": res.Profile,
	})
}

// ForgotPayload starts a password reset
type ForgotPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ForgotPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *Controller) Forgot(ctx router.Context) error {
	payload := new(ForgotPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.validationError(ctx, err, "error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err, "error validating payload")
	}

	var res *ForgotResponse
	msg := ForgotMessage{
		Email:      payload.Email,
		OnResponse: func(r *ForgotResponse) { res = r },
	}

	handler := NewForgotHandler(a.Repo, a.Config).
		WithNotifier(a.Notifier).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("forgot error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": res.Message,
	})
}

// ResetPayload finalizes a password reset
type ResetPayload struct {
	Email           string `form:"email" json:"email"`
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules
func (r ResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required, validation.Length(16, 128)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *Controller) Reset(ctx router.Context) error {
	payload := new(ResetPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.validationError(ctx, err, "error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err, "error validating payload")
	}

	msg := ResetMessage{
		Email:    payload.Email,
		Token:    payload.Token,
		Password: payload.Password,
	}

	handler := NewResetHandler(a.Repo, a.Config).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("reset error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": "password updated, you can now log in",
	})
}

func (a *Controller) Logout(ctx router.Context) error {
	res, _ := ctx.Locals(ResolutionLocalsKey).(*Resolution)

	var out *LogoutResponse
	msg := LogoutMessage{
		Resolution: res,
		OnResponse: func(r *LogoutResponse) { out = r },
	}

	handler := NewLogoutHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("logout error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": out.Message,
		"cleared": out.Cleared,
	})
}

func (a *Controller) ForceLogout(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return a.validationError(ctx, err, "invalid account id")
	}

	actor, _ := AccountFromRouter(ctx, AccountLocalsKey)

	msg := ForceLogoutMessage{
		AccountID: id,
		Actor:     actor,
	}

	handler := NewForceLogoutHandler(a.Repo, a.Config).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("force logout error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": "all sessions cleared",
	})
}

func (a *Controller) RotateSecret(ctx router.Context) error {
	account, _ := AccountFromRouter(ctx, AccountLocalsKey)

	var res *RotateSecretResponse
	msg := RotateSecretMessage{
		Account:    account,
		OnResponse: func(r *RotateSecretResponse) { res = r },
	}

	handler := NewRotateSecretHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("rotate secret error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": "service secret rotated, store it now - it will not be shown again",
		"profile": res.Profile,
	})
}

func (a *Controller) Me(ctx router.Context) error {
	account, ok := AccountFromRouter(ctx, AccountLocalsKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"profile": account.Sanitize(false),
	})
}

func (a *Controller) SocketToken(ctx router.Context) error {
	account, ok := AccountFromRouter(ctx, AccountLocalsKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	var res *SocketTokenResponse
	msg := SocketTokenMessage{
		Account:    account,
		OnResponse: func(r *SocketTokenResponse) { res = r },
	}

	handler := NewSocketTokenHandler(a.Repo, a.Config).WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("socket token error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success":    true,
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
	})
}

func (a *Controller) validationError(ctx router.Context, err error, message string) error {
	a.Logger.Error(message, "error", err)

	return ctx.JSON(fiber.StatusBadRequest, map[string]any{
		"success": false,
		"message": message,
		"errors":  FormatValidationErrorToMap(err),
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return fmt.Errorf("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map for the response envelope.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if goerrors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if err != nil {
		out["payload"] = err.Error()
	}

	return out
}
