package localuser

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	// AccountLocalsKey is where the authenticating middleware stores the
	// resolved account for downstream handlers.
	AccountLocalsKey = "account"
	// ResolutionLocalsKey holds the full credential resolution.
	ResolutionLocalsKey = "resolution"

	// HeaderNewToken carries a proactively reissued signed token back to the
	// client. Clients swap their stored token when they see it.
	HeaderNewToken = "X-New-Token"

	headerExposeHeaders = "Access-Control-Expose-Headers"
)

// Authenticate returns the middleware that resolves the request credential
// and makes the account available to downstream handlers. A failed
// resolution short-circuits through the error handler.
func Authenticate(auth *SessionAuthenticator, errorHandler router.ErrorHandler) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = WriteError
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			res, err := auth.Resolve(c.Context(), NewRouterCarrier(c, auth.config.GetCookieName()))
			if err != nil {
				return errorHandler(c, err)
			}

			c.Locals(AccountLocalsKey, res.Account)
			c.Locals(ResolutionLocalsKey, res)
			c.SetContext(WithResolution(WithAccount(c.Context(), res.Account), res))

			if res.RefreshedToken != "" {
				c.SetHeader(HeaderNewToken, res.RefreshedToken)
				exposeHeader(c, HeaderNewToken)
			}

			return next(c)
		}
	}
}

// RequireGroups returns the middleware that gates a route on group
// membership. Checks run any-of: holding one listed group is enough.
// It expects Authenticate to have run earlier in the chain.
func RequireGroups(errorHandler router.ErrorHandler, groups ...string) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = WriteError
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			account, ok := AccountFromRouter(c, AccountLocalsKey)
			if !ok {
				return errorHandler(c, ErrUnauthenticated)
			}

			if !account.HasAnyGroup(groups...) {
				return errorHandler(c, ErrForbidden)
			}

			return next(c)
		}
	}
}

// exposeHeader appends a header name to Access-Control-Expose-Headers so
// browser clients can read it across origins.
func exposeHeader(c router.Context, name string) {
	existing := c.Header(headerExposeHeaders)
	if existing == "" {
		c.SetHeader(headerExposeHeaders, name)
		return
	}

	for _, h := range strings.Split(existing, ",") {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return
		}
	}

	c.SetHeader(headerExposeHeaders, existing+", "+name)
}

// routerCarrier adapts a router context to the credential locations the
// authenticator inspects.
type routerCarrier struct {
	ctx        router.Context
	cookieName string
}

var _ CredentialCarrier = (*routerCarrier)(nil)

// NewRouterCarrier wraps a router context as a CredentialCarrier.
func NewRouterCarrier(ctx router.Context, cookieName string) CredentialCarrier {
	return &routerCarrier{ctx: ctx, cookieName: cookieName}
}

func (r *routerCarrier) AuthorizationHeader() string {
	return r.ctx.Header(router.HeaderAuthorization)
}

func (r *routerCarrier) AccessToken() string {
	return r.ctx.Query("access_token", "")
}

func (r *routerCarrier) Cookie(name string) string {
	if name == "" {
		name = r.cookieName
	}
	return r.ctx.Cookies(name)
}

// WriteError maps the error taxonomy onto HTTP statuses and writes the
// standard failure envelope.
func WriteError(c router.Context, err error) error {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		rich = goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected error").
			WithCode(goerrors.CodeInternal)
	}

	status := rich.Code
	if status == 0 {
		status = goerrors.CodeInternal
	}

	return c.JSON(status, map[string]any{
		"success": false,
		"message": rich.Message,
		"code":    rich.TextCode,
	})
}
