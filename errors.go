package localuser

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrUnauthenticated is returned when no usable credential is present and no
// anonymous account is available as a fallback principal.
var ErrUnauthenticated = goerrors.New("no credentials provided and no anonymous account available", goerrors.CategoryAuth).
	WithTextCode("UNAUTHENTICATED").
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountUnverified is returned when a credential resolves to an account
// that never completed email verification.
var ErrAccountUnverified = goerrors.New("account has not been verified", goerrors.CategoryAuth).
	WithTextCode("ACCOUNT_UNVERIFIED").
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned when a presented credential matches no
// live session, secret, or signed token.
var ErrInvalidCredentials = goerrors.New("incorrect or expired credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_OR_EXPIRED_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrIncorrectLogin collapses not-found, wrong-password, and unverified login
// outcomes into one outward message so callers cannot probe for accounts.
var ErrIncorrectLogin = goerrors.New("incorrect username or password", goerrors.CategoryAuth).
	WithTextCode("INCORRECT_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when an authenticated account lacks every group
// required by the route.
var ErrForbidden = goerrors.New("no execute permissions on endpoint", goerrors.CategoryAuthz).
	WithTextCode("FORBIDDEN").
	WithCode(goerrors.CodeForbidden)

// ErrDuplicateIdentity is the generic conflict for signup. It deliberately
// does not say whether the email or the username collided.
var ErrDuplicateIdentity = goerrors.New("that username / email address is already registered", goerrors.CategoryConflict).
	WithTextCode("DUPLICATE_IDENTITY").
	WithCode(goerrors.CodeConflict)

// ErrInvalidTokenPayload is returned when a claims builder produced a signed
// token payload missing one of the required identity claims.
var ErrInvalidTokenPayload = goerrors.New("required attribute missing from token payload", goerrors.CategoryInternal).
	WithTextCode("INVALID_TOKEN_PAYLOAD").
	WithCode(goerrors.CodeInternal)

// ErrTooManyLoginAttempts is returned when the durable per-account attempt
// counter exceeds the configured maximum inside the rate-limit window.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts, account is cooling down", goerrors.CategoryAuth).
	WithTextCode("TOO_MANY_LOGIN_ATTEMPTS").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is surfaced for signed tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is surfaced for signed tokens that fail to parse or
// carry an unexpected signing method.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// wrapInternal converts store and transport failures into the generic
// internal class without leaking driver detail to the caller.
func wrapInternal(err error, msg string) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
