package localuser

import (
	"context"

	"github.com/goliatone/go-router"
)

var accountCtxKey = &contextKey{"account"}
var resolutionCtxKey = &contextKey{"resolution"}

type contextKey struct {
	name string
}

// WithAccount sets the authenticated Account in the given context
func WithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountCtxKey, account)
}

// AccountFromContext finds the authenticated account from the context.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok
}

// WithResolution sets the credential Resolution in the given context
func WithResolution(ctx context.Context, res *Resolution) context.Context {
	return context.WithValue(ctx, resolutionCtxKey, res)
}

// ResolutionFromContext extracts the credential Resolution from the context
func ResolutionFromContext(ctx context.Context) (*Resolution, bool) {
	raw, ok := ctx.Value(resolutionCtxKey).(*Resolution)
	return raw, ok
}

// AccountFromRouter extracts the authenticated account stored in router locals
func AccountFromRouter(ctx router.Context, key string) (*Account, bool) {
	if key == "" {
		key = "account"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	account, ok := raw.(*Account)
	return account, ok
}

// MemberOf is a convenience check against the authenticated account's groups
func MemberOf(ctx context.Context, groups ...string) bool {
	account, ok := AccountFromContext(ctx)
	if !ok {
		return false
	}
	return account.HasAnyGroup(groups...)
}
