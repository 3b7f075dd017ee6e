package auth

import (
	"context"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the token claims in the given context
func WithClaimsContext(r context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the token claims from the standard context
func GetClaims(ctx context.Context) (*TokenClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*TokenClaims)
	return raw, ok && raw != nil
}

// WithPrincipalContext stores both the user and the claims of p.
func WithPrincipalContext(ctx context.Context, p *Principal) context.Context {
	if p == nil {
		return ctx
	}
	ctx = WithContext(ctx, p.User)
	return WithClaimsContext(ctx, p.Claims)
}

// Can reports whether the user stored in ctx satisfies required.
func Can(ctx context.Context, required RoleSet) bool {
	user, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return user.IsActive() && Authorize(user.Role, required)
}
