// Package ctxkeys holds the typed context keys shared by api and its subpackages.
package ctxkeys

import "context"

// Key is the named type for all API context keys.
type Key string

const (
	// Username is injected by middleware.Authenticate from the token claims.
	Username Key = "username"

	// Role is injected alongside Username.
	Role Key = "role"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// String returns the value stored under key, or "" when absent.
func String(ctx context.Context, key Key) string {
	v, _ := ctx.Value(key).(string)
	return v
}
