package common

import "context"

type ctxKey string

const sessionKey ctxKey = "cart/session-key"

// WithSession stores the visitor's cart session key on ctx.
func WithSession(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKey, key)
}

// Session extracts the cart session key from ctx if present.
func Session(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(sessionKey).(string)
	return key, ok && key != ""
}
