package api

import "context"

type contextKey struct{ name string }

var (
	userIDKey    = contextKey{"user_id"}
	accountIDKey = contextKey{"account_id"}
)

// WithIdentity returns a context with the authenticated user and account set.
// Handlers read these via GetUserID and GetAccountID.
func WithIdentity(ctx context.Context, userID, accountID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, accountIDKey, accountID)
	return ctx
}

// GetUserID returns the user id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetAccountID returns the account id from context and true if set; otherwise "", false.
func GetAccountID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accountIDKey).(string)
	return v, ok
}

// accountAllowed reports whether the request may act on accountID. Requests
// without an authenticated identity (auth middleware disabled) are allowed.
func accountAllowed(ctx context.Context, accountID string) bool {
	tokenAccount, ok := GetAccountID(ctx)
	if !ok {
		return true
	}
	return tokenAccount == accountID
}
