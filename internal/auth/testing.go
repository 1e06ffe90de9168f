package auth

import "context"

// SetUserIDForTest injects a user ID into the context for handler tests.
func SetUserIDForTest(ctx context.Context, userID string) context.Context {
	return WithUserID(ctx, userID)
}
