package internal

import (
	"context"
	"time"

	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

type ctxKey string

const ContextUserKey ctxKey = "user"

// UserFromContext returns the authenticated user resolved by the auth
// middleware, or nil when the request is anonymous.
func UserFromContext(ctx context.Context) *userDatamodel.User {
	if ctx == nil {
		return nil
	}
	if user, ok := ctx.Value(ContextUserKey).(*userDatamodel.User); ok {
		return user
	}
	return nil
}

func ContextWithUser(ctx context.Context, user *userDatamodel.User) context.Context {
	return context.WithValue(ctx, ContextUserKey, user)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
