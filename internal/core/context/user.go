package context

import (
	"context"
)

// Actor identifies who performs a request. Authentication happens upstream;
// the gateway forwards the identity in headers and the HTTP layer copies it here.
type Actor struct {
	UserID    string
	Email     string
	Name      string
	IPAddress string
	UserAgent string
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}
