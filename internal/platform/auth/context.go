package auth

import (
	"context"
)

type contextKey string

const ActorKey contextKey = "actor"

// WithActor returns a copy of ctx carrying the resolved actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

// ActorFromContext returns the actor stored by WithActor, or nil.
func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(ActorKey).(Actor)
	return a
}

func UserIDFromContext(ctx context.Context) string {
	if a := ActorFromContext(ctx); a != nil {
		return a.Subject()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if a := ActorFromContext(ctx); a != nil {
		return RoleOf(a)
	}
	return ""
}
