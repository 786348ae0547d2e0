package activity

import "context"

// Actor captures actor/tenant identifiers attached to emitted events.
type Actor struct {
	ActorID  string
	TenantID string
}

type actorKey struct{}

// WithActor stores the acting identity on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom extracts the acting identity, if present.
func ActorFrom(ctx context.Context) Actor {
	if ctx == nil {
		return Actor{}
	}
	if actor, ok := ctx.Value(actorKey{}).(Actor); ok {
		return actor
	}
	return Actor{}
}
