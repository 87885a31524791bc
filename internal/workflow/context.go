package workflow

import (
	"context"
	"strings"
)

type ctxKey string

const actorIDKey ctxKey = "workflow_actor_id"

// ContextWithActor stores the acting user's identifier in the context.
func ContextWithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(userID))
}

// ActorFromContext extracts the acting user's identifier from context.
func ActorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(actorIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
