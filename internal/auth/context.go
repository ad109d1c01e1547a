package auth

import (
	"context"

	"github.com/dukerupert/noteflow/internal/model"
)

type contextKey struct{}

// WithIdentity stores the resolved caller in ctx.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller stored by WithIdentity. ok is false for
// anonymous requests.
func FromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(model.Identity)
	return id, ok && id.ID != ""
}

// UserID returns the caller's id, or "" when anonymous.
func UserID(ctx context.Context) string {
	id, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return id.ID
}
