package gatekeeper

import (
	"context"

	"request-gatekeeper/middleware/gatekeeper/domain"
)

type contextKey struct{}

func withAuthenticated(ctx context.Context, ac domain.AuthenticatedContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext devolve o AuthenticatedContext anexado pelo Middleware.
// O handler de negócio só é chamado quando ele existe.
func FromContext(ctx context.Context) (domain.AuthenticatedContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(domain.AuthenticatedContext)
	return ac, ok
}
