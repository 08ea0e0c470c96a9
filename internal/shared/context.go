package shared

import "context"

type actorContextKey struct{}

type companyContextKey struct{}

// ContextWithActor stores the authenticated actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}

// ContextWithCompany stores the tenant id in context.
func ContextWithCompany(ctx context.Context, companyID int64) context.Context {
	return context.WithValue(ctx, companyContextKey{}, companyID)
}

// CompanyFromContext extracts the tenant id from context.
func CompanyFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(companyContextKey{}).(int64)
	return id
}
