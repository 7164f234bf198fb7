package shared

import "context"

type orgContextKey struct{}

// ContextWithOrg stores the organisation id in context. Core operations
// always read the tenant from here, never from ambient process state.
func ContextWithOrg(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, orgContextKey{}, orgID)
}

// OrgFromContext extracts the organisation id from context.
// Returns 0 when no organisation has been resolved.
func OrgFromContext(ctx context.Context) int64 {
	orgID, _ := ctx.Value(orgContextKey{}).(int64)
	return orgID
}
