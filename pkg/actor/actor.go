// Package actor models the identity performing operations: an authenticated
// caller, the fallback operator when no token is presented, or the system
// itself for pipeline-initiated work.
package actor

import (
	"context"
)

// Identity describes who is performing an operation.
type Identity struct {
	// ID is a stable identifier, e.g. "usr-1f3a" or "system".
	ID string
	// DisplayName is shown in audit logs and notifications.
	DisplayName string
	// System is true for pipeline- and worker-initiated operations.
	System bool
}

// Well-known identities.
var (
	// SystemIdentity attributes pipeline-initiated work (summarization,
	// retries) in audit logs.
	SystemIdentity = Identity{ID: "system", DisplayName: "System", System: true}

	// DefaultOperator is attached to requests that carry no token, so
	// deployments without a login flow keep working.
	DefaultOperator = Identity{ID: "default_operator", DisplayName: "Operator"}
)

type contextKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached to the context.
// Contexts without one resolve to the default operator.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return DefaultOperator
}
