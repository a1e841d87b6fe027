// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them, services read them, and tests
// inject them without running the HTTP stack.
//
// Usage in services:
//
//	now := requestcontext.Now(ctx)
//	actor := requestcontext.Actor(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, requestcontext.ActorInfo{ID: "admin-1"})
package requestcontext

import (
	"context"
	"time"
)

type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	contextKeyActor       = actorKey{}
	contextKeyRequestID   = requestIDKey{}
	contextKeyRequestTime = requestTimeKey{}
)

// ActorInfo identifies who performs an administrative action. Audit entries
// record it verbatim; the core never resolves it against a user directory.
type ActorInfo struct {
	ID    string
	Email string
	Name  string
}

// Actor retrieves the authenticated actor from the context.
// Returns the zero value if not set.
func Actor(ctx context.Context) ActorInfo {
	if actor, ok := ctx.Value(contextKeyActor).(ActorInfo); ok {
		return actor
	}
	return ActorInfo{}
}

// WithActor injects an actor into the context.
func WithActor(ctx context.Context, actor ActorInfo) context.Context {
	return context.WithValue(ctx, contextKeyActor, actor)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. All writes within one
// request share the same timestamp, which keeps audit ordering deterministic.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests that
// don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Tests use this to pin the
// clock; the requesttime middleware uses it to stamp each request once.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime, t)
}
