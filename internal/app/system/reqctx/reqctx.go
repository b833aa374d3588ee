// internal/app/system/reqctx/reqctx.go

// Package reqctx carries the ambient per-request identity and workspace
// state as an immutable value on context.Context.
//
// Every inbound message is handled as an independent unit of work; its
// resolved canonical user, workspace, and conversation travel with the
// request context and never through shared mutable state. The value is
// copied on With, so two concurrent units can never observe each other's
// ambient state.
package reqctx

import "context"

type ctxKey struct{}

// Info is the ambient context for one unit of work.
type Info struct {
	UserID         string // canonical user_id, "" if unresolved
	WorkspaceID    string // workspace ObjectID hex, "" if unresolved
	ConversationID string // legacy conversation handle, "" if none
}

// With returns a child context carrying info.
func With(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// From extracts the ambient Info. ok is false when no info was attached;
// callers must treat that as "no resolvable context", never substitute a
// default.
func From(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(ctxKey{}).(Info)
	return info, ok
}
