// internal/app/system/router/router.go

// Package router resolves the storage root for a request.
//
// There is exactly one resolution function, parameterized only by kind.
// Every storage kind (files, structured records, search index, reminders)
// goes through it, so two kinds can never disagree about the root a logical
// owner's data lives under. Re-implementing the priority order per kind is
// the documented cause of split-storage defects and is deliberately
// impossible here: the kind is validated and then ignored.
package router

import (
	"errors"

	"github.com/convokit/warden/internal/app/system/reqctx"
)

// Kind names a storage backend category. The root is identical across
// kinds; the kind exists so backends can tag their requests and so an
// unknown caller is rejected loudly.
type Kind string

const (
	KindFiles     Kind = "files"
	KindRecords   Kind = "records"
	KindSearch    Kind = "search"
	KindReminders Kind = "reminders"
)

// IsValid reports whether k is a known storage kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindFiles, KindRecords, KindSearch, KindReminders:
		return true
	}
	return false
}

var (
	// ErrNoContext means no workspace or conversation was resolvable for
	// the request. Callers must abort the operation; falling back to some
	// other root would silently split an owner's data across roots.
	ErrNoContext = errors.New("no workspace or conversation in request context")

	// ErrUnknownKind means the caller asked for a storage kind this engine
	// does not know about.
	ErrUnknownKind = errors.New("unknown storage kind")
)

// Root prefixes. A workspace root and a legacy conversation root can never
// collide because the prefixes differ.
const (
	workspacePrefix    = "workspace:"
	conversationPrefix = "conversation:"
)

// WorkspaceRoot returns the root id for a workspace id (ObjectID hex).
func WorkspaceRoot(workspaceID string) string {
	return workspacePrefix + workspaceID
}

// ConversationRoot returns the legacy root id for a conversation handle.
func ConversationRoot(conversationID string) string {
	return conversationPrefix + conversationID
}

// ResolveRoot returns the storage root for the request, applying the fixed
// priority order: explicit workspace parameter, then the ambient workspace,
// then the ambient legacy conversation. When none is present it returns
// ErrNoContext; there is no default root.
func ResolveRoot(kind Kind, explicitWorkspaceID string, rc reqctx.Info) (string, error) {
	if !kind.IsValid() {
		return "", ErrUnknownKind
	}
	if explicitWorkspaceID != "" {
		return WorkspaceRoot(explicitWorkspaceID), nil
	}
	if rc.WorkspaceID != "" {
		return WorkspaceRoot(rc.WorkspaceID), nil
	}
	if rc.ConversationID != "" {
		return ConversationRoot(rc.ConversationID), nil
	}
	return "", ErrNoContext
}
