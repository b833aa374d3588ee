// internal/domain/models/roles.go
package models

// Closed vocabularies for actions, roles, permissions, and workspace types.
// These are typed constants rather than free-form strings so an invalid role
// is a construction-time error, not a runtime surprise deep in a decision.

// Action is what a caller wants to do to a workspace or resource.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAdmin Action = "admin"
)

// IsValid reports whether a is one of the known actions.
func (a Action) IsValid() bool {
	switch a {
	case ActionRead, ActionWrite, ActionAdmin:
		return true
	}
	return false
}

// WorkspaceType distinguishes the three ownership topologies.
type WorkspaceType string

const (
	WorkspaceIndividual WorkspaceType = "individual"
	WorkspaceGroup      WorkspaceType = "group"
	WorkspacePublic     WorkspaceType = "public"
)

// IsValid reports whether t is one of the known workspace types.
func (t WorkspaceType) IsValid() bool {
	switch t {
	case WorkspaceIndividual, WorkspaceGroup, WorkspacePublic:
		return true
	}
	return false
}

// MemberRole is the role on an explicit WorkspaceMember grant.
// The hierarchy is monotonic: everything a reader may do an editor may do,
// and everything an editor may do an admin may do.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleEditor MemberRole = "editor"
	MemberRoleReader MemberRole = "reader"
)

// IsValid reports whether r is one of the known workspace member roles.
func (r MemberRole) IsValid() bool {
	switch r {
	case MemberRoleAdmin, MemberRoleEditor, MemberRoleReader:
		return true
	}
	return false
}

// Allows reports whether the role permits the action.
func (r MemberRole) Allows(a Action) bool {
	switch r {
	case MemberRoleAdmin:
		return a.IsValid()
	case MemberRoleEditor:
		return a == ActionRead || a == ActionWrite
	case MemberRoleReader:
		return a == ActionRead
	}
	return false
}

// GroupRole is the role on a group membership. A group admin gets read and
// write on the group workspace, deliberately weaker than an explicit
// workspace admin; a plain member gets read only.
type GroupRole string

const (
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

// IsValid reports whether r is one of the known group roles.
func (r GroupRole) IsValid() bool {
	return r == GroupRoleAdmin || r == GroupRoleMember
}

// Allows reports whether the group role permits the action on the group's
// workspace. Group roles never grant admin.
func (r GroupRole) Allows(a Action) bool {
	switch r {
	case GroupRoleAdmin:
		return a == ActionRead || a == ActionWrite
	case GroupRoleMember:
		return a == ActionRead
	}
	return false
}

// GrantPermission is the permission on an ACL grant. Write covers read and
// write; read covers read only. There is intentionally no admin grant.
type GrantPermission string

const (
	GrantRead  GrantPermission = "read"
	GrantWrite GrantPermission = "write"
)

// IsValid reports whether p is one of the known grant permissions.
func (p GrantPermission) IsValid() bool {
	return p == GrantRead || p == GrantWrite
}

// Covers reports whether the permission satisfies the action.
func (p GrantPermission) Covers(a Action) bool {
	switch p {
	case GrantWrite:
		return a == ActionRead || a == ActionWrite
	case GrantRead:
		return a == ActionRead
	}
	return false
}
