// internal/domain/models/workspace.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workspace is the unit of storage ownership. Every storage kind (files,
// structured records, search indexes, reminders) for a logical owner hangs
// off exactly one workspace, so the same workspace id is the storage root
// for all of them.
//
// Exactly one owner field is set, and it must match Type:
//   - individual: OwnerUserID (a canonical user_id)
//   - group:      OwnerGroupID
//   - public:     OwnerSystemTag (the process-wide singleton)
//
// The OwnerValid check rejects malformed documents before persistence; the
// partial unique indexes on the owner fields are the last-resort backstop.
type Workspace struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type WorkspaceType      `bson:"type" json:"type"`

	Name   string `bson:"name" json:"name"`
	NameCI string `bson:"name_ci" json:"name_ci"`

	// Status: "active" or "archived". Archived workspaces are excluded from
	// default resolution but remain readable by explicit reference.
	Status string `bson:"status" json:"status"`

	OwnerUserID    *string             `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	OwnerGroupID   *primitive.ObjectID `bson:"owner_group_id,omitempty" json:"owner_group_id,omitempty"`
	OwnerSystemTag *string             `bson:"owner_system_tag,omitempty" json:"owner_system_tag,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// OwnerValid reports whether exactly one owner field is set and that field
// matches the workspace type.
func (w Workspace) OwnerValid() bool {
	n := 0
	if w.OwnerUserID != nil {
		n++
	}
	if w.OwnerGroupID != nil {
		n++
	}
	if w.OwnerSystemTag != nil {
		n++
	}
	if n != 1 {
		return false
	}
	switch w.Type {
	case WorkspaceIndividual:
		return w.OwnerUserID != nil
	case WorkspaceGroup:
		return w.OwnerGroupID != nil
	case WorkspacePublic:
		return w.OwnerSystemTag != nil
	default:
		return false
	}
}
