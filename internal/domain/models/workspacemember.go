// internal/domain/models/workspacemember.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkspaceMember is an explicit grant on a whole workspace, supplementing
// the implicit access an owner or group member already has. Exactly one
// document per (workspace_id, user_id).
type WorkspaceMember struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	UserID      string             `bson:"user_id" json:"user_id"` // canonical user_id
	Role        MemberRole         `bson:"role" json:"role"`

	GrantedBy string    `bson:"granted_by" json:"granted_by"`
	GrantedAt time.Time `bson:"granted_at" json:"granted_at"`
}
