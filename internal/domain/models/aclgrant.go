// internal/domain/models/aclgrant.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ACLGrant is an ad-hoc, resource-scoped, revocable permission independent
// of ownership or membership. Exactly one of TargetUserID / TargetGroupID is
// set. Permission is never "admin": admin-level control only ever comes from
// ownership or a WorkspaceMember row with the admin role.
//
// Expiry is lazy: expired grants are ignored at decision time, not swept.
type ACLGrant struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GrantID string             `bson:"grant_id" json:"grant_id"` // uuid, unique

	WorkspaceID  primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	ResourceType string             `bson:"resource_type" json:"resource_type"`
	ResourceID   string             `bson:"resource_id" json:"resource_id"`

	TargetUserID  *string             `bson:"target_user_id,omitempty" json:"target_user_id,omitempty"`
	TargetGroupID *primitive.ObjectID `bson:"target_group_id,omitempty" json:"target_group_id,omitempty"`

	Permission GrantPermission `bson:"permission" json:"permission"`
	ExpiresAt  *time.Time      `bson:"expires_at,omitempty" json:"expires_at,omitempty"`

	GrantedBy string    `bson:"granted_by" json:"granted_by"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// TargetValid reports whether exactly one of the two target fields is set.
func (g ACLGrant) TargetValid() bool {
	return (g.TargetUserID != nil) != (g.TargetGroupID != nil)
}

// Expired reports whether the grant has lapsed as of now. Grants without an
// expiry never lapse.
func (g ACLGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}
