// internal/domain/models/auditrecord.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditRecord is one append-only entry in the administrative audit log.
// Only mutations are audited; access decisions are read-only and are not.
type AuditRecord struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Actor   string             `bson:"actor" json:"actor"`   // canonical user_id, or "system"
	Action  string             `bson:"action" json:"action"` // e.g. "group.create", "grant.revoke"
	Subject string             `bson:"subject" json:"subject"`
	Detail  string             `bson:"detail,omitempty" json:"detail,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
