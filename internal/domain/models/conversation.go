// internal/domain/models/conversation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationWorkspace binds a conversation to the one workspace it stores
// into. At most one active binding exists per conversation_id; it is
// reassigned only by the identity-merge workflow, never silently.
type ConversationWorkspace struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	WorkspaceID    primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
