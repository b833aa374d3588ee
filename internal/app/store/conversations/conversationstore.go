// internal/app/store/conversations/conversationstore.go
package conversationstore

import (
	"context"
	"errors"
	"time"

	"github.com/convokit/warden/internal/app/system/normalize"
	"github.com/convokit/warden/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store owns the conversation_workspaces collection: the single active
// binding from each conversation to the workspace it stores into.
type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound    = errors.New("conversation binding not found")
	errEmptyConvID = errors.New("conversation id must not be empty")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("conversation_workspaces")}
}

// GetByConversation returns the binding for conversationID, or ErrNotFound.
func (s *Store) GetByConversation(ctx context.Context, conversationID string) (models.ConversationWorkspace, error) {
	var b models.ConversationWorkspace
	err := s.c.FindOne(ctx, bson.M{"conversation_id": normalize.Conversation(conversationID)}).Decode(&b)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.ConversationWorkspace{}, ErrNotFound
		}
		return models.ConversationWorkspace{}, err
	}
	return b, nil
}

// EnsureBinding binds conversationID to workspaceID if no binding exists,
// and returns the surviving binding either way. When two creators race, the
// unique index picks one winner and both callers converge on it; the
// returned binding's WorkspaceID is authoritative, not the argument.
func (s *Store) EnsureBinding(ctx context.Context, conversationID string, workspaceID primitive.ObjectID) (models.ConversationWorkspace, error) {
	convID := normalize.Conversation(conversationID)
	if convID == "" {
		return models.ConversationWorkspace{}, errEmptyConvID
	}

	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var b models.ConversationWorkspace
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"conversation_id": convID},
		bson.M{"$setOnInsert": bson.M{
			"workspace_id": workspaceID,
			"created_at":   now,
			"updated_at":   now,
		}},
		opts,
	).Decode(&b)
	if err != nil {
		if wafflemongo.IsDup(err) {
			err = s.c.FindOne(ctx, bson.M{"conversation_id": convID}).Decode(&b)
		}
		if err != nil {
			return models.ConversationWorkspace{}, err
		}
	}
	return b, nil
}

// ReassignWorkspace moves every binding from one workspace to another.
// Only the merge workflow calls this, inside a transaction; bindings are
// never reassigned silently on any other path.
func (s *Store) ReassignWorkspace(ctx context.Context, from, to primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"workspace_id": from},
		bson.M{"$set": bson.M{
			"workspace_id": to,
			"updated_at":   time.Now().UTC(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
