// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
EnsureAll is called at startup (and by the test harness for each test
database). Each ensure* function is idempotent. Errors are aggregated so
every problem is visible and startup can fail fast.

The unique indexes here are load-bearing: they are the persistence-level
backstop that makes every create path an "insert, or converge on the
existing row" operation under concurrency.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureAliases(ctx, db); err != nil {
		problems = append(problems, "aliases: "+err.Error())
	}
	if err := ensureGroups(ctx, db); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}
	if err := ensureGroupMemberships(ctx, db); err != nil {
		problems = append(problems, "group_memberships: "+err.Error())
	}
	if err := ensureWorkspaces(ctx, db); err != nil {
		problems = append(problems, "workspaces: "+err.Error())
	}
	if err := ensureConversationWorkspaces(ctx, db); err != nil {
		problems = append(problems, "conversation_workspaces: "+err.Error())
	}
	if err := ensureWorkspaceMembers(ctx, db); err != nil {
		problems = append(problems, "workspace_members: "+err.Error())
	}
	if err := ensureACLGrants(ctx, db); err != nil {
		problems = append(problems, "acl_grants: "+err.Error())
	}
	if err := ensureAuditLog(ctx, db); err != nil {
		problems = append(problems, "audit_log: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func create(ctx context.Context, db *mongo.Database, collection string, models []mongo.IndexModel) error {
	_, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	return err
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "users", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_users_user_id"),
		},
	})
}

func ensureAliases(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "aliases", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "alias_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_aliases_alias_id"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_aliases_user_id"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "groups", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_groups_name_ci"),
		},
	})
}

func ensureGroupMemberships(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "group_memberships", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_memberships_group_user"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_memberships_user"),
		},
	})
}

func ensureWorkspaces(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "workspaces", []mongo.IndexModel{
		// One active individual workspace per user. Scoped to active so an
		// archived workspace (after a merge) does not block the owner's
		// surviving workspace.
		{
			Keys: bson.D{{Key: "owner_user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_workspaces_owner_user").
				SetPartialFilterExpression(bson.M{
					"owner_user_id": bson.M{"$exists": true},
					"status":        "active",
				}),
		},
		// One workspace per group, archived or not.
		{
			Keys: bson.D{{Key: "owner_group_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_workspaces_owner_group").
				SetPartialFilterExpression(bson.M{
					"owner_group_id": bson.M{"$exists": true},
				}),
		},
		// The public singleton.
		{
			Keys: bson.D{{Key: "owner_system_tag", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_workspaces_owner_system").
				SetPartialFilterExpression(bson.M{
					"owner_system_tag": bson.M{"$exists": true},
				}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_workspaces_status"),
		},
	})
}

func ensureConversationWorkspaces(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "conversation_workspaces", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_conversations_conversation_id"),
		},
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}},
			Options: options.Index().SetName("idx_conversations_workspace_id"),
		},
	})
}

func ensureWorkspaceMembers(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "workspace_members", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_wsmembers_workspace_user"),
		},
	})
}

func ensureACLGrants(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "acl_grants", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "grant_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_grants_grant_id"),
		},
		{
			Keys: bson.D{
				{Key: "workspace_id", Value: 1},
				{Key: "resource_type", Value: 1},
				{Key: "resource_id", Value: 1},
			},
			Options: options.Index().SetName("idx_grants_resource"),
		},
	})
}

func ensureAuditLog(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "audit_log", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_created_at"),
		},
		{
			Keys:    bson.D{{Key: "actor", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor"),
		},
	})
}
