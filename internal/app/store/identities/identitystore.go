// internal/app/store/identities/identitystore.go
package identitystore

import (
	"context"
	"errors"
	"time"

	"github.com/convokit/warden/internal/app/system/normalize"
	"github.com/convokit/warden/internal/app/system/status"
	"github.com/convokit/warden/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store owns the users and aliases collections: canonical identities and
// the one-hop pointers that redirect merged identities to them.
type Store struct {
	users   *mongo.Collection
	aliases *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		users:   db.Collection("users"),
		aliases: db.Collection("aliases"),
	}
}

var (
	// ErrAliasCycle means the alias graph revisits an identity during
	// resolution. The graph is malformed; resolution fails loudly instead
	// of breaking the cycle silently.
	ErrAliasCycle = errors.New("alias chain contains a cycle")

	// ErrAliasNotFound means the input resolves to an identity for which
	// neither a user nor an alias record exists (a dangling pointer).
	ErrAliasNotFound = errors.New("identity not found")

	// ErrDuplicateAlias is returned when an alias already exists for the
	// source identity.
	ErrDuplicateAlias = errors.New("an alias for this identity already exists")

	// ErrEmptyIdentity is returned when an identity normalizes to the
	// empty string.
	ErrEmptyIdentity = errors.New("identity must not be empty")
)

// maxAliasDepth bounds alias traversal. Chains longer than this are treated
// as malformed even if no node repeats.
const maxAliasDepth = 32

// EnsureUser returns the user for rawID, creating it if this is the first
// verified contact. Concurrent calls for the same rawID converge on the one
// surviving document via the unique index on user_id; there is no
// read-then-write window.
func (s *Store) EnsureUser(ctx context.Context, rawID string) (models.User, error) {
	id := normalize.Identity(rawID)
	if id == "" {
		return models.User{}, ErrEmptyIdentity
	}

	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var u models.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"user_id": id},
		bson.M{"$setOnInsert": bson.M{
			"user_id":    id,
			"status":     status.Active,
			"created_at": now,
			"updated_at": now,
		}},
		opts,
	).Decode(&u)
	if err != nil {
		// Two concurrent upserts can both take the insert path; the loser
		// hits the unique index. Its row exists now, so re-read it.
		if wafflemongo.IsDup(err) {
			err = s.users.FindOne(ctx, bson.M{"user_id": id}).Decode(&u)
		}
		if err != nil {
			return models.User{}, err
		}
	}
	return u, nil
}

// GetByUserID loads a user by its canonical identity string. Returns
// ErrAliasNotFound if no such user exists.
func (s *Store) GetByUserID(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"user_id": normalize.Identity(userID)}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return models.User{}, ErrAliasNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// ErrInvalidStatus is returned for a status outside the user vocabulary.
var ErrInvalidStatus = errors.New(`user status must be "active" or "suspended"`)

// SetStatus updates a user's status (active | suspended).
func (s *Store) SetStatus(ctx context.Context, userID, stat string) error {
	if !status.IsValid(stat) || stat == status.Archived {
		return ErrInvalidStatus
	}
	_, err := s.users.UpdateOne(ctx,
		bson.M{"user_id": normalize.Identity(userID)},
		bson.M{"$set": bson.M{"status": stat, "updated_at": time.Now().UTC()}},
	)
	return err
}

// ResolveCanonical follows the alias chain from rawOrAliasID to the
// terminal canonical user_id. Traversal carries a visited set and a depth
// bound: a revisited identity fails with ErrAliasCycle, and an identity
// with neither a user nor an alias record fails with ErrAliasNotFound.
func (s *Store) ResolveCanonical(ctx context.Context, rawOrAliasID string) (string, error) {
	cur := normalize.Identity(rawOrAliasID)
	if cur == "" {
		return "", ErrEmptyIdentity
	}

	visited := make(map[string]bool, 4)
	for depth := 0; depth < maxAliasDepth; depth++ {
		if visited[cur] {
			return "", ErrAliasCycle
		}
		visited[cur] = true

		// Aliases take precedence over user rows: after a merge the source
		// user document still exists, but its alias redirects resolution.
		var a models.Alias
		err := s.aliases.FindOne(ctx, bson.M{"alias_id": cur}).Decode(&a)
		if err == nil {
			cur = a.UserID
			continue
		}
		if err != mongo.ErrNoDocuments {
			return "", err
		}

		n, err := s.users.CountDocuments(ctx, bson.M{"user_id": cur})
		if err != nil {
			return "", err
		}
		if n > 0 {
			return cur, nil
		}
		return "", ErrAliasNotFound
	}
	return "", ErrAliasCycle
}

// AddAlias records sourceID -> targetID. The caller (the merge workflow) is
// responsible for cycle checks before writing.
func (s *Store) AddAlias(ctx context.Context, sourceID, targetID string) error {
	src := normalize.Identity(sourceID)
	tgt := normalize.Identity(targetID)
	if src == "" || tgt == "" {
		return ErrEmptyIdentity
	}

	_, err := s.aliases.InsertOne(ctx, models.Alias{
		AliasID:   src,
		UserID:    tgt,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateAlias
		}
		return err
	}
	return nil
}

// GetAlias loads the alias record for sourceID, if any.
func (s *Store) GetAlias(ctx context.Context, sourceID string) (models.Alias, error) {
	var a models.Alias
	err := s.aliases.FindOne(ctx, bson.M{"alias_id": normalize.Identity(sourceID)}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return models.Alias{}, ErrAliasNotFound
	}
	if err != nil {
		return models.Alias{}, err
	}
	return a, nil
}
