// internal/app/system/merge/merge.go

// Package merge implements the identity-merge workflow: pointing one
// identity at another without ever moving stored content.
package merge

import (
	"context"
	"errors"

	conversationstore "github.com/convokit/warden/internal/app/store/conversations"
	identitystore "github.com/convokit/warden/internal/app/store/identities"
	workspacestore "github.com/convokit/warden/internal/app/store/workspaces"
	"github.com/convokit/warden/internal/app/system/locks"
	"github.com/convokit/warden/internal/app/system/normalize"
	"github.com/convokit/warden/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrMergeConflict means the merge would create ambiguous ownership: the two
// identities already resolve to the same canonical user, or the source
// already carries an alias to somewhere else.
var ErrMergeConflict = errors.New("merge would create ambiguous ownership")

// Workflow merges a source identity into a target identity. The merge is
// identity-only: ownership and bindings are repointed, content is never
// moved or copied. Merging two non-empty workspaces' content is a separate,
// explicitly confirmed migration outside this engine.
type Workflow struct {
	client        *mongo.Client
	identities    *identitystore.Store
	workspaces    *workspacestore.Store
	conversations *conversationstore.Store
	locks         locks.Locker
	log           *zap.Logger
}

func New(client *mongo.Client, db *mongo.Database, log *zap.Logger) *Workflow {
	return &Workflow{
		client:        client,
		identities:    identitystore.New(db),
		workspaces:    workspacestore.New(db),
		conversations: conversationstore.New(db),
		locks:         locks.NewKeyed(),
		log:           log,
	}
}

// Result describes what a merge did.
type Result struct {
	Source string // canonical source identity
	Target string // canonical target identity

	// ReassignedWorkspace is the source workspace now owned by the target,
	// or nil when the target already owned one.
	ReassignedWorkspace *primitive.ObjectID

	// ArchivedWorkspace is the source workspace archived because the target
	// already owned one, or nil.
	ArchivedWorkspace *primitive.ObjectID
}

// Merge points sourceID at targetID. The target is created if it has never
// been seen. When the target owns no workspace the source's workspace is
// reassigned to it; when the target already owns one the source's workspace
// is archived and its conversation bindings follow the surviving workspace.
// Either way an alias source -> target is recorded, atomically with the
// ownership change.
//
// Merge is idempotent: repeating a committed merge succeeds without effect.
func (w *Workflow) Merge(ctx context.Context, sourceID, targetID string) (Result, error) {
	a, b := normalize.Identity(sourceID), normalize.Identity(targetID)
	if a == b {
		return Result{}, ErrMergeConflict
	}

	// Merges touching the same identity pair run one at a time, whichever
	// direction they name the pair in. Without this, opposite-direction
	// merges could each pass the canonical checks below and commit a
	// two-edge alias cycle.
	if b < a {
		a, b = b, a
	}
	unlock := w.locks.Lock(a + "|" + b)
	defer unlock()

	source, err := w.identities.ResolveCanonical(ctx, sourceID)
	if err != nil {
		return Result{}, err
	}

	targetUser, err := w.identities.EnsureUser(ctx, targetID)
	if err != nil {
		return Result{}, err
	}
	// Follow the target's own aliases so the recorded alias always points
	// at a terminal identity and can never close a cycle.
	target, err := w.identities.ResolveCanonical(ctx, targetUser.UserID)
	if err != nil {
		return Result{}, err
	}

	// Distinct inputs already resolving to one canonical user means the
	// merge is committed; replaying it is a no-op.
	if source == target {
		return Result{Source: source, Target: target}, nil
	}

	res := Result{Source: source, Target: target}
	err = txn.WithTransaction(ctx, w.client, w.log, func(ctx context.Context) error {
		srcWs, err := w.workspaces.ActiveIndividualByOwner(ctx, source)
		srcOwns := err == nil
		if err != nil && !errors.Is(err, workspacestore.ErrNotFound) {
			return err
		}

		tgtWs, err := w.workspaces.ActiveIndividualByOwner(ctx, target)
		tgtOwns := err == nil
		if err != nil && !errors.Is(err, workspacestore.ErrNotFound) {
			return err
		}

		switch {
		case srcOwns && !tgtOwns:
			if err := w.workspaces.ReassignOwner(ctx, srcWs.ID, target); err != nil {
				return err
			}
			res.ReassignedWorkspace = &srcWs.ID
		case srcOwns && tgtOwns:
			if err := w.workspaces.Archive(ctx, srcWs.ID); err != nil {
				return err
			}
			if _, err := w.conversations.ReassignWorkspace(ctx, srcWs.ID, tgtWs.ID); err != nil {
				return err
			}
			res.ArchivedWorkspace = &srcWs.ID
		}
		// Source owns nothing: only the alias is recorded.

		// The source user row stays; the alias redirects every future
		// lookup to the target.
		return w.addAlias(ctx, source, target)
	})
	if err != nil {
		return Result{}, err
	}

	w.log.Info("identities merged",
		zap.String("source", source),
		zap.String("target", target),
		zap.Bool("archived", res.ArchivedWorkspace != nil))
	return res, nil
}

// addAlias records source -> target, tolerating a replay of the same merge
// and rejecting an alias that points anywhere else.
func (w *Workflow) addAlias(ctx context.Context, source, target string) error {
	err := w.identities.AddAlias(ctx, source, target)
	if err == nil {
		return nil
	}
	if !errors.Is(err, identitystore.ErrDuplicateAlias) {
		return err
	}
	existing, err := w.identities.GetAlias(ctx, source)
	if err != nil {
		return err
	}
	if existing.UserID != target {
		return ErrMergeConflict
	}
	return nil
}
