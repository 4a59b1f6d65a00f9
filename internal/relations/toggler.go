// Package relations toggles likes and subscriptions and serves their listings.
package relations

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/metrics"
	"github.com/tyemirov/vidtube/internal/store"
)

// Store finds, creates and deletes relations one at a time.
type Store interface {
	FindRelation(ctx context.Context, actorID string, targetID string, kind store.RelationKind) (store.Relation, error)
	CreateRelation(ctx context.Context, actorID string, targetID string, kind store.RelationKind) (store.Relation, error)
	DeleteRelation(ctx context.Context, relation store.Relation) error
}

// AtomicToggler flips a relation in a single statement. created is false when the relation was removed.
type AtomicToggler interface {
	ToggleRelation(ctx context.Context, actorID string, targetID string, kind store.RelationKind) (store.Relation, bool, error)
}

// Outcome is the result of one toggle: either Created is set or Deleted is true.
type Outcome struct {
	Created *store.Relation
	Deleted bool
}

// Toggler creates a relation when absent and deletes it when present.
type Toggler struct {
	relations Store
	atomic    AtomicToggler
	recorder  metrics.Recorder
	logger    *zap.Logger
}

// NewToggler constructs a Toggler. atomic may be nil, in which case find-then-create is used
// and the store's unique index settles concurrent inserts.
func NewToggler(relations Store, atomic AtomicToggler, recorder metrics.Recorder, logger *zap.Logger) *Toggler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Toggler{relations: relations, atomic: atomic, recorder: recorder, logger: logger}
}

// Toggle flips the (actor, target, kind) relation. targetField names the path parameter in errors.
// The target's existence is not checked.
func (toggler *Toggler) Toggle(ctx context.Context, actorID string, targetID string, kind store.RelationKind, targetField string) (Outcome, error) {
	if !kind.Valid() {
		return Outcome{}, apiresponse.BadRequest("Unknown relation kind")
	}
	if apiErr := apiresponse.RequireID(targetField, targetID); apiErr != nil {
		return Outcome{}, apiErr
	}
	if toggler.atomic != nil {
		relation, created, err := toggler.atomic.ToggleRelation(ctx, actorID, targetID, kind)
		if err != nil {
			return Outcome{}, toggler.failure(kind, err)
		}
		return toggler.record(relation, created), nil
	}

	existing, err := toggler.relations.FindRelation(ctx, actorID, targetID, kind)
	switch {
	case err == nil:
		if deleteErr := toggler.relations.DeleteRelation(ctx, existing); deleteErr != nil {
			return Outcome{}, toggler.failure(kind, deleteErr)
		}
		return toggler.record(existing, false), nil
	case errors.Is(err, store.ErrNotFound):
		created, createErr := toggler.relations.CreateRelation(ctx, actorID, targetID, kind)
		if createErr != nil {
			return Outcome{}, toggler.failure(kind, createErr)
		}
		return toggler.record(created, true), nil
	default:
		return Outcome{}, toggler.failure(kind, err)
	}
}

func (toggler *Toggler) record(relation store.Relation, created bool) Outcome {
	if created {
		toggler.recorder.Increment("relation.toggle.created")
		return Outcome{Created: &relation}
	}
	toggler.recorder.Increment("relation.toggle.deleted")
	return Outcome{Deleted: true}
}

func (toggler *Toggler) failure(kind store.RelationKind, err error) error {
	toggler.recorder.Increment("relation.toggle.failure")
	toggler.logger.Error("relation toggle failed",
		zap.String("code", "relations.toggle_failed"),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return apiresponse.Internal("Something went wrong while updating the "+string(kind)+" relation", err)
}
