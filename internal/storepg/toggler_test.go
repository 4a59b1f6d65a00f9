package storepg

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/tyemirov/vidtube/internal/store"
)

func openPostgres(t *testing.T) (*Toggler, *store.Store) {
	t.Helper()
	databaseURL := os.Getenv("VIDTUBE_TEST_POSTGRES_URL")
	if databaseURL == "" {
		t.Skip("VIDTUBE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	gormStore, err := store.Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = gormStore.Close() })
	pool, err := BuildPool(ctx, databaseURL)
	if err != nil {
		t.Fatalf("failed to build pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := EnsureRelationIndexes(ctx, pool); err != nil {
		t.Fatalf("failed to ensure indexes: %v", err)
	}
	return NewToggler(pool), gormStore
}

func TestToggleRelationIsTwoCycle(t *testing.T) {
	toggler, gormStore := openPostgres(t)
	ctx := context.Background()
	actorID := uuid.NewString()
	targetID := uuid.NewString()

	created, isCreated, err := toggler.ToggleRelation(ctx, actorID, targetID, store.RelationVideoLike)
	if err != nil || !isCreated {
		t.Fatalf("expected first toggle to create, got created=%v err=%v", isCreated, err)
	}
	if created.TargetID != targetID || created.ActorID != actorID {
		t.Fatalf("unexpected relation %+v", created)
	}
	deleted, isCreated, err := toggler.ToggleRelation(ctx, actorID, targetID, store.RelationVideoLike)
	if err != nil || isCreated {
		t.Fatalf("expected second toggle to delete, got created=%v err=%v", isCreated, err)
	}
	if deleted.ID != created.ID {
		t.Fatalf("expected the deleted relation to be the created one")
	}
	if count, _ := gormStore.CountRelations(ctx, actorID, store.RelationVideoLike); count != 0 {
		t.Fatalf("expected no relations left, got %d", count)
	}
}

func TestConcurrentSubscribeNeverDuplicates(t *testing.T) {
	toggler, gormStore := openPostgres(t)
	ctx := context.Background()
	actorID := uuid.NewString()
	channelID := uuid.NewString()

	var waitGroup sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, _, _ = toggler.ToggleRelation(ctx, actorID, channelID, store.RelationChannel)
		}()
	}
	waitGroup.Wait()

	count, err := gormStore.CountRelations(ctx, actorID, store.RelationChannel)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count > 1 {
		t.Fatalf("expected at most one subscription, got %d", count)
	}
}
