package storepg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/vidtube/internal/store"
)

var errUnknownKind = errors.New("storepg.unknown_relation_kind")

const toggleLikeSQL = `
WITH removed AS (
    DELETE FROM likes
    WHERE liked_by = $1 AND target_key = $2
    RETURNING id, created_at, updated_at
), inserted AS (
    INSERT INTO likes (id, video_id, comment_id, tweet_id, liked_by, target_key, created_at, updated_at)
    SELECT $3::text, $4::text, $5::text, $6::text, $1::text, $2::text, now(), now()
    WHERE NOT EXISTS (SELECT 1 FROM removed)
    ON CONFLICT (liked_by, target_key) DO NOTHING
    RETURNING id, created_at, updated_at
)
SELECT 'deleted'::text, id, created_at, updated_at FROM removed
UNION ALL
SELECT 'created'::text, id, created_at, updated_at FROM inserted
`

const toggleSubscriptionSQL = `
WITH removed AS (
    DELETE FROM subscriptions
    WHERE subscriber_id = $1 AND channel_id = $2
    RETURNING id, created_at, updated_at
), inserted AS (
    INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at, updated_at)
    SELECT $3::text, $1::text, $2::text, now(), now()
    WHERE NOT EXISTS (SELECT 1 FROM removed)
    ON CONFLICT (subscriber_id, channel_id) DO NOTHING
    RETURNING id, created_at, updated_at
)
SELECT 'deleted'::text, id, created_at, updated_at FROM removed
UNION ALL
SELECT 'created'::text, id, created_at, updated_at FROM inserted
`

const selectLikeSQL = `SELECT id, created_at, updated_at FROM likes WHERE liked_by = $1 AND target_key = $2`

const selectSubscriptionSQL = `SELECT id, created_at, updated_at FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`

// Toggler flips a relation with one statement, so concurrent toggles cannot create duplicates.
type Toggler struct {
	pool *pgxpool.Pool
}

// NewToggler constructs a Toggler over pool.
func NewToggler(pool *pgxpool.Pool) *Toggler {
	return &Toggler{pool: pool}
}

// ToggleRelation deletes the relation if present, otherwise inserts it.
// A concurrent insert that wins the unique index is reported as created.
func (toggler *Toggler) ToggleRelation(ctx context.Context, actorID string, targetID string, kind store.RelationKind) (store.Relation, bool, error) {
	relation := store.Relation{Kind: kind, ActorID: actorID, TargetID: targetID}
	var rows pgx.Rows
	var err error
	var lookupSQL string
	var lookupKey string
	switch kind {
	case store.RelationVideoLike, store.RelationCommentLike, store.RelationTweetLike:
		var videoID, commentID, tweetID *string
		target := targetID
		switch kind {
		case store.RelationVideoLike:
			videoID = &target
		case store.RelationCommentLike:
			commentID = &target
		case store.RelationTweetLike:
			tweetID = &target
		}
		lookupSQL, lookupKey = selectLikeSQL, store.LikeTargetKey(kind, targetID)
		rows, err = toggler.pool.Query(ctx, toggleLikeSQL, actorID, lookupKey, uuid.NewString(), videoID, commentID, tweetID)
	case store.RelationChannel:
		lookupSQL, lookupKey = selectSubscriptionSQL, targetID
		rows, err = toggler.pool.Query(ctx, toggleSubscriptionSQL, actorID, targetID, uuid.NewString())
	default:
		return store.Relation{}, false, fmt.Errorf("storepg.toggle.%s: %w", kind, errUnknownKind)
	}
	if err != nil {
		return store.Relation{}, false, fmt.Errorf("storepg.toggle.%s: %w", kind, err)
	}
	defer rows.Close()

	outcome := ""
	for rows.Next() {
		var createdAt, updatedAt time.Time
		if scanErr := rows.Scan(&outcome, &relation.ID, &createdAt, &updatedAt); scanErr != nil {
			return store.Relation{}, false, fmt.Errorf("storepg.toggle.%s: %w", kind, scanErr)
		}
		relation.CreatedAt, relation.UpdatedAt = createdAt, updatedAt
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return store.Relation{}, false, fmt.Errorf("storepg.toggle.%s: %w", kind, rowsErr)
	}
	switch outcome {
	case "created":
		return relation, true, nil
	case "deleted":
		return relation, false, nil
	}

	row := toggler.pool.QueryRow(ctx, lookupSQL, actorID, lookupKey)
	if scanErr := row.Scan(&relation.ID, &relation.CreatedAt, &relation.UpdatedAt); scanErr != nil {
		return store.Relation{}, false, fmt.Errorf("storepg.toggle.%s.reread: %w", kind, scanErr)
	}
	return relation, true, nil
}
