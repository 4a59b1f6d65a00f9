package storepg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureRelationIndexes creates the unique indexes the toggle statements rely on.
func EnsureRelationIndexes(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_likes_actor_target ON likes (liked_by, target_key);
CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_pair ON subscriptions (subscriber_id, channel_id);
`)
	if err != nil {
		return fmt.Errorf("storepg.ensure_indexes: %w", err)
	}
	return nil
}
