package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errUnknownRelationKind = errors.New("store.relation.unknown_kind")

// FindRelation returns the relation between actorID and targetID of the given kind.
func (store *Store) FindRelation(ctx context.Context, actorID string, targetID string, kind RelationKind) (Relation, error) {
	db := store.db.WithContext(ctx)
	switch kind {
	case RelationChannel:
		var subscription Subscription
		err := db.Where("subscriber_id = ? AND channel_id = ?", actorID, targetID).Take(&subscription).Error
		if err != nil {
			return Relation{}, store.wrap("relation.find", err)
		}
		return subscription.relation(), nil
	case RelationVideoLike, RelationCommentLike, RelationTweetLike:
		var like Like
		err := db.Where("liked_by = ? AND target_key = ?", actorID, LikeTargetKey(kind, targetID)).Take(&like).Error
		if err != nil {
			return Relation{}, store.wrap("relation.find", err)
		}
		return like.relation(), nil
	default:
		return Relation{}, fmt.Errorf("store.relation.find.%s: %w", kind, errUnknownRelationKind)
	}
}

// CreateRelation inserts the relation. A unique-index conflict returns the row that won the race.
func (store *Store) CreateRelation(ctx context.Context, actorID string, targetID string, kind RelationKind) (Relation, error) {
	db := store.db.WithContext(ctx)
	var relation Relation
	var createErr error
	switch kind {
	case RelationChannel:
		subscription := Subscription{ID: uuid.NewString(), SubscriberID: actorID, ChannelID: targetID}
		createErr = db.Create(&subscription).Error
		relation = subscription.relation()
	case RelationVideoLike, RelationCommentLike, RelationTweetLike:
		like := Like{ID: uuid.NewString(), LikedBy: actorID, TargetKey: LikeTargetKey(kind, targetID)}
		target := targetID
		switch kind {
		case RelationVideoLike:
			like.VideoID = &target
		case RelationCommentLike:
			like.CommentID = &target
		case RelationTweetLike:
			like.TweetID = &target
		}
		createErr = db.Create(&like).Error
		relation = like.relation()
	default:
		return Relation{}, fmt.Errorf("store.relation.create.%s: %w", kind, errUnknownRelationKind)
	}
	if createErr == nil {
		return relation, nil
	}
	existing, findErr := store.FindRelation(ctx, actorID, targetID, kind)
	if findErr == nil {
		return existing, nil
	}
	return Relation{}, store.wrap("relation.create", createErr)
}

// DeleteRelation removes a relation by id. Deleting an already-deleted relation succeeds.
func (store *Store) DeleteRelation(ctx context.Context, relation Relation) error {
	db := store.db.WithContext(ctx)
	var err error
	switch relation.Kind {
	case RelationChannel:
		err = db.Where("id = ?", relation.ID).Delete(&Subscription{}).Error
	case RelationVideoLike, RelationCommentLike, RelationTweetLike:
		err = db.Where("id = ?", relation.ID).Delete(&Like{}).Error
	default:
		return fmt.Errorf("store.relation.delete.%s: %w", relation.Kind, errUnknownRelationKind)
	}
	return store.wrap("relation.delete", err)
}

// CountRelations counts relations of kind held by actorID.
func (store *Store) CountRelations(ctx context.Context, actorID string, kind RelationKind) (int64, error) {
	var count int64
	var err error
	db := store.db.WithContext(ctx)
	switch kind {
	case RelationChannel:
		err = db.Model(&Subscription{}).Where("subscriber_id = ?", actorID).Count(&count).Error
	case RelationVideoLike:
		err = db.Model(&Like{}).Where("liked_by = ? AND video_id IS NOT NULL", actorID).Count(&count).Error
	case RelationCommentLike:
		err = db.Model(&Like{}).Where("liked_by = ? AND comment_id IS NOT NULL", actorID).Count(&count).Error
	case RelationTweetLike:
		err = db.Model(&Like{}).Where("liked_by = ? AND tweet_id IS NOT NULL", actorID).Count(&count).Error
	default:
		return 0, fmt.Errorf("store.relation.count.%s: %w", kind, errUnknownRelationKind)
	}
	return count, store.wrap("relation.count", err)
}

// LikedVideo is a liked video together with its owner summary.
type LikedVideo struct {
	Video
	Owner   OwnerSummary `json:"owner"`
	LikedAt time.Time    `json:"likedAt"`
}

// LikedVideos lists the videos actorID liked, most recent like first.
func (store *Store) LikedVideos(ctx context.Context, actorID string) ([]LikedVideo, error) {
	var likes []Like
	err := store.db.WithContext(ctx).
		Where("liked_by = ? AND video_id IS NOT NULL", actorID).
		Order("created_at DESC").
		Find(&likes).Error
	if err != nil {
		return nil, store.wrap("relation.liked_videos", err)
	}
	videoIDs := make([]string, 0, len(likes))
	for _, like := range likes {
		videoIDs = append(videoIDs, *like.VideoID)
	}
	videos, err := store.videosByID(ctx, videoIDs)
	if err != nil {
		return nil, err
	}
	owners, err := store.ownerSummaries(ctx, videos)
	if err != nil {
		return nil, err
	}
	liked := make([]LikedVideo, 0, len(likes))
	for _, like := range likes {
		video, ok := videos[*like.VideoID]
		if !ok {
			continue
		}
		liked = append(liked, LikedVideo{
			Video:   video,
			Owner:   owners[video.OwnerID],
			LikedAt: like.CreatedAt,
		})
	}
	return liked, nil
}

// SubscriberEntry is one side of a subscription with the counterpart's public profile.
type SubscriberEntry struct {
	SubscriptionID string       `json:"_id"`
	Principal      OwnerSummary `json:"principal"`
	SubscribedAt   time.Time    `json:"subscribedAt"`
}

// Subscribers lists the principals subscribed to channelID.
func (store *Store) Subscribers(ctx context.Context, channelID string) ([]SubscriberEntry, error) {
	return store.subscriptionPeers(ctx, "channel_id", channelID, func(subscription Subscription) string {
		return subscription.SubscriberID
	})
}

// SubscribedChannels lists the channels subscriberID follows.
func (store *Store) SubscribedChannels(ctx context.Context, subscriberID string) ([]SubscriberEntry, error) {
	return store.subscriptionPeers(ctx, "subscriber_id", subscriberID, func(subscription Subscription) string {
		return subscription.ChannelID
	})
}

func (store *Store) subscriptionPeers(ctx context.Context, column string, principalID string, peerOf func(Subscription) string) ([]SubscriberEntry, error) {
	var subscriptions []Subscription
	err := store.db.WithContext(ctx).Where(column+" = ?", principalID).Order("created_at DESC").Find(&subscriptions).Error
	if err != nil {
		return nil, store.wrap("relation.subscriptions", err)
	}
	peerIDs := make([]string, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		peerIDs = append(peerIDs, peerOf(subscription))
	}
	peers, err := store.summariesByID(ctx, peerIDs)
	if err != nil {
		return nil, err
	}
	entries := make([]SubscriberEntry, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		peer, ok := peers[peerOf(subscription)]
		if !ok {
			peer = OwnerSummary{ID: peerOf(subscription)}
		}
		entries = append(entries, SubscriberEntry{
			SubscriptionID: subscription.ID,
			Principal:      peer,
			SubscribedAt:   subscription.CreatedAt,
		})
	}
	return entries, nil
}

func deleteLikesFor(tx *gorm.DB, column string, targetIDs []string) error {
	if len(targetIDs) == 0 {
		return nil
	}
	return tx.Where(column+" IN ?", targetIDs).Delete(&Like{}).Error
}
