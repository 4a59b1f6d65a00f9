package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VideoQuery filters and orders a video listing.
type VideoQuery struct {
	Search     string
	OwnerID    string
	ViewerID   string
	SortBy     string
	Descending bool
	Offset     int
	Limit      int
}

var videoSortColumns = map[string]string{
	"createdAt": "created_at",
	"views":     "views",
	"duration":  "duration",
	"title":     "title",
}

// VideoSortFields lists the accepted sortBy values.
func VideoSortFields() []string {
	return []string{"createdAt", "views", "duration", "title"}
}

// ListVideos returns one page of videos and the total number of matches.
// Unpublished videos are visible only to their owner.
func (store *Store) ListVideos(ctx context.Context, query VideoQuery) ([]Video, int64, error) {
	scoped := store.db.WithContext(ctx).Model(&Video{}).
		Where("is_published = ? OR owner_id = ?", true, query.ViewerID)
	if search := strings.TrimSpace(query.Search); search != "" {
		pattern := likePattern(search)
		scoped = scoped.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if query.OwnerID != "" {
		scoped = scoped.Where("owner_id = ?", query.OwnerID)
	}
	scoped = scoped.Session(&gorm.Session{})
	var total int64
	if err := scoped.Count(&total).Error; err != nil {
		return nil, 0, store.wrap("video.list", err)
	}
	column, ok := videoSortColumns[query.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := " ASC"
	if query.Descending {
		direction = " DESC"
	}
	var videos []Video
	err := scoped.Order(column + direction).Order("id ASC").Offset(query.Offset).Limit(query.Limit).Find(&videos).Error
	if err != nil {
		return nil, 0, store.wrap("video.list", err)
	}
	return videos, total, nil
}

// CreateVideo inserts a video.
func (store *Store) CreateVideo(ctx context.Context, video *Video) error {
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	return store.wrap("video.create", store.db.WithContext(ctx).Create(video).Error)
}

// VideoByID loads a video.
func (store *Store) VideoByID(ctx context.Context, videoID string) (Video, error) {
	var video Video
	err := store.db.WithContext(ctx).Where("id = ?", videoID).Take(&video).Error
	return video, store.wrap("video.by_id", err)
}

// VideoDetails is a video with its owner, like count, and the viewer's like state.
type VideoDetails struct {
	Video
	Owner   OwnerSummary `json:"owner"`
	Likes   int64        `json:"likesCount"`
	IsLiked bool         `json:"isLiked"`
}

// VideoDetails loads a video enriched for viewerID.
func (store *Store) VideoDetails(ctx context.Context, videoID string, viewerID string) (VideoDetails, error) {
	video, err := store.VideoByID(ctx, videoID)
	if err != nil {
		return VideoDetails{}, err
	}
	details := VideoDetails{Video: video}
	owner, ownerErr := store.PrincipalByID(ctx, video.OwnerID)
	if ownerErr == nil {
		details.Owner = owner.Summary()
	} else {
		details.Owner = OwnerSummary{ID: video.OwnerID}
	}
	db := store.db.WithContext(ctx)
	if countErr := db.Model(&Like{}).Where("video_id = ?", videoID).Count(&details.Likes).Error; countErr != nil {
		return VideoDetails{}, store.wrap("video.details", countErr)
	}
	var viewerLikes int64
	if countErr := db.Model(&Like{}).Where("video_id = ? AND liked_by = ?", videoID, viewerID).Count(&viewerLikes).Error; countErr != nil {
		return VideoDetails{}, store.wrap("video.details", countErr)
	}
	details.IsLiked = viewerLikes > 0
	return details, nil
}

// VideoChanges lists the mutable fields of a video. Nil fields are left untouched.
type VideoChanges struct {
	Title             *string
	Description       *string
	Thumbnail         *string
	ThumbnailPublicID *string
}

// UpdateVideo applies changes and returns the updated video.
func (store *Store) UpdateVideo(ctx context.Context, videoID string, changes VideoChanges) (Video, error) {
	columns := map[string]any{"updated_at": time.Now().UTC()}
	if changes.Title != nil {
		columns["title"] = *changes.Title
	}
	if changes.Description != nil {
		columns["description"] = *changes.Description
	}
	if changes.Thumbnail != nil {
		columns["thumbnail"] = *changes.Thumbnail
	}
	if changes.ThumbnailPublicID != nil {
		columns["thumbnail_public_id"] = *changes.ThumbnailPublicID
	}
	if err := store.updateVideoColumns(ctx, "video.update", videoID, columns); err != nil {
		return Video{}, err
	}
	return store.VideoByID(ctx, videoID)
}

// SetPublished sets the publish flag and returns the updated video.
func (store *Store) SetPublished(ctx context.Context, videoID string, published bool) (Video, error) {
	columns := map[string]any{"is_published": published, "updated_at": time.Now().UTC()}
	if err := store.updateVideoColumns(ctx, "video.publish", videoID, columns); err != nil {
		return Video{}, err
	}
	return store.VideoByID(ctx, videoID)
}

// IncrementViews adds one view and returns the updated video.
func (store *Store) IncrementViews(ctx context.Context, videoID string) (Video, error) {
	columns := map[string]any{"views": gorm.Expr("views + ?", 1)}
	if err := store.updateVideoColumns(ctx, "video.views", videoID, columns); err != nil {
		return Video{}, err
	}
	return store.VideoByID(ctx, videoID)
}

func (store *Store) updateVideoColumns(ctx context.Context, operation string, videoID string, columns map[string]any) error {
	result := store.db.WithContext(ctx).Model(&Video{}).Where("id = ?", videoID).UpdateColumns(columns)
	if result.Error != nil {
		return store.wrap(operation, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.wrap(operation, gorm.ErrRecordNotFound)
	}
	return nil
}

// DeleteVideo removes a video with its comments, likes, playlist entries, and watch history.
func (store *Store) DeleteVideo(ctx context.Context, videoID string) error {
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var commentIDs []string
		if err := tx.Model(&Comment{}).Where("video_id = ?", videoID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if err := deleteLikesFor(tx, "comment_id", commentIDs); err != nil {
			return err
		}
		if err := deleteLikesFor(tx, "video_id", []string{videoID}); err != nil {
			return err
		}
		if err := tx.Where("video_id = ?", videoID).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("video_id = ?", videoID).Delete(&PlaylistVideo{}).Error; err != nil {
			return err
		}
		if err := tx.Where("video_id = ?", videoID).Delete(&WatchEntry{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", videoID).Delete(&Video{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return store.wrap("video.delete", err)
}

// ChannelStats aggregates a channel's activity.
type ChannelStats struct {
	TotalViews       int64 `json:"totalViews"`
	TotalVideos      int64 `json:"totalVideos"`
	TotalLikes       int64 `json:"totalLikes"`
	TotalSubscribers int64 `json:"totalSubscribers"`
}

// ChannelStats computes totals for ownerID. A channel with no activity reports zeros.
func (store *Store) ChannelStats(ctx context.Context, ownerID string) (ChannelStats, error) {
	var stats ChannelStats
	db := store.db.WithContext(ctx)
	row := db.Model(&Video{}).Select("COUNT(*), CAST(COALESCE(SUM(views), 0) AS BIGINT)").Where("owner_id = ?", ownerID).Row()
	if err := row.Scan(&stats.TotalVideos, &stats.TotalViews); err != nil {
		return ChannelStats{}, store.wrap("video.channel_stats", err)
	}
	ownedVideos := db.Model(&Video{}).Select("id").Where("owner_id = ?", ownerID)
	if err := db.Model(&Like{}).Where("video_id IN (?)", ownedVideos).Count(&stats.TotalLikes).Error; err != nil {
		return ChannelStats{}, store.wrap("video.channel_stats", err)
	}
	if err := db.Model(&Subscription{}).Where("channel_id = ?", ownerID).Count(&stats.TotalSubscribers).Error; err != nil {
		return ChannelStats{}, store.wrap("video.channel_stats", err)
	}
	return stats, nil
}

// ChannelVideos lists every video uploaded by ownerID, newest first.
func (store *Store) ChannelVideos(ctx context.Context, ownerID string) ([]Video, error) {
	var videos []Video
	err := store.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&videos).Error
	if err != nil {
		return nil, store.wrap("video.channel_videos", err)
	}
	if videos == nil {
		videos = []Video{}
	}
	return videos, nil
}
