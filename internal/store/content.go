package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicateEntry indicates the video is already part of the playlist.
var ErrDuplicateEntry = errors.New("store.duplicate_entry")

// CommentWithOwner is a comment rendered with its author.
type CommentWithOwner struct {
	Comment
	Owner OwnerSummary `json:"owner"`
}

// ListComments returns one page of a video's comments, newest first.
func (store *Store) ListComments(ctx context.Context, videoID string, offset int, limit int) ([]CommentWithOwner, int64, error) {
	db := store.db.WithContext(ctx)
	var total int64
	if err := db.Model(&Comment{}).Where("video_id = ?", videoID).Count(&total).Error; err != nil {
		return nil, 0, store.wrap("comment.list", err)
	}
	var comments []Comment
	err := db.Where("video_id = ?", videoID).Order("created_at DESC").Order("id ASC").Offset(offset).Limit(limit).Find(&comments).Error
	if err != nil {
		return nil, 0, store.wrap("comment.list", err)
	}
	ownerIDs := make([]string, 0, len(comments))
	for _, comment := range comments {
		ownerIDs = append(ownerIDs, comment.OwnerID)
	}
	owners, err := store.summariesByID(ctx, ownerIDs)
	if err != nil {
		return nil, 0, err
	}
	rendered := make([]CommentWithOwner, 0, len(comments))
	for _, comment := range comments {
		owner, ok := owners[comment.OwnerID]
		if !ok {
			owner = OwnerSummary{ID: comment.OwnerID}
		}
		rendered = append(rendered, CommentWithOwner{Comment: comment, Owner: owner})
	}
	return rendered, total, nil
}

// CreateComment inserts a comment.
func (store *Store) CreateComment(ctx context.Context, comment *Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	return store.wrap("comment.create", store.db.WithContext(ctx).Create(comment).Error)
}

// CommentByID loads a comment.
func (store *Store) CommentByID(ctx context.Context, commentID string) (Comment, error) {
	var comment Comment
	err := store.db.WithContext(ctx).Where("id = ?", commentID).Take(&comment).Error
	return comment, store.wrap("comment.by_id", err)
}

// UpdateComment replaces a comment's content.
func (store *Store) UpdateComment(ctx context.Context, commentID string, content string) (Comment, error) {
	result := store.db.WithContext(ctx).Model(&Comment{}).Where("id = ?", commentID).
		Updates(map[string]any{"content": content, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return Comment{}, store.wrap("comment.update", result.Error)
	}
	if result.RowsAffected == 0 {
		return Comment{}, store.wrap("comment.update", gorm.ErrRecordNotFound)
	}
	return store.CommentByID(ctx, commentID)
}

// DeleteComment removes a comment and its likes.
func (store *Store) DeleteComment(ctx context.Context, commentID string) error {
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteLikesFor(tx, "comment_id", []string{commentID}); err != nil {
			return err
		}
		result := tx.Where("id = ?", commentID).Delete(&Comment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return store.wrap("comment.delete", err)
}

// CreateTweet inserts a tweet.
func (store *Store) CreateTweet(ctx context.Context, tweet *Tweet) error {
	if tweet.ID == "" {
		tweet.ID = uuid.NewString()
	}
	return store.wrap("tweet.create", store.db.WithContext(ctx).Create(tweet).Error)
}

// TweetByID loads a tweet.
func (store *Store) TweetByID(ctx context.Context, tweetID string) (Tweet, error) {
	var tweet Tweet
	err := store.db.WithContext(ctx).Where("id = ?", tweetID).Take(&tweet).Error
	return tweet, store.wrap("tweet.by_id", err)
}

// TweetsByOwner lists a principal's tweets, newest first.
func (store *Store) TweetsByOwner(ctx context.Context, ownerID string) ([]Tweet, error) {
	var tweets []Tweet
	err := store.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Order("id ASC").Find(&tweets).Error
	if err != nil {
		return nil, store.wrap("tweet.by_owner", err)
	}
	if tweets == nil {
		tweets = []Tweet{}
	}
	return tweets, nil
}

// UpdateTweet replaces a tweet's content.
func (store *Store) UpdateTweet(ctx context.Context, tweetID string, content string) (Tweet, error) {
	result := store.db.WithContext(ctx).Model(&Tweet{}).Where("id = ?", tweetID).
		Updates(map[string]any{"content": content, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return Tweet{}, store.wrap("tweet.update", result.Error)
	}
	if result.RowsAffected == 0 {
		return Tweet{}, store.wrap("tweet.update", gorm.ErrRecordNotFound)
	}
	return store.TweetByID(ctx, tweetID)
}

// DeleteTweet removes a tweet and its likes.
func (store *Store) DeleteTweet(ctx context.Context, tweetID string) error {
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteLikesFor(tx, "tweet_id", []string{tweetID}); err != nil {
			return err
		}
		result := tx.Where("id = ?", tweetID).Delete(&Tweet{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return store.wrap("tweet.delete", err)
}

// CreatePlaylist inserts an empty playlist. Names are unique per owner.
func (store *Store) CreatePlaylist(ctx context.Context, playlist *Playlist) error {
	if playlist.ID == "" {
		playlist.ID = uuid.NewString()
	}
	var taken int64
	db := store.db.WithContext(ctx)
	if err := db.Model(&Playlist{}).Where("owner_id = ? AND name = ?", playlist.OwnerID, playlist.Name).Count(&taken).Error; err != nil {
		return store.wrap("playlist.create", err)
	}
	if taken > 0 {
		return store.wrap("playlist.create", gorm.ErrDuplicatedKey)
	}
	if err := db.Create(playlist).Error; err != nil {
		return store.wrap("playlist.create", err)
	}
	playlist.Videos = []string{}
	return nil
}

// PlaylistByID loads a playlist with its ordered video ids.
func (store *Store) PlaylistByID(ctx context.Context, playlistID string) (Playlist, error) {
	var playlist Playlist
	if err := store.db.WithContext(ctx).Where("id = ?", playlistID).Take(&playlist).Error; err != nil {
		return Playlist{}, store.wrap("playlist.by_id", err)
	}
	entries, err := store.playlistEntries(ctx, []string{playlistID})
	if err != nil {
		return Playlist{}, err
	}
	playlist.Videos = entries[playlistID]
	if playlist.Videos == nil {
		playlist.Videos = []string{}
	}
	return playlist, nil
}

// PlaylistsByOwner lists a principal's playlists, newest first.
func (store *Store) PlaylistsByOwner(ctx context.Context, ownerID string) ([]Playlist, error) {
	var playlists []Playlist
	err := store.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Order("id ASC").Find(&playlists).Error
	if err != nil {
		return nil, store.wrap("playlist.by_owner", err)
	}
	playlistIDs := make([]string, 0, len(playlists))
	for _, playlist := range playlists {
		playlistIDs = append(playlistIDs, playlist.ID)
	}
	entries, err := store.playlistEntries(ctx, playlistIDs)
	if err != nil {
		return nil, err
	}
	for index := range playlists {
		playlists[index].Videos = entries[playlists[index].ID]
		if playlists[index].Videos == nil {
			playlists[index].Videos = []string{}
		}
	}
	if playlists == nil {
		playlists = []Playlist{}
	}
	return playlists, nil
}

func (store *Store) playlistEntries(ctx context.Context, playlistIDs []string) (map[string][]string, error) {
	entries := make(map[string][]string, len(playlistIDs))
	if len(playlistIDs) == 0 {
		return entries, nil
	}
	var rows []PlaylistVideo
	err := store.db.WithContext(ctx).Where("playlist_id IN ?", playlistIDs).Order("position ASC").Find(&rows).Error
	if err != nil {
		return nil, store.wrap("playlist.entries", err)
	}
	for _, row := range rows {
		entries[row.PlaylistID] = append(entries[row.PlaylistID], row.VideoID)
	}
	return entries, nil
}

// UpdatePlaylist changes a playlist's name and description.
func (store *Store) UpdatePlaylist(ctx context.Context, playlistID string, name string, description string) (Playlist, error) {
	db := store.db.WithContext(ctx)
	current, err := store.PlaylistByID(ctx, playlistID)
	if err != nil {
		return Playlist{}, err
	}
	var taken int64
	if countErr := db.Model(&Playlist{}).Where("owner_id = ? AND name = ? AND id <> ?", current.OwnerID, name, playlistID).Count(&taken).Error; countErr != nil {
		return Playlist{}, store.wrap("playlist.update", countErr)
	}
	if taken > 0 {
		return Playlist{}, store.wrap("playlist.update", gorm.ErrDuplicatedKey)
	}
	updateErr := db.Model(&Playlist{}).Where("id = ?", playlistID).
		Updates(map[string]any{"name": name, "description": description, "updated_at": time.Now().UTC()}).Error
	if updateErr != nil {
		return Playlist{}, store.wrap("playlist.update", updateErr)
	}
	return store.PlaylistByID(ctx, playlistID)
}

// DeletePlaylist removes a playlist and its entries.
func (store *Store) DeletePlaylist(ctx context.Context, playlistID string) error {
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", playlistID).Delete(&PlaylistVideo{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", playlistID).Delete(&Playlist{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return store.wrap("playlist.delete", err)
}

// AddPlaylistVideo appends videoID to the playlist. Adding a present video fails with ErrDuplicateEntry.
func (store *Store) AddPlaylistVideo(ctx context.Context, playlistID string, videoID string) (Playlist, error) {
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var present int64
		if err := tx.Model(&PlaylistVideo{}).Where("playlist_id = ? AND video_id = ?", playlistID, videoID).Count(&present).Error; err != nil {
			return err
		}
		if present > 0 {
			return ErrDuplicateEntry
		}
		var lastPosition int64
		row := tx.Model(&PlaylistVideo{}).Select("CAST(COALESCE(MAX(position), 0) AS BIGINT)").Where("playlist_id = ?", playlistID).Row()
		if err := row.Scan(&lastPosition); err != nil {
			return err
		}
		entry := PlaylistVideo{PlaylistID: playlistID, VideoID: videoID, Position: lastPosition + 1, AddedAt: time.Now().UTC()}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&Playlist{}).Where("id = ?", playlistID).Update("updated_at", time.Now().UTC()).Error
	})
	if errors.Is(err, ErrDuplicateEntry) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return Playlist{}, store.wrap("playlist.add_video", ErrDuplicateEntry)
	}
	if err != nil {
		return Playlist{}, store.wrap("playlist.add_video", err)
	}
	return store.PlaylistByID(ctx, playlistID)
}

// RemovePlaylistVideo drops videoID from the playlist.
func (store *Store) RemovePlaylistVideo(ctx context.Context, playlistID string, videoID string) (Playlist, error) {
	result := store.db.WithContext(ctx).Where("playlist_id = ? AND video_id = ?", playlistID, videoID).Delete(&PlaylistVideo{})
	if result.Error != nil {
		return Playlist{}, store.wrap("playlist.remove_video", result.Error)
	}
	if result.RowsAffected == 0 {
		return Playlist{}, store.wrap("playlist.remove_video", gorm.ErrRecordNotFound)
	}
	return store.PlaylistByID(ctx, playlistID)
}

func (store *Store) summariesByID(ctx context.Context, principalIDs []string) (map[string]OwnerSummary, error) {
	summaries := make(map[string]OwnerSummary, len(principalIDs))
	if len(principalIDs) == 0 {
		return summaries, nil
	}
	var principals []Principal
	if err := store.db.WithContext(ctx).Where("id IN ?", principalIDs).Find(&principals).Error; err != nil {
		return nil, store.wrap("principal.summaries", err)
	}
	for _, principal := range principals {
		summaries[principal.ID] = principal.Summary()
	}
	return summaries, nil
}
