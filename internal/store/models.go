package store

import (
	"encoding/json"
	"time"
)

// Principal is a registered account. Secrets never leave the process.
type Principal struct {
	ID                 string    `gorm:"column:id;primaryKey;size:36" json:"_id"`
	Username           string    `gorm:"column:username;uniqueIndex;not null" json:"username"`
	Email              string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	FullName           string    `gorm:"column:full_name;not null" json:"fullName"`
	Avatar             string    `gorm:"column:avatar;not null;default:''" json:"avatar"`
	AvatarPublicID     string    `gorm:"column:avatar_public_id;not null;default:''" json:"-"`
	CoverImage         string    `gorm:"column:cover_image;not null;default:''" json:"coverImage"`
	CoverImagePublicID string    `gorm:"column:cover_image_public_id;not null;default:''" json:"-"`
	GoogleSubject      *string   `gorm:"column:google_subject;uniqueIndex" json:"-"`
	PasswordHash       string    `gorm:"column:password_hash;not null;default:''" json:"-"`
	RefreshTokenDigest *string   `gorm:"column:refresh_token_digest" json:"-"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Principal) TableName() string {
	return "users"
}

// OwnerSummary is the public projection of a principal embedded in other documents.
type OwnerSummary struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// Video is an uploaded video and its metadata.
type Video struct {
	ID                string    `gorm:"column:id;primaryKey;size:36" json:"_id"`
	VideoFile         string    `gorm:"column:video_file;not null" json:"videoFile"`
	VideoFilePublicID string    `gorm:"column:video_file_public_id;not null;default:''" json:"-"`
	Thumbnail         string    `gorm:"column:thumbnail;not null" json:"thumbnail"`
	ThumbnailPublicID string    `gorm:"column:thumbnail_public_id;not null;default:''" json:"-"`
	Title             string    `gorm:"column:title;not null" json:"title"`
	Description       string    `gorm:"column:description;not null" json:"description"`
	Duration          float64   `gorm:"column:duration;not null" json:"duration"`
	Views             int64     `gorm:"column:views;not null" json:"views"`
	IsPublished       bool      `gorm:"column:is_published;not null" json:"isPublished"`
	OwnerID           string    `gorm:"column:owner_id;index;not null" json:"owner"`
	CreatedAt         time.Time `gorm:"column:created_at;index" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Video) TableName() string {
	return "videos"
}

// Comment is a remark left on a video.
type Comment struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"_id"`
	Content   string    `gorm:"column:content;not null" json:"content"`
	VideoID   string    `gorm:"column:video_id;index;not null" json:"video"`
	OwnerID   string    `gorm:"column:owner_id;index;not null" json:"owner"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Comment) TableName() string {
	return "comments"
}

// Tweet is a short text post.
type Tweet struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"_id"`
	Content   string    `gorm:"column:content;not null" json:"content"`
	OwnerID   string    `gorm:"column:owner_id;index;not null" json:"owner"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Tweet) TableName() string {
	return "tweets"
}

// Playlist is an ordered, owner-scoped collection of videos.
type Playlist struct {
	ID          string    `gorm:"column:id;primaryKey;size:36" json:"_id"`
	Name        string    `gorm:"column:name;not null;uniqueIndex:idx_playlists_owner_name,priority:2" json:"name"`
	Description string    `gorm:"column:description;not null" json:"description"`
	OwnerID     string    `gorm:"column:owner_id;not null;uniqueIndex:idx_playlists_owner_name,priority:1" json:"owner"`
	Videos      []string  `gorm:"-" json:"videos"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Playlist) TableName() string {
	return "playlists"
}

// PlaylistVideo is one entry of a playlist.
type PlaylistVideo struct {
	PlaylistID string    `gorm:"column:playlist_id;primaryKey;size:36"`
	VideoID    string    `gorm:"column:video_id;primaryKey;size:36;index"`
	Position   int64     `gorm:"column:position;not null"`
	AddedAt    time.Time `gorm:"column:added_at;not null"`
}

func (PlaylistVideo) TableName() string {
	return "playlist_videos"
}

// Like records that a principal liked exactly one video, comment, or tweet.
type Like struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	VideoID   *string   `gorm:"column:video_id;index"`
	CommentID *string   `gorm:"column:comment_id;index"`
	TweetID   *string   `gorm:"column:tweet_id;index"`
	LikedBy   string    `gorm:"column:liked_by;not null;uniqueIndex:idx_likes_actor_target,priority:1"`
	TargetKey string    `gorm:"column:target_key;not null;uniqueIndex:idx_likes_actor_target,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Like) TableName() string {
	return "likes"
}

// Subscription records that a principal follows a channel.
type Subscription struct {
	ID           string    `gorm:"column:id;primaryKey;size:36"`
	SubscriberID string    `gorm:"column:subscriber_id;not null;uniqueIndex:idx_subscriptions_pair,priority:1"`
	ChannelID    string    `gorm:"column:channel_id;not null;index;uniqueIndex:idx_subscriptions_pair,priority:2"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// WatchEntry is the latest time a principal opened a video.
type WatchEntry struct {
	PrincipalID string    `gorm:"column:principal_id;primaryKey;size:36"`
	VideoID     string    `gorm:"column:video_id;primaryKey;size:36;index"`
	WatchedAt   time.Time `gorm:"column:watched_at;not null;index"`
}

func (WatchEntry) TableName() string {
	return "watch_history"
}

// RelationKind names what a relation points at.
type RelationKind string

const (
	RelationVideoLike   RelationKind = "video"
	RelationCommentLike RelationKind = "comment"
	RelationTweetLike   RelationKind = "tweet"
	RelationChannel     RelationKind = "channel"
)

// Valid reports whether kind is one of the known relation kinds.
func (kind RelationKind) Valid() bool {
	switch kind {
	case RelationVideoLike, RelationCommentLike, RelationTweetLike, RelationChannel:
		return true
	default:
		return false
	}
}

// Relation is the kind-agnostic view of a like or a subscription.
type Relation struct {
	ID        string
	Kind      RelationKind
	ActorID   string
	TargetID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarshalJSON renders likes as {video|comment|tweet, likedBy} and subscriptions as {subscriber, channel}.
func (relation Relation) MarshalJSON() ([]byte, error) {
	document := map[string]any{
		"_id":       relation.ID,
		"createdAt": relation.CreatedAt,
		"updatedAt": relation.UpdatedAt,
	}
	if relation.Kind == RelationChannel {
		document["subscriber"] = relation.ActorID
		document["channel"] = relation.TargetID
	} else {
		document[string(relation.Kind)] = relation.TargetID
		document["likedBy"] = relation.ActorID
	}
	return json.Marshal(document)
}

func (like Like) relation() Relation {
	relation := Relation{ID: like.ID, ActorID: like.LikedBy, CreatedAt: like.CreatedAt, UpdatedAt: like.UpdatedAt}
	switch {
	case like.VideoID != nil:
		relation.Kind, relation.TargetID = RelationVideoLike, *like.VideoID
	case like.CommentID != nil:
		relation.Kind, relation.TargetID = RelationCommentLike, *like.CommentID
	case like.TweetID != nil:
		relation.Kind, relation.TargetID = RelationTweetLike, *like.TweetID
	}
	return relation
}

func (subscription Subscription) relation() Relation {
	return Relation{
		ID:        subscription.ID,
		Kind:      RelationChannel,
		ActorID:   subscription.SubscriberID,
		TargetID:  subscription.ChannelID,
		CreatedAt: subscription.CreatedAt,
		UpdatedAt: subscription.UpdatedAt,
	}
}

// LikeTargetKey is the unique per-actor key of a liked target.
func LikeTargetKey(kind RelationKind, targetID string) string {
	return string(kind) + ":" + targetID
}
