package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreatePrincipal inserts a new principal. Username and email are stored lower-cased.
func (store *Store) CreatePrincipal(ctx context.Context, principal *Principal) error {
	if principal.ID == "" {
		principal.ID = uuid.NewString()
	}
	principal.Username = strings.ToLower(strings.TrimSpace(principal.Username))
	principal.Email = strings.ToLower(strings.TrimSpace(principal.Email))
	return store.wrap("principal.create", store.db.WithContext(ctx).Create(principal).Error)
}

// PrincipalByID loads a principal by id.
func (store *Store) PrincipalByID(ctx context.Context, principalID string) (Principal, error) {
	var principal Principal
	err := store.db.WithContext(ctx).Where("id = ?", principalID).Take(&principal).Error
	return principal, store.wrap("principal.by_id", err)
}

// PrincipalByUsername loads a principal by its lower-cased username.
func (store *Store) PrincipalByUsername(ctx context.Context, username string) (Principal, error) {
	var principal Principal
	err := store.db.WithContext(ctx).Where("username = ?", strings.ToLower(strings.TrimSpace(username))).Take(&principal).Error
	return principal, store.wrap("principal.by_username", err)
}

// PrincipalByIdentifier loads the principal matching the username or the email, whichever is supplied.
func (store *Store) PrincipalByIdentifier(ctx context.Context, username string, email string) (Principal, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	query := store.db.WithContext(ctx)
	switch {
	case username != "" && email != "":
		query = query.Where("username = ? OR email = ?", username, email)
	case username != "":
		query = query.Where("username = ?", username)
	case email != "":
		query = query.Where("email = ?", email)
	default:
		return Principal{}, fmt.Errorf("store.principal.by_identifier.%s: %w", store.driverLabel, ErrNotFound)
	}
	var principal Principal
	err := query.Take(&principal).Error
	return principal, store.wrap("principal.by_identifier", err)
}

// PrincipalExists reports whether the username or email is already taken.
func (store *Store) PrincipalExists(ctx context.Context, username string, email string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&Principal{}).
		Where("username = ? OR email = ?", strings.ToLower(strings.TrimSpace(username)), strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	if err != nil {
		return false, store.wrap("principal.exists", err)
	}
	return count > 0, nil
}

// SetRefreshTokenDigest overwrites the single refresh slot. A nil digest clears it.
func (store *Store) SetRefreshTokenDigest(ctx context.Context, principalID string, digest *string) error {
	return store.updatePrincipalColumns(ctx, "principal.refresh_digest", principalID, map[string]any{"refresh_token_digest": digest})
}

// SwapRefreshTokenDigest replaces the refresh slot only when it still holds expected.
// It reports false when another rotation or a logout already changed the slot.
func (store *Store) SwapRefreshTokenDigest(ctx context.Context, principalID string, expected string, next string) (bool, error) {
	result := store.db.WithContext(ctx).Model(&Principal{}).
		Where("id = ? AND refresh_token_digest = ?", principalID, expected).
		Updates(map[string]any{"refresh_token_digest": next, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, store.wrap("principal.swap_refresh_digest", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// SetPasswordHash replaces the stored password hash.
func (store *Store) SetPasswordHash(ctx context.Context, principalID string, passwordHash string) error {
	return store.updatePrincipalColumns(ctx, "principal.password", principalID, map[string]any{"password_hash": passwordHash})
}

// UpdateAccount changes the display name and email of a principal.
func (store *Store) UpdateAccount(ctx context.Context, principalID string, fullName string, email string) (Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var taken int64
	if countErr := store.db.WithContext(ctx).Model(&Principal{}).Where("email = ? AND id <> ?", email, principalID).Count(&taken).Error; countErr != nil {
		return Principal{}, store.wrap("principal.account", countErr)
	}
	if taken > 0 {
		return Principal{}, fmt.Errorf("store.principal.account.%s: %w", store.driverLabel, ErrConflict)
	}
	err := store.updatePrincipalColumns(ctx, "principal.account", principalID, map[string]any{
		"full_name": strings.TrimSpace(fullName),
		"email":     email,
	})
	if err != nil {
		return Principal{}, err
	}
	return store.PrincipalByID(ctx, principalID)
}

// SetAvatar stores the avatar URL and media id.
func (store *Store) SetAvatar(ctx context.Context, principalID string, avatarURL string, publicID string) (Principal, error) {
	err := store.updatePrincipalColumns(ctx, "principal.avatar", principalID, map[string]any{
		"avatar":           avatarURL,
		"avatar_public_id": publicID,
	})
	if err != nil {
		return Principal{}, err
	}
	return store.PrincipalByID(ctx, principalID)
}

// SetCoverImage stores the cover image URL and media id.
func (store *Store) SetCoverImage(ctx context.Context, principalID string, coverURL string, publicID string) (Principal, error) {
	err := store.updatePrincipalColumns(ctx, "principal.cover_image", principalID, map[string]any{
		"cover_image":           coverURL,
		"cover_image_public_id": publicID,
	})
	if err != nil {
		return Principal{}, err
	}
	return store.PrincipalByID(ctx, principalID)
}

func (store *Store) updatePrincipalColumns(ctx context.Context, operation string, principalID string, columns map[string]any) error {
	columns["updated_at"] = time.Now().UTC()
	result := store.db.WithContext(ctx).Model(&Principal{}).Where("id = ?", principalID).Updates(columns)
	if result.Error != nil {
		return store.wrap(operation, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store.%s.%s: %w", operation, store.driverLabel, ErrNotFound)
	}
	return nil
}

// UpsertGooglePrincipal links a Google identity to a principal, creating one on first sign-in.
func (store *Store) UpsertGooglePrincipal(ctx context.Context, googleSubject string, email string, fullName string, avatarURL string) (Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var principal Principal
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("google_subject = ?", googleSubject).Take(&principal).Error
		if findErr == nil {
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}
		findErr = tx.Where("email = ?", email).Take(&principal).Error
		if findErr == nil {
			principal.GoogleSubject = &googleSubject
			return tx.Model(&principal).Update("google_subject", googleSubject).Error
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}
		username, usernameErr := availableUsername(tx, email)
		if usernameErr != nil {
			return usernameErr
		}
		principal = Principal{
			ID:            uuid.NewString(),
			Username:      username,
			Email:         email,
			FullName:      strings.TrimSpace(fullName),
			Avatar:        avatarURL,
			GoogleSubject: &googleSubject,
		}
		return tx.Create(&principal).Error
	})
	return principal, store.wrap("principal.upsert_google", err)
}

func availableUsername(tx *gorm.DB, email string) (string, error) {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
			return r
		default:
			return -1
		}
	}, strings.SplitN(email, "@", 2)[0])
	if base == "" {
		base = "user"
	}
	candidate := base
	for attempt := 0; attempt < 5; attempt++ {
		var count int64
		if err := tx.Model(&Principal{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = base + "_" + uuid.NewString()[:8]
	}
	return candidate, nil
}

// ChannelProfile is the public view of a channel for a given viewer.
type ChannelProfile struct {
	ID                        string    `json:"_id"`
	Username                  string    `json:"username"`
	FullName                  string    `json:"fullName"`
	Email                     string    `json:"email"`
	Avatar                    string    `json:"avatar"`
	CoverImage                string    `json:"coverImage"`
	SubscribersCount          int64     `json:"subscribersCount"`
	ChannelsSubscribedToCount int64     `json:"channelsSubscribedToCount"`
	IsSubscribed              bool      `json:"isSubscribed"`
	CreatedAt                 time.Time `json:"createdAt"`
}

// ChannelProfile loads the channel named username with subscription counts relative to viewerID.
func (store *Store) ChannelProfile(ctx context.Context, username string, viewerID string) (ChannelProfile, error) {
	channel, err := store.PrincipalByUsername(ctx, username)
	if err != nil {
		return ChannelProfile{}, err
	}
	profile := ChannelProfile{
		ID:         channel.ID,
		Username:   channel.Username,
		FullName:   channel.FullName,
		Email:      channel.Email,
		Avatar:     channel.Avatar,
		CoverImage: channel.CoverImage,
		CreatedAt:  channel.CreatedAt,
	}
	db := store.db.WithContext(ctx)
	if countErr := db.Model(&Subscription{}).Where("channel_id = ?", channel.ID).Count(&profile.SubscribersCount).Error; countErr != nil {
		return ChannelProfile{}, store.wrap("principal.channel_profile", countErr)
	}
	if countErr := db.Model(&Subscription{}).Where("subscriber_id = ?", channel.ID).Count(&profile.ChannelsSubscribedToCount).Error; countErr != nil {
		return ChannelProfile{}, store.wrap("principal.channel_profile", countErr)
	}
	var viewerCount int64
	if countErr := db.Model(&Subscription{}).Where("channel_id = ? AND subscriber_id = ?", channel.ID, viewerID).Count(&viewerCount).Error; countErr != nil {
		return ChannelProfile{}, store.wrap("principal.channel_profile", countErr)
	}
	profile.IsSubscribed = viewerCount > 0
	return profile, nil
}

// WatchedVideo is a watch-history entry with its owner summary.
type WatchedVideo struct {
	Video
	Owner     OwnerSummary `json:"owner"`
	WatchedAt time.Time    `json:"watchedAt"`
}

// RecordWatch moves videoID to the top of the principal's watch history.
func (store *Store) RecordWatch(ctx context.Context, principalID string, videoID string) error {
	entry := WatchEntry{PrincipalID: principalID, VideoID: videoID, WatchedAt: time.Now().UTC()}
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if deleteErr := tx.Where("principal_id = ? AND video_id = ?", principalID, videoID).Delete(&WatchEntry{}).Error; deleteErr != nil {
			return deleteErr
		}
		return tx.Create(&entry).Error
	})
	return store.wrap("principal.record_watch", err)
}

// WatchHistory lists watched videos, most recent first.
func (store *Store) WatchHistory(ctx context.Context, principalID string) ([]WatchedVideo, error) {
	var entries []WatchEntry
	err := store.db.WithContext(ctx).Where("principal_id = ?", principalID).Order("watched_at DESC").Find(&entries).Error
	if err != nil {
		return nil, store.wrap("principal.watch_history", err)
	}
	videoIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		videoIDs = append(videoIDs, entry.VideoID)
	}
	videos, err := store.videosByID(ctx, videoIDs)
	if err != nil {
		return nil, err
	}
	owners, err := store.ownerSummaries(ctx, videos)
	if err != nil {
		return nil, err
	}
	history := make([]WatchedVideo, 0, len(entries))
	for _, entry := range entries {
		video, ok := videos[entry.VideoID]
		if !ok {
			continue
		}
		history = append(history, WatchedVideo{Video: video, Owner: owners[video.OwnerID], WatchedAt: entry.WatchedAt})
	}
	return history, nil
}

func (store *Store) videosByID(ctx context.Context, videoIDs []string) (map[string]Video, error) {
	byID := make(map[string]Video, len(videoIDs))
	if len(videoIDs) == 0 {
		return byID, nil
	}
	var videos []Video
	if err := store.db.WithContext(ctx).Where("id IN ?", videoIDs).Find(&videos).Error; err != nil {
		return nil, store.wrap("video.by_ids", err)
	}
	for _, video := range videos {
		byID[video.ID] = video
	}
	return byID, nil
}

func (store *Store) ownerSummaries(ctx context.Context, videos map[string]Video) (map[string]OwnerSummary, error) {
	ownerIDs := make([]string, 0, len(videos))
	for _, video := range videos {
		ownerIDs = append(ownerIDs, video.OwnerID)
	}
	return store.summariesByID(ctx, ownerIDs)
}

// Summary projects the principal's public fields.
func (principal Principal) Summary() OwnerSummary {
	return OwnerSummary{ID: principal.ID, Username: principal.Username, FullName: principal.FullName, Avatar: principal.Avatar}
}
