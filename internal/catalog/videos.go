package catalog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/authkit"
	"github.com/tyemirov/vidtube/internal/media"
	"github.com/tyemirov/vidtube/internal/store"
)

const videoNotFoundMessage = "No video found with the given videoId"

type videoListQuery struct {
	Query    string `form:"query"`
	UserID   string `form:"userId" binding:"omitempty,uuid"`
	SortBy   string `form:"sortBy" binding:"omitempty,oneof=createdAt views duration title"`
	SortType string `form:"sortType" binding:"omitempty,oneof=asc desc"`
}

func (routes *Routes) listVideos(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	pageRequest, apiErr := apiresponse.ParsePage(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	var query videoListQuery
	if apiErr := apiresponse.Bind(contextGin, &query); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	videos, total, err := routes.store.ListVideos(contextGin.Request.Context(), store.VideoQuery{
		Search:     query.Query,
		OwnerID:    query.UserID,
		ViewerID:   principal.ID,
		SortBy:     query.SortBy,
		Descending: query.SortType != "asc",
		Offset:     pageRequest.Offset(),
		Limit:      pageRequest.Limit,
	})
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("", err))
	}
	return apiresponse.OK(http.StatusOK, apiresponse.NewPage(videos, total, pageRequest), "All videos based on the given criteria, fetched successfully")
}

type publishForm struct {
	Title       string  `form:"title" json:"title" binding:"required,notblank"`
	Description string  `form:"description" json:"description" binding:"required,notblank"`
	Duration    float64 `form:"duration" json:"duration" binding:"omitempty,gte=0"`
}

func (routes *Routes) publishVideo(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	var form publishForm
	if apiErr := apiresponse.Bind(contextGin, &form); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	ctx := contextGin.Request.Context()
	videoFile, apiErr := routes.uploader.FormFile(contextGin, "videoFile", media.KindVideo, true, "Video File is required")
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	thumbnail, apiErr := routes.uploader.FormFile(contextGin, "thumbnail", media.KindImage, true, "Thumbnail is required")
	if apiErr != nil {
		routes.uploader.Discard(ctx, videoFile.PublicID, media.KindVideo)
		return apiresponse.Fail(apiErr)
	}
	duration := videoFile.Duration
	if duration <= 0 {
		duration = form.Duration
	}
	video := store.Video{
		VideoFile:         videoFile.URL,
		VideoFilePublicID: videoFile.PublicID,
		Thumbnail:         thumbnail.URL,
		ThumbnailPublicID: thumbnail.PublicID,
		Title:             strings.TrimSpace(form.Title),
		Description:       strings.TrimSpace(form.Description),
		Duration:          duration,
		IsPublished:       true,
		OwnerID:           principal.ID,
	}
	if err := routes.store.CreateVideo(ctx, &video); err != nil {
		routes.uploader.Discard(ctx, videoFile.PublicID, media.KindVideo)
		routes.uploader.Discard(ctx, thumbnail.PublicID, media.KindImage)
		return apiresponse.Fail(apiresponse.Internal("Something went wrong while uploading the video", err))
	}
	return apiresponse.OK(http.StatusCreated, video, "Video uploaded successfully")
}

// visibleVideo loads a video the principal may see. Unpublished videos are reported missing to everyone but the owner.
func (routes *Routes) visibleVideo(contextGin *gin.Context, principalID string, notFoundMessage string) (store.Video, error) {
	videoID, apiErr := pathID(contextGin, "videoId")
	if apiErr != nil {
		return store.Video{}, apiErr
	}
	video, err := routes.store.VideoByID(contextGin.Request.Context(), videoID)
	if err != nil {
		return store.Video{}, lookupFailure(err, notFoundMessage)
	}
	if !video.IsPublished && video.OwnerID != principalID {
		return store.Video{}, apiresponse.NotFound(notFoundMessage)
	}
	return video, nil
}

// ownedVideo loads a video and requires the principal to own it.
func (routes *Routes) ownedVideo(contextGin *gin.Context, principalID string, action string) (store.Video, error) {
	video, err := routes.visibleVideo(contextGin, principalID, videoNotFoundMessage)
	if err != nil {
		return store.Video{}, err
	}
	if apiErr := requireOwner(video.OwnerID, principalID, "Only the owner can "+action+" the video"); apiErr != nil {
		return store.Video{}, apiErr
	}
	return video, nil
}

func (routes *Routes) getVideo(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	video, err := routes.visibleVideo(contextGin, principal.ID, videoNotFoundMessage)
	if err != nil {
		return apiresponse.Fail(err)
	}
	ctx := contextGin.Request.Context()
	details, err := routes.store.VideoDetails(ctx, video.ID, principal.ID)
	if err != nil {
		return apiresponse.Fail(lookupFailure(err, videoNotFoundMessage))
	}
	if err := routes.store.RecordWatch(ctx, principal.ID, video.ID); err != nil {
		routes.logger.Warn("watch history not recorded",
			zap.String("code", "catalog.watch_failed"),
			zap.String("video_id", video.ID),
			zap.Error(err))
	}
	return apiresponse.OK(http.StatusOK, details, "Video with the given videoId fetched successfully")
}

type updateVideoForm struct {
	Title       *string `form:"title" json:"title" binding:"omitempty,notblank"`
	Description *string `form:"description" json:"description" binding:"omitempty,notblank"`
}

func (routes *Routes) updateVideo(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	video, err := routes.ownedVideo(contextGin, principal.ID, "update")
	if err != nil {
		return apiresponse.Fail(err)
	}
	var form updateVideoForm
	if apiErr := apiresponse.Bind(contextGin, &form); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	ctx := contextGin.Request.Context()
	thumbnail, apiErr := routes.uploader.FormFile(contextGin, "thumbnail", media.KindImage, false, "")
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	changes := store.VideoChanges{}
	if form.Title != nil {
		title := strings.TrimSpace(*form.Title)
		changes.Title = &title
	}
	if form.Description != nil {
		description := strings.TrimSpace(*form.Description)
		changes.Description = &description
	}
	if thumbnail != nil {
		changes.Thumbnail = &thumbnail.URL
		changes.ThumbnailPublicID = &thumbnail.PublicID
	}
	if changes.Title == nil && changes.Description == nil && changes.Thumbnail == nil {
		return apiresponse.Fail(apiresponse.BadRequest("title, description or thumbnail is required"))
	}
	updated, err := routes.store.UpdateVideo(ctx, video.ID, changes)
	if err != nil {
		if thumbnail != nil {
			routes.uploader.Discard(ctx, thumbnail.PublicID, media.KindImage)
		}
		return apiresponse.Fail(lookupFailure(err, videoNotFoundMessage))
	}
	if thumbnail != nil {
		routes.uploader.Discard(ctx, video.ThumbnailPublicID, media.KindImage)
	}
	return apiresponse.OK(http.StatusOK, updated, "Video updated successfully")
}

func (routes *Routes) deleteVideo(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	video, err := routes.ownedVideo(contextGin, principal.ID, "delete")
	if err != nil {
		return apiresponse.Fail(err)
	}
	ctx := contextGin.Request.Context()
	if err := routes.store.DeleteVideo(ctx, video.ID); err != nil {
		return apiresponse.Fail(lookupFailure(err, videoNotFoundMessage))
	}
	routes.uploader.Discard(ctx, video.VideoFilePublicID, media.KindVideo)
	routes.uploader.Discard(ctx, video.ThumbnailPublicID, media.KindImage)
	return apiresponse.OK(http.StatusOK, gin.H{}, "Video deleted successfully")
}

func (routes *Routes) togglePublish(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	video, err := routes.ownedVideo(contextGin, principal.ID, "publish")
	if err != nil {
		return apiresponse.Fail(err)
	}
	updated, err := routes.store.SetPublished(contextGin.Request.Context(), video.ID, !video.IsPublished)
	if err != nil {
		return apiresponse.Fail(lookupFailure(err, videoNotFoundMessage))
	}
	return apiresponse.OK(http.StatusOK, updated, "publish status toggled successfully")
}

func (routes *Routes) incrementViews(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	video, err := routes.visibleVideo(contextGin, principal.ID, "Video not found")
	if err != nil {
		return apiresponse.Fail(err)
	}
	updated, err := routes.store.IncrementViews(contextGin.Request.Context(), video.ID)
	if err != nil {
		return apiresponse.Fail(lookupFailure(err, "Video not found"))
	}
	return apiresponse.OK(http.StatusOK, updated, "Video views incremented successfully")
}
