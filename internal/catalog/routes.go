// Package catalog serves the content endpoints: videos, comments, playlists, tweets and the channel dashboard.
package catalog

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/media"
	"github.com/tyemirov/vidtube/internal/store"
)

// Store is the persistence the catalog handlers need.
type Store interface {
	ListVideos(ctx context.Context, query store.VideoQuery) ([]store.Video, int64, error)
	CreateVideo(ctx context.Context, video *store.Video) error
	VideoByID(ctx context.Context, videoID string) (store.Video, error)
	VideoDetails(ctx context.Context, videoID string, viewerID string) (store.VideoDetails, error)
	UpdateVideo(ctx context.Context, videoID string, changes store.VideoChanges) (store.Video, error)
	SetPublished(ctx context.Context, videoID string, published bool) (store.Video, error)
	IncrementViews(ctx context.Context, videoID string) (store.Video, error)
	DeleteVideo(ctx context.Context, videoID string) error
	ChannelStats(ctx context.Context, ownerID string) (store.ChannelStats, error)
	ChannelVideos(ctx context.Context, ownerID string) ([]store.Video, error)
	RecordWatch(ctx context.Context, principalID string, videoID string) error

	ListComments(ctx context.Context, videoID string, offset int, limit int) ([]store.CommentWithOwner, int64, error)
	CreateComment(ctx context.Context, comment *store.Comment) error
	CommentByID(ctx context.Context, commentID string) (store.Comment, error)
	UpdateComment(ctx context.Context, commentID string, content string) (store.Comment, error)
	DeleteComment(ctx context.Context, commentID string) error

	CreateTweet(ctx context.Context, tweet *store.Tweet) error
	TweetByID(ctx context.Context, tweetID string) (store.Tweet, error)
	TweetsByOwner(ctx context.Context, ownerID string) ([]store.Tweet, error)
	UpdateTweet(ctx context.Context, tweetID string, content string) (store.Tweet, error)
	DeleteTweet(ctx context.Context, tweetID string) error

	CreatePlaylist(ctx context.Context, playlist *store.Playlist) error
	PlaylistByID(ctx context.Context, playlistID string) (store.Playlist, error)
	PlaylistsByOwner(ctx context.Context, ownerID string) ([]store.Playlist, error)
	UpdatePlaylist(ctx context.Context, playlistID string, name string, description string) (store.Playlist, error)
	DeletePlaylist(ctx context.Context, playlistID string) error
	AddPlaylistVideo(ctx context.Context, playlistID string, videoID string) (store.Playlist, error)
	RemovePlaylistVideo(ctx context.Context, playlistID string, videoID string) (store.Playlist, error)
}

// Routes serves the catalog endpoints. Every group it mounts must already require a session.
type Routes struct {
	store    Store
	uploader *media.Uploader
	logger   *zap.Logger
}

// NewRoutes constructs the catalog handlers.
func NewRoutes(catalogStore Store, uploader *media.Uploader, logger *zap.Logger) *Routes {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Routes{store: catalogStore, uploader: uploader, logger: logger}
}

// MountVideos registers the /videos endpoints.
func (routes *Routes) MountVideos(router gin.IRouter) {
	router.GET("", apiresponse.Handle(routes.logger, routes.listVideos))
	router.POST("", apiresponse.Handle(routes.logger, routes.publishVideo))
	router.GET("/:videoId", apiresponse.Handle(routes.logger, routes.getVideo))
	router.PATCH("/:videoId", apiresponse.Handle(routes.logger, routes.updateVideo))
	router.DELETE("/:videoId", apiresponse.Handle(routes.logger, routes.deleteVideo))
	router.PATCH("/toggle/publish/:videoId", apiresponse.Handle(routes.logger, routes.togglePublish))
	router.POST("/:videoId/views", apiresponse.Handle(routes.logger, routes.incrementViews))
}

// MountComments registers the /comments endpoints.
func (routes *Routes) MountComments(router gin.IRouter) {
	router.GET("/:videoId", apiresponse.Handle(routes.logger, routes.listComments))
	router.POST("/:videoId", apiresponse.Handle(routes.logger, routes.addComment))
	router.PATCH("/c/:commentId", apiresponse.Handle(routes.logger, routes.updateComment))
	router.DELETE("/c/:commentId", apiresponse.Handle(routes.logger, routes.deleteComment))
}

// MountPlaylists registers the /playlist endpoints.
func (routes *Routes) MountPlaylists(router gin.IRouter) {
	router.POST("", apiresponse.Handle(routes.logger, routes.createPlaylist))
	router.GET("/user/:userId", apiresponse.Handle(routes.logger, routes.userPlaylists))
	router.GET("/:playlistId", apiresponse.Handle(routes.logger, routes.getPlaylist))
	router.PATCH("/:playlistId", apiresponse.Handle(routes.logger, routes.updatePlaylist))
	router.DELETE("/:playlistId", apiresponse.Handle(routes.logger, routes.deletePlaylist))
	router.PATCH("/add/:videoId/:playlistId", apiresponse.Handle(routes.logger, routes.addPlaylistVideo))
	router.PATCH("/remove/:videoId/:playlistId", apiresponse.Handle(routes.logger, routes.removePlaylistVideo))
}

// MountTweets registers the /tweets endpoints.
func (routes *Routes) MountTweets(router gin.IRouter) {
	router.POST("", apiresponse.Handle(routes.logger, routes.createTweet))
	router.GET("/user/:userId", apiresponse.Handle(routes.logger, routes.userTweets))
	router.PATCH("/:tweetId", apiresponse.Handle(routes.logger, routes.updateTweet))
	router.DELETE("/:tweetId", apiresponse.Handle(routes.logger, routes.deleteTweet))
}

// MountDashboard registers the /dashboard endpoints.
func (routes *Routes) MountDashboard(router gin.IRouter) {
	router.GET("/stats", apiresponse.Handle(routes.logger, routes.channelStats))
	router.GET("/videos", apiresponse.Handle(routes.logger, routes.channelVideos))
}

// pathID reads a path parameter that must hold a well-formed id.
func pathID(contextGin *gin.Context, name string) (string, *apiresponse.Error) {
	value := contextGin.Param(name)
	if apiErr := apiresponse.RequireID(name, value); apiErr != nil {
		return "", apiErr
	}
	return value, nil
}

// lookupFailure maps a store miss onto a 404 carrying notFoundMessage.
func lookupFailure(err error, notFoundMessage string) error {
	if errors.Is(err, store.ErrNotFound) {
		apiErr := apiresponse.NotFound(notFoundMessage)
		apiErr.Cause = err
		return apiErr
	}
	return apiresponse.Internal("", err)
}

func requireOwner(ownerID string, principalID string, message string) *apiresponse.Error {
	if ownerID != principalID {
		return apiresponse.Forbidden(message)
	}
	return nil
}
