package relations

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/authkit"
	"github.com/tyemirov/vidtube/internal/store"
)

// Listings reads the like and subscription views.
type Listings interface {
	LikedVideos(ctx context.Context, actorID string) ([]store.LikedVideo, error)
	Subscribers(ctx context.Context, channelID string) ([]store.SubscriberEntry, error)
	SubscribedChannels(ctx context.Context, subscriberID string) ([]store.SubscriberEntry, error)
}

// Routes serves the like and subscription endpoints.
type Routes struct {
	toggler  *Toggler
	listings Listings
	logger   *zap.Logger
}

// NewRoutes constructs the relation handlers.
func NewRoutes(toggler *Toggler, listings Listings, logger *zap.Logger) *Routes {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Routes{toggler: toggler, listings: listings, logger: logger}
}

// MountLikes registers the /likes endpoints. The group must already require a session.
func (routes *Routes) MountLikes(router gin.IRouter) {
	router.POST("/toggle/v/:videoId", apiresponse.Handle(routes.logger, routes.toggle(store.RelationVideoLike, "videoId")))
	router.POST("/toggle/c/:commentId", apiresponse.Handle(routes.logger, routes.toggle(store.RelationCommentLike, "commentId")))
	router.POST("/toggle/t/:tweetId", apiresponse.Handle(routes.logger, routes.toggle(store.RelationTweetLike, "tweetId")))
	router.GET("/videos", apiresponse.Handle(routes.logger, routes.likedVideos))
}

// MountSubscriptions registers the /subscriptions endpoints. The group must already require a session.
func (routes *Routes) MountSubscriptions(router gin.IRouter) {
	router.POST("/c/:channelId", apiresponse.Handle(routes.logger, routes.toggle(store.RelationChannel, "channelId")))
	router.GET("/c/:channelId", apiresponse.Handle(routes.logger, routes.channelSubscribers))
	router.GET("/u/:subscriberId", apiresponse.Handle(routes.logger, routes.subscribedChannels))
}

var toggleMessages = map[store.RelationKind][2]string{
	store.RelationVideoLike:   {"Video liked successfully", "Like removed from the video"},
	store.RelationCommentLike: {"Comment liked successfully", "Like removed from the comment"},
	store.RelationTweetLike:   {"Tweet liked successfully", "Like removed from the tweet"},
	store.RelationChannel:     {"User subscribed the channel successfully", "User unsubscribed the channel"},
}

func (routes *Routes) toggle(kind store.RelationKind, param string) apiresponse.HandlerFunc {
	return func(contextGin *gin.Context) apiresponse.Result {
		principal, apiErr := authkit.MustPrincipal(contextGin)
		if apiErr != nil {
			return apiresponse.Fail(apiErr)
		}
		outcome, err := routes.toggler.Toggle(contextGin.Request.Context(), principal.ID, contextGin.Param(param), kind, param)
		if err != nil {
			return apiresponse.Fail(err)
		}
		messages := toggleMessages[kind]
		if outcome.Created != nil {
			return apiresponse.OK(http.StatusOK, outcome.Created, messages[0])
		}
		return apiresponse.OK(http.StatusOK, gin.H{}, messages[1])
	}
}

func (routes *Routes) likedVideos(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	liked, err := routes.listings.LikedVideos(contextGin.Request.Context(), principal.ID)
	if err != nil {
		return apiresponse.Fail(err)
	}
	return apiresponse.OK(http.StatusOK, gin.H{
		"totalLikedVideos": len(liked),
		"likedVideosList":  liked,
	}, "Liked videos fetched successfully")
}

func (routes *Routes) channelSubscribers(contextGin *gin.Context) apiresponse.Result {
	channelID := contextGin.Param("channelId")
	if apiErr := apiresponse.RequireID("channelId", channelID); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	subscribers, err := routes.listings.Subscribers(contextGin.Request.Context(), channelID)
	if err != nil {
		return apiresponse.Fail(err)
	}
	message := "Subscribers fetched successfully"
	if len(subscribers) == 0 {
		message = "There is zero subscribers of the given channel"
	}
	return apiresponse.OK(http.StatusOK, gin.H{
		"totalSubscribers":  len(subscribers),
		"subscriptionsList": subscribers,
	}, message)
}

func (routes *Routes) subscribedChannels(contextGin *gin.Context) apiresponse.Result {
	subscriberID := contextGin.Param("subscriberId")
	if apiErr := apiresponse.RequireID("subscriberId", subscriberID); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	channels, err := routes.listings.SubscribedChannels(contextGin.Request.Context(), subscriberID)
	if err != nil {
		return apiresponse.Fail(err)
	}
	message := "Subscribed channels fetched successfully"
	if len(channels) == 0 {
		message = "There is no channel subscribed by the user"
	}
	return apiresponse.OK(http.StatusOK, gin.H{
		"totalChannelSubscribed":     len(channels),
		"totalChannelSubscribedList": channels,
	}, message)
}
