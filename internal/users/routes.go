// Package users serves the profile endpoints of a signed-in principal.
package users

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/authkit"
	"github.com/tyemirov/vidtube/internal/media"
	"github.com/tyemirov/vidtube/internal/store"
)

// ProfileStore is the persistence the profile handlers need.
type ProfileStore interface {
	UpdateAccount(ctx context.Context, principalID string, fullName string, email string) (store.Principal, error)
	SetAvatar(ctx context.Context, principalID string, avatarURL string, publicID string) (store.Principal, error)
	SetCoverImage(ctx context.Context, principalID string, coverURL string, publicID string) (store.Principal, error)
	ChannelProfile(ctx context.Context, username string, viewerID string) (store.ChannelProfile, error)
	WatchHistory(ctx context.Context, principalID string) ([]store.WatchedVideo, error)
}

// Routes serves the profile endpoints. The group they are mounted on must already require a session.
type Routes struct {
	profiles ProfileStore
	uploader *media.Uploader
	logger   *zap.Logger
}

// NewRoutes constructs the profile handlers.
func NewRoutes(profiles ProfileStore, uploader *media.Uploader, logger *zap.Logger) *Routes {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Routes{profiles: profiles, uploader: uploader, logger: logger}
}

// Mount registers the profile handlers. The short PATCH paths and /c/:username are aliases kept for
// clients of the earlier surface.
func (routes *Routes) Mount(router gin.IRouter) {
	updateAccount := apiresponse.Handle(routes.logger, routes.updateAccount)
	updateAvatar := apiresponse.Handle(routes.logger, routes.replaceImage(imageSlot{
		field:          "avatar",
		missingMessage: "Avatar file is missing",
		successMessage: "Avatar file updated successfully",
		previous:       func(principal store.Principal) string { return principal.AvatarPublicID },
		save:           routes.profiles.SetAvatar,
	}))
	updateCoverImage := apiresponse.Handle(routes.logger, routes.replaceImage(imageSlot{
		field:          "coverImage",
		missingMessage: "Cover image file is missing",
		successMessage: "Cover image updated successfully",
		previous:       func(principal store.Principal) string { return principal.CoverImagePublicID },
		save:           routes.profiles.SetCoverImage,
	}))
	channelProfile := apiresponse.Handle(routes.logger, routes.channelProfile)

	router.GET("/current-user", apiresponse.Handle(routes.logger, routes.currentUser))
	router.PUT("/update-account-details", updateAccount)
	router.PATCH("/update-account", updateAccount)
	router.PUT("/update-avatar", updateAvatar)
	router.PATCH("/avatar", updateAvatar)
	router.PUT("/update-cover-image", updateCoverImage)
	router.PATCH("/cover-image", updateCoverImage)
	router.GET("/channel/:username", channelProfile)
	router.GET("/c/:username", channelProfile)
	router.GET("/history", apiresponse.Handle(routes.logger, routes.watchHistory))
}

func (routes *Routes) currentUser(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	return apiresponse.OK(http.StatusOK, principal, "current user fetched successfully")
}

type accountRequest struct {
	FullName string `json:"fullName" binding:"required,notblank"`
	Email    string `json:"email" binding:"required,notblank,email"`
}

func (routes *Routes) updateAccount(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	var request accountRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	updated, err := routes.profiles.UpdateAccount(contextGin.Request.Context(), principal.ID, request.FullName, request.Email)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return apiresponse.Fail(apiresponse.Conflict("Email is already in use"))
		case errors.Is(err, store.ErrNotFound):
			return apiresponse.Fail(apiresponse.Unauthorized("Invalid Access Token"))
		default:
			return apiresponse.Fail(apiresponse.Internal("", err))
		}
	}
	return apiresponse.OK(http.StatusOK, updated, "Account details updated successfully")
}

// imageSlot describes one replaceable profile image.
type imageSlot struct {
	field          string
	missingMessage string
	successMessage string
	previous       func(principal store.Principal) string
	save           func(ctx context.Context, principalID string, url string, publicID string) (store.Principal, error)
}

// replaceImage uploads the new image, stores it, then discards the image it replaced.
func (routes *Routes) replaceImage(slot imageSlot) apiresponse.HandlerFunc {
	return func(contextGin *gin.Context) apiresponse.Result {
		principal, apiErr := authkit.MustPrincipal(contextGin)
		if apiErr != nil {
			return apiresponse.Fail(apiErr)
		}
		asset, apiErr := routes.uploader.FormFile(contextGin, slot.field, media.KindImage, true, slot.missingMessage)
		if apiErr != nil {
			return apiresponse.Fail(apiErr)
		}
		ctx := contextGin.Request.Context()
		updated, err := slot.save(ctx, principal.ID, asset.URL, asset.PublicID)
		if err != nil {
			routes.uploader.Discard(ctx, asset.PublicID, media.KindImage)
			return apiresponse.Fail(apiresponse.Internal("Error while updating "+slot.field, err))
		}
		routes.uploader.Discard(ctx, slot.previous(principal), media.KindImage)
		return apiresponse.OK(http.StatusOK, updated, slot.successMessage)
	}
}

func (routes *Routes) channelProfile(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	username := strings.ToLower(strings.TrimSpace(contextGin.Param("username")))
	if username == "" {
		return apiresponse.Fail(apiresponse.BadRequest("Username is missing"))
	}
	profile, err := routes.profiles.ChannelProfile(contextGin.Request.Context(), username, principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apiresponse.Fail(apiresponse.NotFound("Channel does not exist"))
		}
		return apiresponse.Fail(apiresponse.Internal("", err))
	}
	return apiresponse.OK(http.StatusOK, profile, "User channel fetched successfully")
}

func (routes *Routes) watchHistory(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	history, err := routes.profiles.WatchHistory(contextGin.Request.Context(), principal.ID)
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("", err))
	}
	return apiresponse.OK(http.StatusOK, history, "Watch history fetched successfully")
}
