package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/authkit"
	"github.com/tyemirov/vidtube/internal/store"
)

const playlistNotFoundMessage = "No playlist found with the given playlistId"

type playlistRequest struct {
	Name        string `json:"name" binding:"required,notblank"`
	Description string `json:"description" binding:"required,notblank"`
}

func (routes *Routes) createPlaylist(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	var request playlistRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	playlist := store.Playlist{
		Name:        strings.TrimSpace(request.Name),
		Description: strings.TrimSpace(request.Description),
		OwnerID:     principal.ID,
	}
	if err := routes.store.CreatePlaylist(contextGin.Request.Context(), &playlist); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return apiresponse.Fail(apiresponse.Conflict("Playlist already exists"))
		}
		return apiresponse.Fail(apiresponse.Internal("Something went wrong while creating a playlist", err))
	}
	return apiresponse.OK(http.StatusCreated, playlist, "Playlist created successfully")
}

func (routes *Routes) userPlaylists(contextGin *gin.Context) apiresponse.Result {
	userID, apiErr := pathID(contextGin, "userId")
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	playlists, err := routes.store.PlaylistsByOwner(contextGin.Request.Context(), userID)
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("", err))
	}
	return apiresponse.OK(http.StatusOK, gin.H{
		"totalPlaylists":   len(playlists),
		"allPlaylistsList": playlists,
	}, "User playlists fetched successfully")
}

func (routes *Routes) loadPlaylist(contextGin *gin.Context) (store.Playlist, error) {
	playlistID, apiErr := pathID(contextGin, "playlistId")
	if apiErr != nil {
		return store.Playlist{}, apiErr
	}
	playlist, err := routes.store.PlaylistByID(contextGin.Request.Context(), playlistID)
	if err != nil {
		return store.Playlist{}, lookupFailure(err, playlistNotFoundMessage)
	}
	return playlist, nil
}

func (routes *Routes) ownedPlaylist(contextGin *gin.Context, principalID string) (store.Playlist, error) {
	playlist, err := routes.loadPlaylist(contextGin)
	if err != nil {
		return store.Playlist{}, err
	}
	if apiErr := requireOwner(playlist.OwnerID, principalID, "Only the owner can modify the playlist"); apiErr != nil {
		return store.Playlist{}, apiErr
	}
	return playlist, nil
}

func (routes *Routes) getPlaylist(contextGin *gin.Context) apiresponse.Result {
	playlist, err := routes.loadPlaylist(contextGin)
	if err != nil {
		return apiresponse.Fail(err)
	}
	return apiresponse.OK(http.StatusOK, playlist, "Playlist fetched successfully")
}

func (routes *Routes) updatePlaylist(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	playlist, err := routes.ownedPlaylist(contextGin, principal.ID)
	if err != nil {
		return apiresponse.Fail(err)
	}
	var request playlistRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	updated, err := routes.store.UpdatePlaylist(contextGin.Request.Context(), playlist.ID, strings.TrimSpace(request.Name), strings.TrimSpace(request.Description))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return apiresponse.Fail(apiresponse.Conflict("Playlist already exists"))
		}
		return apiresponse.Fail(lookupFailure(err, playlistNotFoundMessage))
	}
	return apiresponse.OK(http.StatusOK, updated, "Playlist updated successfully")
}

func (routes *Routes) deletePlaylist(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	playlist, err := routes.ownedPlaylist(contextGin, principal.ID)
	if err != nil {
		return apiresponse.Fail(err)
	}
	if err := routes.store.DeletePlaylist(contextGin.Request.Context(), playlist.ID); err != nil {
		return apiresponse.Fail(lookupFailure(err, playlistNotFoundMessage))
	}
	return apiresponse.OK(http.StatusOK, gin.H{}, "Playlist deleted successfully")
}

func (routes *Routes) addPlaylistVideo(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	playlist, err := routes.ownedPlaylist(contextGin, principal.ID)
	if err != nil {
		return apiresponse.Fail(err)
	}
	video, err := routes.visibleVideo(contextGin, principal.ID, videoNotFoundMessage)
	if err != nil {
		return apiresponse.Fail(err)
	}
	updated, err := routes.store.AddPlaylistVideo(contextGin.Request.Context(), playlist.ID, video.ID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEntry) {
			return apiresponse.Fail(apiresponse.Conflict("Video already added to the playlist"))
		}
		return apiresponse.Fail(apiresponse.Internal("Something went wrong while adding video to the playlist", err))
	}
	return apiresponse.OK(http.StatusOK, updated, "Video added successfully to the playlist")
}

func (routes *Routes) removePlaylistVideo(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	playlist, err := routes.ownedPlaylist(contextGin, principal.ID)
	if err != nil {
		return apiresponse.Fail(err)
	}
	videoID, apiErr := pathID(contextGin, "videoId")
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	updated, err := routes.store.RemovePlaylistVideo(contextGin.Request.Context(), playlist.ID, videoID)
	if err != nil {
		return apiresponse.Fail(lookupFailure(err, "Video is not part of the playlist"))
	}
	return apiresponse.OK(http.StatusOK, updated, "Video deleted from the playlist successfully")
}
