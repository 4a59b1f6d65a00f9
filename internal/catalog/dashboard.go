package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/authkit"
)

// channelStats reports totals for the caller's channel. A channel with no uploads reports zeros.
func (routes *Routes) channelStats(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	stats, err := routes.store.ChannelStats(contextGin.Request.Context(), principal.ID)
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("", err))
	}
	return apiresponse.OK(http.StatusOK, stats, "Channel stats fetched successfully")
}

func (routes *Routes) channelVideos(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	videos, err := routes.store.ChannelVideos(contextGin.Request.Context(), principal.ID)
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("", err))
	}
	return apiresponse.OK(http.StatusOK, videos, "All videos uploaded by the channel fetched successfully")
}
