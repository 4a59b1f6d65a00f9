package catalog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/authkit"
	"github.com/tyemirov/vidtube/internal/store"
)

const tweetNotFoundMessage = "No such tweet exists!"

type tweetRequest struct {
	Content string `json:"content" binding:"required,notblank"`
}

func (routes *Routes) createTweet(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	var request tweetRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	tweet := store.Tweet{Content: strings.TrimSpace(request.Content), OwnerID: principal.ID}
	if err := routes.store.CreateTweet(contextGin.Request.Context(), &tweet); err != nil {
		return apiresponse.Fail(apiresponse.Internal("Something went wrong while registering the tweet", err))
	}
	return apiresponse.OK(http.StatusCreated, tweet, "tweet created successfully")
}

func (routes *Routes) userTweets(contextGin *gin.Context) apiresponse.Result {
	userID, apiErr := pathID(contextGin, "userId")
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	tweets, err := routes.store.TweetsByOwner(contextGin.Request.Context(), userID)
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("Something went wrong while fetching the tweets", err))
	}
	return apiresponse.OK(http.StatusOK, tweets, "All tweets fetched successfully")
}

func (routes *Routes) ownedTweet(contextGin *gin.Context, principalID string, action string) (store.Tweet, error) {
	tweetID, apiErr := pathID(contextGin, "tweetId")
	if apiErr != nil {
		return store.Tweet{}, apiErr
	}
	tweet, err := routes.store.TweetByID(contextGin.Request.Context(), tweetID)
	if err != nil {
		return store.Tweet{}, lookupFailure(err, tweetNotFoundMessage)
	}
	if apiErr := requireOwner(tweet.OwnerID, principalID, "Only the author can "+action+" the tweet"); apiErr != nil {
		return store.Tweet{}, apiErr
	}
	return tweet, nil
}

func (routes *Routes) updateTweet(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	tweet, err := routes.ownedTweet(contextGin, principal.ID, "update")
	if err != nil {
		return apiresponse.Fail(err)
	}
	var request tweetRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	updated, err := routes.store.UpdateTweet(contextGin.Request.Context(), tweet.ID, strings.TrimSpace(request.Content))
	if err != nil {
		return apiresponse.Fail(lookupFailure(err, tweetNotFoundMessage))
	}
	return apiresponse.OK(http.StatusOK, updated, "tweet updated successfully")
}

func (routes *Routes) deleteTweet(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	tweet, err := routes.ownedTweet(contextGin, principal.ID, "delete")
	if err != nil {
		return apiresponse.Fail(err)
	}
	if err := routes.store.DeleteTweet(contextGin.Request.Context(), tweet.ID); err != nil {
		return apiresponse.Fail(lookupFailure(err, tweetNotFoundMessage))
	}
	return apiresponse.OK(http.StatusOK, gin.H{}, "Tweet deleted successfully")
}
