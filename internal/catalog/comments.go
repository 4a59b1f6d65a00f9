package catalog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tyemirov/vidtube/internal/apiresponse"
	"github.com/tyemirov/vidtube/internal/authkit"
	"github.com/tyemirov/vidtube/internal/store"
)

const commentNotFoundMessage = "No such comment exists"

type commentRequest struct {
	Content string `form:"content" json:"content" binding:"required,notblank"`
}

func (routes *Routes) listComments(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	video, err := routes.visibleVideo(contextGin, principal.ID, "No such video found")
	if err != nil {
		return apiresponse.Fail(err)
	}
	pageRequest, apiErr := apiresponse.ParsePage(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	comments, total, err := routes.store.ListComments(contextGin.Request.Context(), video.ID, pageRequest.Offset(), pageRequest.Limit)
	if err != nil {
		return apiresponse.Fail(apiresponse.Internal("", err))
	}
	return apiresponse.OK(http.StatusOK, apiresponse.NewPage(comments, total, pageRequest), "All comments fetched successfully")
}

func (routes *Routes) addComment(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	video, err := routes.visibleVideo(contextGin, principal.ID, "No such video found")
	if err != nil {
		return apiresponse.Fail(err)
	}
	var request commentRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	comment := store.Comment{
		Content: strings.TrimSpace(request.Content),
		VideoID: video.ID,
		OwnerID: principal.ID,
	}
	if err := routes.store.CreateComment(contextGin.Request.Context(), &comment); err != nil {
		return apiresponse.Fail(apiresponse.Internal("Something went wrong while registering the comment", err))
	}
	return apiresponse.OK(http.StatusCreated, comment, "Comment registered successfully")
}

func (routes *Routes) ownedComment(contextGin *gin.Context, principalID string, action string) (store.Comment, error) {
	commentID, apiErr := pathID(contextGin, "commentId")
	if apiErr != nil {
		return store.Comment{}, apiErr
	}
	comment, err := routes.store.CommentByID(contextGin.Request.Context(), commentID)
	if err != nil {
		return store.Comment{}, lookupFailure(err, commentNotFoundMessage)
	}
	if apiErr := requireOwner(comment.OwnerID, principalID, "Only the author can "+action+" the comment"); apiErr != nil {
		return store.Comment{}, apiErr
	}
	return comment, nil
}

func (routes *Routes) updateComment(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	comment, err := routes.ownedComment(contextGin, principal.ID, "update")
	if err != nil {
		return apiresponse.Fail(err)
	}
	var request commentRequest
	if apiErr := apiresponse.Bind(contextGin, &request); apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	updated, err := routes.store.UpdateComment(contextGin.Request.Context(), comment.ID, strings.TrimSpace(request.Content))
	if err != nil {
		return apiresponse.Fail(lookupFailure(err, commentNotFoundMessage))
	}
	return apiresponse.OK(http.StatusOK, updated, "comment's content updated successfully")
}

func (routes *Routes) deleteComment(contextGin *gin.Context) apiresponse.Result {
	principal, apiErr := authkit.MustPrincipal(contextGin)
	if apiErr != nil {
		return apiresponse.Fail(apiErr)
	}
	comment, err := routes.ownedComment(contextGin, principal.ID, "delete")
	if err != nil {
		return apiresponse.Fail(err)
	}
	if err := routes.store.DeleteComment(contextGin.Request.Context(), comment.ID); err != nil {
		return apiresponse.Fail(lookupFailure(err, commentNotFoundMessage))
	}
	return apiresponse.OK(http.StatusOK, gin.H{}, "Comment deleted successfully")
}
