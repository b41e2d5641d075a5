package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forumly/pagefeed/internal/feed"
	"github.com/forumly/pagefeed/internal/models"
	"github.com/forumly/pagefeed/internal/search"
)

type createCommentRequest struct {
	Content string     `json:"content" binding:"required"`
	Media   []mediaRef `json:"media"`
}

type updateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// listComments serves one page of a parent's comment feed
func (r *Router) listComments(fam family) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			abortWithError(c, feed.ErrNotFound)
			return
		}

		exists, err := fam.exists(c, id)
		if err != nil {
			r.failStorage(c, "load parent", err)
			return
		}
		if !exists {
			abortWithError(c, feed.ErrNotFound)
			return
		}

		result, err := fam.comments.GetPage(c.Request.Context(), id, pageParam(c), viewerID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// createComment persists a comment and slots it into the parent's last
// cached page
func (r *Router) createComment(fam family) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			abortWithError(c, feed.ErrNotFound)
			return
		}

		var req createCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, NewError(http.StatusBadRequest, "invalid request body"))
			return
		}

		exists, err := fam.exists(c, id)
		if err != nil {
			r.failStorage(c, "load parent", err)
			return
		}
		if !exists {
			abortWithError(c, feed.ErrNotFound)
			return
		}

		author, ok := r.author(c)
		if !ok {
			return
		}

		now := time.Now().UTC()
		comment := models.Comment{
			TargetType: fam.parentType,
			TargetID:   id,
			AuthorID:   author.ID,
			Content:    req.Content,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := r.comments.Create(c.Request.Context(), &comment); err != nil {
			r.failStorage(c, "create comment", err)
			return
		}

		urls, ok := r.persistMedia(c, models.TargetComment, comment.ID, req.Media)
		if !ok {
			return
		}

		item := projection(comment.ID, id, author, "", comment.Content, urls, now, now)
		fam.comments.AppendToLastPage(c.Request.Context(), id, item)
		r.sink.Index(search.Document{
			ID:         comment.ID,
			Collection: fam.comments.Collection().Name,
			Body:       comment.Content,
			AuthorID:   author.ID,
			CreatedAt:  now,
		})

		c.JSON(http.StatusCreated, item)
	}
}

func (r *Router) updateComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, "invalid request body"))
		return
	}

	comment, err := r.comments.GetByID(c.Request.Context(), id)
	if err != nil {
		r.failStorage(c, "load comment", err)
		return
	}
	if comment == nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if comment.AuthorID != viewerID(c) {
		abortWithError(c, feed.ErrUnauthorized)
		return
	}

	comment.Content = req.Content
	comment.UpdatedAt = time.Now().UTC()
	if err := r.comments.Update(c.Request.Context(), comment); err != nil {
		r.failStorage(c, "update comment", err)
		return
	}

	fam := r.familyOfComment(comment)
	fam.comments.InvalidateParent(c.Request.Context(), comment.TargetID)
	fam.comments.InvalidateItems(c.Request.Context(), id)
	r.sink.Index(search.Document{
		ID:         comment.ID,
		Collection: fam.comments.Collection().Name,
		Body:       comment.Content,
		AuthorID:   comment.AuthorID,
		CreatedAt:  comment.CreatedAt,
	})

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (r *Router) deleteComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	comment, err := r.comments.GetByID(c.Request.Context(), id)
	if err != nil {
		r.failStorage(c, "load comment", err)
		return
	}
	if comment == nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if comment.AuthorID != viewerID(c) {
		abortWithError(c, feed.ErrUnauthorized)
		return
	}

	r.purgeBlobs(c, models.TargetComment, id)
	if err := r.comments.Delete(c.Request.Context(), id); err != nil {
		r.failStorage(c, "delete comment", err)
		return
	}

	fam := r.familyOfComment(comment)
	fam.comments.InvalidateParent(c.Request.Context(), comment.TargetID)
	fam.comments.InvalidateItems(c.Request.Context(), id)
	// Replies went away with the comment
	fam.replies.InvalidateParent(c.Request.Context(), id)
	r.sink.Remove(fam.comments.Collection().Name, id)

	c.JSON(http.StatusOK, gin.H{"id": id})
}
