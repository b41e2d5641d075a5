package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forumly/pagefeed/internal/feed"
	"github.com/forumly/pagefeed/internal/models"
	"github.com/forumly/pagefeed/internal/search"
)

type createReplyRequest struct {
	Content string     `json:"content" binding:"required"`
	Media   []mediaRef `json:"media"`
}

type updateReplyRequest struct {
	Content string `json:"content" binding:"required"`
}

func (r *Router) listReplies(c *gin.Context) {
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

	fam := r.familyOfComment(comment)
	result, err := fam.replies.GetPage(c.Request.Context(), id, pageParam(c), viewerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router) createReply(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	var req createReplyRequest
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

	author, ok := r.author(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	reply := models.Reply{
		CommentID: id,
		AuthorID:  author.ID,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.replies.Create(c.Request.Context(), &reply); err != nil {
		r.failStorage(c, "create reply", err)
		return
	}

	urls, ok := r.persistMedia(c, models.TargetReply, reply.ID, req.Media)
	if !ok {
		return
	}

	fam := r.familyOfComment(comment)
	item := projection(reply.ID, id, author, "", reply.Content, urls, now, now)
	fam.replies.AppendToLastPage(c.Request.Context(), id, item)
	r.sink.Index(search.Document{
		ID:         reply.ID,
		Collection: fam.replies.Collection().Name,
		Body:       reply.Content,
		AuthorID:   author.ID,
		CreatedAt:  now,
	})

	c.JSON(http.StatusCreated, item)
}

// replyWithFamily loads a reply plus the family of its parent comment
func (r *Router) replyWithFamily(c *gin.Context, id int64) (*models.Reply, family, bool) {
	reply, err := r.replies.GetByID(c.Request.Context(), id)
	if err != nil {
		r.failStorage(c, "load reply", err)
		return nil, family{}, false
	}
	if reply == nil {
		abortWithError(c, feed.ErrNotFound)
		return nil, family{}, false
	}

	comment, err := r.comments.GetByID(c.Request.Context(), reply.CommentID)
	if err != nil {
		r.failStorage(c, "load comment", err)
		return nil, family{}, false
	}
	if comment == nil {
		abortWithError(c, feed.ErrNotFound)
		return nil, family{}, false
	}

	return reply, r.familyOfComment(comment), true
}

func (r *Router) updateReply(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	var req updateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, "invalid request body"))
		return
	}

	reply, fam, ok := r.replyWithFamily(c, id)
	if !ok {
		return
	}
	if reply.AuthorID != viewerID(c) {
		abortWithError(c, feed.ErrUnauthorized)
		return
	}

	reply.Content = req.Content
	reply.UpdatedAt = time.Now().UTC()
	if err := r.replies.Update(c.Request.Context(), reply); err != nil {
		r.failStorage(c, "update reply", err)
		return
	}

	fam.replies.InvalidateParent(c.Request.Context(), reply.CommentID)
	fam.replies.InvalidateItems(c.Request.Context(), id)
	r.sink.Index(search.Document{
		ID:         reply.ID,
		Collection: fam.replies.Collection().Name,
		Body:       reply.Content,
		AuthorID:   reply.AuthorID,
		CreatedAt:  reply.CreatedAt,
	})

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (r *Router) deleteReply(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	reply, fam, ok := r.replyWithFamily(c, id)
	if !ok {
		return
	}
	if reply.AuthorID != viewerID(c) {
		abortWithError(c, feed.ErrUnauthorized)
		return
	}

	r.purgeBlobs(c, models.TargetReply, id)
	if err := r.replies.Delete(c.Request.Context(), id); err != nil {
		r.failStorage(c, "delete reply", err)
		return
	}

	fam.replies.InvalidateParent(c.Request.Context(), reply.CommentID)
	fam.replies.InvalidateItems(c.Request.Context(), id)
	r.sink.Remove(fam.replies.Collection().Name, id)

	c.JSON(http.StatusOK, gin.H{"id": id})
}
