package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumly/pagefeed/internal/feed"
	"github.com/forumly/pagefeed/internal/models"
	"github.com/forumly/pagefeed/internal/search"
)

type createForumRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Media       []mediaRef `json:"media"`
}

type updateForumRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Media       []mediaRef `json:"media"`
}

func (r *Router) listForums(c *gin.Context) {
	result, err := r.feeds.Forums.GetPage(c.Request.Context(), 0, pageParam(c), viewerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router) getForum(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	items, err := r.feeds.Forums.GetItems(c.Request.Context(), []int64{id}, viewerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(items) == 0 {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	// Detail views count; the counter is dynamic state, never cached
	if err := r.forums.BumpViewCount(c.Request.Context(), id); err != nil {
		r.logger.Warn("failed to bump forum view count", zap.Int64("id", id), zap.Error(err))
	}

	c.JSON(http.StatusOK, items[0])
}

func (r *Router) createForum(c *gin.Context) {
	var req createForumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, "invalid request body"))
		return
	}

	author, ok := r.author(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	forum := models.Forum{
		AuthorID:    author.ID,
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.forums.Create(c.Request.Context(), &forum); err != nil {
		r.failStorage(c, "create forum", err)
		return
	}

	urls, ok := r.persistMedia(c, models.TargetForum, forum.ID, req.Media)
	if !ok {
		return
	}

	item := projection(forum.ID, 0, author, forum.Title, forum.Description, urls, now, now)
	r.feeds.Forums.AppendToLastPage(c.Request.Context(), 0, item)
	r.sink.Index(search.Document{
		ID:         forum.ID,
		Collection: models.TargetForum,
		Title:      forum.Title,
		Body:       forum.Description,
		AuthorID:   author.ID,
		CreatedAt:  now,
	})

	c.JSON(http.StatusCreated, item)
}

func (r *Router) updateForum(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	var req updateForumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, "invalid request body"))
		return
	}

	forum, err := r.forums.GetByID(c.Request.Context(), id)
	if err != nil {
		r.failStorage(c, "load forum", err)
		return
	}
	if forum == nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if forum.AuthorID != viewerID(c) {
		abortWithError(c, feed.ErrUnauthorized)
		return
	}

	if req.Title != nil {
		forum.Title = *req.Title
	}
	if req.Description != nil {
		forum.Description = *req.Description
	}
	forum.UpdatedAt = time.Now().UTC()
	if err := r.forums.Update(c.Request.Context(), forum); err != nil {
		r.failStorage(c, "update forum", err)
		return
	}

	if req.Media != nil {
		r.purgeBlobs(c, models.TargetForum, id)
		if err := r.media.DeleteByTarget(c.Request.Context(), models.TargetForum, id); err != nil {
			r.failStorage(c, "replace media", err)
			return
		}
		if _, ok := r.persistMedia(c, models.TargetForum, id, req.Media); !ok {
			return
		}
	}

	r.feeds.Forums.InvalidateParent(c.Request.Context(), 0)
	r.feeds.Forums.InvalidateItems(c.Request.Context(), id)
	r.sink.Index(search.Document{
		ID:         forum.ID,
		Collection: models.TargetForum,
		Title:      forum.Title,
		Body:       forum.Description,
		AuthorID:   forum.AuthorID,
		CreatedAt:  forum.CreatedAt,
	})

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (r *Router) deleteForum(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	forum, err := r.forums.GetByID(c.Request.Context(), id)
	if err != nil {
		r.failStorage(c, "load forum", err)
		return
	}
	if forum == nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if forum.AuthorID != viewerID(c) {
		abortWithError(c, feed.ErrUnauthorized)
		return
	}

	r.purgeBlobs(c, models.TargetForum, id)
	if err := r.forums.Delete(c.Request.Context(), id); err != nil {
		r.failStorage(c, "delete forum", err)
		return
	}

	r.feeds.Forums.InvalidateParent(c.Request.Context(), 0)
	r.feeds.Forums.InvalidateItems(c.Request.Context(), id)
	r.feeds.ForumComments.InvalidateParent(c.Request.Context(), id)
	r.sink.Remove(models.TargetForum, id)

	c.JSON(http.StatusOK, gin.H{"id": id})
}
