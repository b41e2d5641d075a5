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

type createVideoRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Media       []mediaRef `json:"media" binding:"required,min=1"`
}

type updateVideoRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Media       []mediaRef `json:"media"`
}

func (r *Router) listVideos(c *gin.Context) {
	result, err := r.feeds.Videos.GetPage(c.Request.Context(), 0, pageParam(c), viewerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router) getVideo(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	items, err := r.feeds.Videos.GetItems(c.Request.Context(), []int64{id}, viewerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(items) == 0 {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	if err := r.videos.BumpViewCount(c.Request.Context(), id); err != nil {
		r.logger.Warn("failed to bump video view count", zap.Int64("id", id), zap.Error(err))
	}

	c.JSON(http.StatusOK, items[0])
}

func (r *Router) createVideo(c *gin.Context) {
	var req createVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, "invalid request body"))
		return
	}

	author, ok := r.author(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	video := models.Video{
		AuthorID:    author.ID,
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.videos.Create(c.Request.Context(), &video); err != nil {
		r.failStorage(c, "create video", err)
		return
	}

	urls, ok := r.persistMedia(c, models.TargetVideo, video.ID, req.Media)
	if !ok {
		return
	}

	item := projection(video.ID, 0, author, video.Title, video.Description, urls, now, now)
	r.feeds.Videos.AppendToLastPage(c.Request.Context(), 0, item)
	r.sink.Index(search.Document{
		ID:         video.ID,
		Collection: models.TargetVideo,
		Title:      video.Title,
		Body:       video.Description,
		AuthorID:   author.ID,
		CreatedAt:  now,
	})

	c.JSON(http.StatusCreated, item)
}

func (r *Router) updateVideo(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	var req updateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, "invalid request body"))
		return
	}

	video, err := r.videos.GetByID(c.Request.Context(), id)
	if err != nil {
		r.failStorage(c, "load video", err)
		return
	}
	if video == nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if video.AuthorID != viewerID(c) {
		abortWithError(c, feed.ErrUnauthorized)
		return
	}

	if req.Title != nil {
		video.Title = *req.Title
	}
	if req.Description != nil {
		video.Description = *req.Description
	}
	video.UpdatedAt = time.Now().UTC()
	if err := r.videos.Update(c.Request.Context(), video); err != nil {
		r.failStorage(c, "update video", err)
		return
	}

	if req.Media != nil {
		r.purgeBlobs(c, models.TargetVideo, id)
		if err := r.media.DeleteByTarget(c.Request.Context(), models.TargetVideo, id); err != nil {
			r.failStorage(c, "replace media", err)
			return
		}
		if _, ok := r.persistMedia(c, models.TargetVideo, id, req.Media); !ok {
			return
		}
	}

	r.feeds.Videos.InvalidateParent(c.Request.Context(), 0)
	r.feeds.Videos.InvalidateItems(c.Request.Context(), id)
	r.sink.Index(search.Document{
		ID:         video.ID,
		Collection: models.TargetVideo,
		Title:      video.Title,
		Body:       video.Description,
		AuthorID:   video.AuthorID,
		CreatedAt:  video.CreatedAt,
	})

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (r *Router) deleteVideo(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	video, err := r.videos.GetByID(c.Request.Context(), id)
	if err != nil {
		r.failStorage(c, "load video", err)
		return
	}
	if video == nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if video.AuthorID != viewerID(c) {
		abortWithError(c, feed.ErrUnauthorized)
		return
	}

	r.purgeBlobs(c, models.TargetVideo, id)
	if err := r.videos.Delete(c.Request.Context(), id); err != nil {
		r.failStorage(c, "delete video", err)
		return
	}

	r.feeds.Videos.InvalidateParent(c.Request.Context(), 0)
	r.feeds.Videos.InvalidateItems(c.Request.Context(), id)
	r.feeds.VideoComments.InvalidateParent(c.Request.Context(), id)
	r.sink.Remove(models.TargetVideo, id)

	c.JSON(http.StatusOK, gin.H{"id": id})
}
