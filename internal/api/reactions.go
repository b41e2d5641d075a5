package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forumly/pagefeed/internal/feed"
	"github.com/forumly/pagefeed/internal/models"
)

type reactionRequest struct {
	TargetType string `json:"target_type" binding:"required,oneof=forum video comment reply"`
	TargetID   int64  `json:"target_id" binding:"required,gt=0"`
}

// targetExists checks the referenced row is still there. Like/save rows are
// dynamic state: no page invalidation follows, every read recomputes them.
func (r *Router) targetExists(c *gin.Context, targetType string, targetID int64) (bool, error) {
	ctx := c.Request.Context()
	switch targetType {
	case models.TargetForum:
		row, err := r.forums.GetByID(ctx, targetID)
		return row != nil, err
	case models.TargetVideo:
		row, err := r.videos.GetByID(ctx, targetID)
		return row != nil, err
	case models.TargetComment:
		row, err := r.comments.GetByID(ctx, targetID)
		return row != nil, err
	case models.TargetReply:
		row, err := r.replies.GetByID(ctx, targetID)
		return row != nil, err
	}
	return false, nil
}

func (r *Router) bindReaction(c *gin.Context) (*reactionRequest, bool) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, "invalid request body"))
		return nil, false
	}

	exists, err := r.targetExists(c, req.TargetType, req.TargetID)
	if err != nil {
		r.failStorage(c, "load reaction target", err)
		return nil, false
	}
	if !exists {
		abortWithError(c, feed.ErrNotFound)
		return nil, false
	}
	return &req, true
}

func (r *Router) like(c *gin.Context) {
	req, ok := r.bindReaction(c)
	if !ok {
		return
	}

	like := models.Like{
		UserID:     viewerID(c),
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.likes.Like(c.Request.Context(), &like); err != nil {
		r.failStorage(c, "create like", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": true})
}

func (r *Router) unlike(c *gin.Context) {
	req, ok := r.bindReaction(c)
	if !ok {
		return
	}

	if err := r.likes.Unlike(c.Request.Context(), viewerID(c), req.TargetType, req.TargetID); err != nil {
		r.failStorage(c, "delete like", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": false})
}

func (r *Router) save(c *gin.Context) {
	req, ok := r.bindReaction(c)
	if !ok {
		return
	}

	fav := models.Favorite{
		UserID:     viewerID(c),
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.likes.Save(c.Request.Context(), &fav); err != nil {
		r.failStorage(c, "create favorite", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (r *Router) unsave(c *gin.Context) {
	req, ok := r.bindReaction(c)
	if !ok {
		return
	}

	if err := r.likes.Unsave(c.Request.Context(), viewerID(c), req.TargetType, req.TargetID); err != nil {
		r.failStorage(c, "delete favorite", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": false})
}
