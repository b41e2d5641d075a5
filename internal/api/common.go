package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumly/pagefeed/internal/feed"
	"github.com/forumly/pagefeed/internal/models"
)

// mediaRef is an attachment reference in a create/update request: the client
// uploads through /media first and passes back what it got.
type mediaRef struct {
	URL         string `json:"url" binding:"required"`
	DeletionKey string `json:"deletion_key"`
}

// failStorage logs a relational failure and answers 503
func (r *Router) failStorage(c *gin.Context, op string, err error) {
	r.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
	abortWithError(c, fmt.Errorf("%w: %s", feed.ErrStorageUnavailable, op))
}

// author loads the caller's display fields for a fresh projection
func (r *Router) author(c *gin.Context) (*models.User, bool) {
	user, err := r.users.GetByID(c.Request.Context(), viewerID(c))
	if err != nil {
		r.failStorage(c, "load author", err)
		return nil, false
	}
	if user == nil {
		abortWithError(c, feed.ErrUnauthorized)
		return nil, false
	}
	return user, true
}

// persistMedia inserts attachment rows for one target and returns the public
// URLs in request order
func (r *Router) persistMedia(c *gin.Context, targetType string, targetID int64, refs []mediaRef) ([]string, bool) {
	if len(refs) == 0 {
		return nil, true
	}
	now := time.Now().UTC()
	rows := make([]models.Media, len(refs))
	urls := make([]string, len(refs))
	for i, ref := range refs {
		rows[i] = models.Media{
			TargetType:     targetType,
			TargetID:       targetID,
			URL:            ref.URL,
			URLForDeletion: ref.DeletionKey,
			Position:       i,
			CreatedAt:      now,
		}
		urls[i] = ref.URL
	}
	if err := r.media.CreateBatch(c.Request.Context(), rows); err != nil {
		r.failStorage(c, "persist media", err)
		return nil, false
	}
	return urls, true
}

// purgeBlobs removes a target's stored blobs. Called before the rows go
// away; blob failures are logged, never surfaced, since the rows are the
// authority on what exists.
func (r *Router) purgeBlobs(c *gin.Context, targetType string, targetID int64) {
	if r.blobs == nil {
		return
	}
	rows, err := r.media.GetByTarget(c.Request.Context(), targetType, targetID)
	if err != nil {
		r.logger.Warn("failed to load media rows for purge",
			zap.String("target_type", targetType), zap.Int64("target_id", targetID), zap.Error(err))
		return
	}
	for _, row := range rows {
		if row.URLForDeletion == "" {
			continue
		}
		if err := r.blobs.Delete(c.Request.Context(), row.URLForDeletion); err != nil {
			r.logger.Warn("failed to delete blob",
				zap.String("key", row.URLForDeletion), zap.Error(err))
		}
	}
}

// projection assembles the static ContentItem a freshly written row will
// show as in feeds
func projection(id, parentID int64, author *models.User, title, body string, mediaURLs []string, createdAt, updatedAt time.Time) feed.ContentItem {
	return feed.ContentItem{
		ID:           id,
		ParentID:     parentID,
		AuthorID:     author.ID,
		AuthorName:   author.Nickname,
		AuthorAvatar: author.AvatarURL,
		Title:        title,
		Body:         body,
		MediaURLs:    mediaURLs,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}
