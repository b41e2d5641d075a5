package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// uploadMedia streams one multipart file into the blob store and hands the
// client back the public URL plus the deletion key to reference in a later
// create or update request.
func (r *Router) uploadMedia(c *gin.Context) {
	if r.blobs == nil {
		abortWithError(c, NewError(http.StatusServiceUnavailable, "media storage not configured"))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, "missing file"))
		return
	}
	defer file.Close()

	result, err := r.blobs.Put(c.Request.Context(), file, header.Size,
		header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		r.logger.Error("blob upload failed", zap.String("file", header.Filename), zap.Error(err))
		abortWithError(c, NewError(http.StatusBadGateway, "upload failed"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"url":          result.URL,
		"deletion_key": result.DeletionKey,
	})
}
