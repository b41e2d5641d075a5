package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// pageParam parses the page query parameter. Malformed or out-of-range
// values default to page 1 instead of rejecting the request.
func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// idParam parses a numeric path parameter
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
