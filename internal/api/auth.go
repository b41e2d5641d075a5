package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const viewerKey = "viewer_id"

type authClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// authMiddleware resolves the caller to a numeric viewer id from a Bearer
// token. When required is false, anonymous callers pass through with viewer
// id 0 and simply get no viewer-scoped flags.
func authMiddleware(secret string, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
				return
			}
			c.Next()
			return
		}

		claims := &authClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid || claims.UserID == 0 {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.Next()
			return
		}

		c.Set(viewerKey, claims.UserID)
		c.Next()
	}
}

// viewerID returns the caller's user id, 0 for anonymous callers
func viewerID(c *gin.Context) int64 {
	if v, ok := c.Get(viewerKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
