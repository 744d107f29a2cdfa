package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/notedex/notedex/internal/pkg/errcode"
	"github.com/notedex/notedex/internal/pkg/jwt"
	"github.com/notedex/notedex/internal/pkg/response"
)

const ContextUserIDKey = "user_id"

// JWTAuth resolves the calling user. The RAG core itself never verifies
// credentials beyond this token check; it just needs a trusted user id.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}
