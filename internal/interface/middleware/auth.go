package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/authorization/pkg/helpers"
	"github.com/clinicore/authorization/pkg/response"
)

const (
	CtxAccountIDKey = "accountID"
	CtxRoleKey      = "accountRole"
)

// Auth verifies the presented access token (Authorization header first, then
// the access cookie) and injects the account id and role into the context.
// Parse or signature failures are always 401, never treated as anonymous.
func Auth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid access token", nil)
			c.Abort()
			return
		}
		c.Set(CtxAccountIDKey, claims.Subject)
		c.Set(CtxRoleKey, claims.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return h
	}
	if t, err := c.Cookie("access_token"); err == nil {
		return t
	}
	return ""
}
