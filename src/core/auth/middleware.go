package auth

import (
	"net/http"
	"strings"

	"parking-sign-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// ClientIDKey gin上下文中保存客户端ID的键
const ClientIDKey = "client_id"

// Middleware 校验 Authorization: Bearer <token>，失败返回401
func Middleware(at *AuthToken, logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		clientID, err := at.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			logger.Warn("认证token验证失败", map[string]interface{}{
				"error": err.Error(),
				"ip":    c.ClientIP(),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(ClientIDKey, clientID)
		c.Next()
	}
}
