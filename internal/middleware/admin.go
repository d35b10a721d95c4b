package middleware

import (
	"crypto/subtle"

	"github.com/GoPolymarket/tradegate/internal/config"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminMiddleware guards market administration. With no admin key
// configured every admin route is closed.
func AdminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || cfg.Auth.AdminKey == "" {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "admin key not configured", nil))
			c.Abort()
			return
		}
		got := c.GetHeader(HeaderAdminKey)
		if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Auth.AdminKey)) != 1 {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "invalid admin key", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
