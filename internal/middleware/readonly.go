package middleware

import (
	"net/http"
	"strings"

	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// ReadOnlyMiddleware rejects every mutation except cancellations, order
// hashing and admin calls.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		switch c.FullPath() {
		case "/v1/nonces/cancel", "/v1/cancel-before", "/v1/orders/hash":
			c.Next()
			return
		}
		if strings.HasPrefix(c.FullPath(), "/v1/admin") {
			c.Next()
			return
		}
		c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
		c.Abort()
	}
}
