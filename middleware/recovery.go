package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/KOMKZ/go-yogan-tokenauth/httpx"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery replaces gin.Recovery: panics are logged with their stack and
// answered with the generic 500 body, never with the panic value.
func Recovery() gin.HandlerFunc {
	return RecoveryWithLogger(nil)
}

// RecoveryWithLogger is Recovery writing to log (nil uses the "gin-error" module)
func RecoveryWithLogger(log *logger.CtxZapLogger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetLogger("gin-error")
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.ErrorCtx(c.Request.Context(), "panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.String("stack", string(debug.Stack())),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, httpx.Response{
					Message: "internal server error",
				})
			}
		}()

		c.Next()
	}
}
