// Package httpx renders JSON envelopes and maps errors to status codes
package httpx

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/errcode"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope of every JSON body.
// Failures carry only a message; successes carry a message and data.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// OK writes 200 with message and data
func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Message: message, Data: data})
}

// OkJson writes 200 with a generic success message
func OkJson(c *gin.Context, data interface{}) {
	OK(c, "success", data)
}

// NoRouteHandler renders unknown routes as 404
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Message: "route not found: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// NoMethodHandler renders unsupported methods as 405
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{
			Message: "method not allowed: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// HandleError writes the response for err.
// Tagged errors use their own status and message; anything else is a 500
// whose cause stays in the logs.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, body := render(c, err)
	c.JSON(status, body)
}

// Abort is HandleError for middleware: the chain stops after the response
func Abort(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, body := render(c, err)
	c.AbortWithStatusJSON(status, body)
}

func render(c *gin.Context, err error) (int, Response) {
	ctx := c.Request.Context()
	policy := policyFrom(c)

	layered, ok := errcode.From(err)
	if !ok {
		layered = autherr.ErrInternal.Wrap(err)
	}

	if policy.shouldLog(layered.HTTPStatus()) {
		fields := []zap.Field{
			zap.Int("error_code", layered.Code()),
			zap.String("error_msg", layered.Message()),
			zap.String("path", c.Request.URL.Path),
		}
		if policy.withCause {
			fields = append(fields, zap.Error(err))
		}

		log := logger.GetLogger("httpx")
		switch {
		case layered.HTTPStatus() >= http.StatusInternalServerError:
			log.ErrorCtx(ctx, "request failed", fields...)
		case policy.warn:
			log.WarnCtx(ctx, "request rejected", fields...)
		default:
			log.DebugCtx(ctx, "request rejected", fields...)
		}
	}

	body := Response{Message: layered.Message()}
	if data := layered.Data(); len(data) > 0 {
		body.Data = data
	}
	return layered.HTTPStatus(), body
}
