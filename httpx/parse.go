package httpx

import (
	"github.com/gin-gonic/gin"
)

// Parse binds uri, query and json body into req.
// Uri and query binding failures are ignored since req may have no such tags;
// the body is bound only when present.
func Parse(c *gin.Context, req interface{}) error {
	_ = c.ShouldBindUri(req)
	_ = c.ShouldBindQuery(req)

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			return err
		}
	}

	return nil
}
