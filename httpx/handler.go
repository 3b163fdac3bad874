package httpx

import (
	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/validator"
	"github.com/gin-gonic/gin"
)

// HandlerFunc is a typed handler: Req is bound from uri, query and json tags
type HandlerFunc[Req any, Resp any] func(c *gin.Context, req *Req) (*Resp, error)

// Wrap binds and validates Req, calls handler and renders the outcome.
// The success envelope carries message "success".
func Wrap[Req any, Resp any](handler HandlerFunc[Req, Resp]) gin.HandlerFunc {
	return WrapWithMessage("success", handler)
}

// WrapWithMessage is Wrap with a custom success message
func WrapWithMessage[Req any, Resp any](message string, handler HandlerFunc[Req, Resp]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := Parse(c, &req); err != nil {
			HandleError(c, autherr.ErrValidation.Wrap(err))
			return
		}

		if validatableReq, ok := any(&req).(validator.Validatable); ok {
			if err := validator.ValidateRequest(validatableReq); err != nil {
				HandleError(c, err)
				return
			}
		}

		resp, err := handler(c, &req)
		if err != nil {
			HandleError(c, err)
			return
		}

		if resp == nil {
			OK(c, message, nil)
			return
		}
		OK(c, message, resp)
	}
}
