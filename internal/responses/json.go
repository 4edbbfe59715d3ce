// Package responses writes the JSON envelope shared by every endpoint.
package responses

import "github.com/gin-gonic/gin"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Success(c *gin.Context, code int, data any, message string) {
	c.JSON(code, APIResponse{Status: StatusSuccess, Message: message, Data: data})
}

// Fail writes an error envelope. A nil err leaves the error field out, which
// is how internal failures are reported.
func Fail(c *gin.Context, code int, err error, message string) {
	resp := APIResponse{Status: StatusError, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(code, resp)
}

// Abort is Fail for middlewares: the remaining handlers are skipped.
func Abort(c *gin.Context, code int, err error, message string) {
	Fail(c, code, err, message)
	c.Abort()
}
