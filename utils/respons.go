package utils

import (
	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status    bool        `json:"status"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"error_code,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	RespondErrorCode(c, code, "", err)
}

// RespondErrorCode writes a failure envelope with a machine readable code.
func RespondErrorCode(c *gin.Context, code int, errorCode string, err error) {
	c.JSON(code, JSONResponse{
		Status:    false,
		Message:   err.Error(),
		ErrorCode: errorCode,
	})
}
