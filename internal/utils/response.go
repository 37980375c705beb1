package utils

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// JSONError aborts the request with a standardized JSON error body.
func JSONError(c *gin.Context, logger *zap.Logger, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		if status >= 500 {
			logger.Error(message, zap.Error(err), zap.String("path", c.FullPath()))
		} else {
			resp.Details = err.Error()
			logger.Debug(message, zap.Error(err), zap.String("path", c.FullPath()))
		}
	}
	c.AbortWithStatusJSON(status, resp)
}
