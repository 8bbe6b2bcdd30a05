// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package apperr

import (
	"log"

	"github.com/gin-gonic/gin"
)

// Respond 将错误写为统一的 JSON 响应
func Respond(c *gin.Context, err error) {
	status := HTTPStatus(err)
	appErr := As(err)
	if appErr == nil {
		log.Printf("[API] %s %s unexpected error: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "INTERNAL_ERROR", "message": "Something went wrong, please try again"})
		return
	}

	if appErr.Internal != nil {
		log.Printf("[API] %s %s %s: %v", c.Request.Method, c.Request.URL.Path, appErr.Code, appErr.Internal)
	}

	body := gin.H{
		"error":     appErr.Code,
		"message":   appErr.Message,
		"kind":      appErr.Type.String(),
		"retryable": appErr.Retryable(),
	}
	if appErr.FileURL != "" {
		body["fileUrl"] = appErr.FileURL
	}
	c.JSON(status, body)
}
