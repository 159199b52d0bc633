package response

import "github.com/gin-gonic/gin"

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// Received acknowledges a webhook delivery. The gateway only looks at the
// status code and stops retrying on any non-5xx answer, so every terminal
// outcome goes through here.
func Received(c *gin.Context, statusCode int) {
	c.JSON(statusCode, gin.H{"received": true})
}
