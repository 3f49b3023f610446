package middlewares

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CronAuth guards scheduler-triggered routes. An empty secret leaves the
// route open.
func CronAuth(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if secret == "" {
			return
		}
		token := bearerToken(ctx)
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			log.Printf("[Cron] rejected request from %s\n", ctx.ClientIP())
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
	}
}
