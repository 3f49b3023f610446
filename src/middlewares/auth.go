package middlewares

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"tourledger/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func bearerToken(ctx *gin.Context) string {
	header := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AdminAuth accepts HS256 tokens signed with secret whose role claim is admin.
func AdminAuth(secret string) gin.HandlerFunc {
	jwtKey := []byte(secret)
	return func(ctx *gin.Context) {
		reqToken := bearerToken(ctx)
		if reqToken == "" || len(jwtKey) == 0 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims := &types.Claims{}
		tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
			return jwtKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			log.Printf("token error: %s\n", err.Error())
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenMalformed) {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if !tkn.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !claims.IsAdmin() {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		ctx.Set("uid", claims.UID)
		ctx.Set("role", claims.Role)
		ctx.Set("sub", claims.Subject)
	}
}
