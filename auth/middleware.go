package auth

import (
	"collaborative-text-editor/internal/errors"
	"collaborative-text-editor/redis"
	"strings"

	"github.com/gin-gonic/gin"
)

// Middleware guards the REST routes. A token must carry a valid signature
// and still be present in the token store (logout revokes it).
func Middleware(verifier Verifier, tokens *redis.TokenStore) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := verifier.VerifyToken(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		exists, err := tokens.Exists(ctx.Request.Context(), token)
		if err != nil || !exists {
			ctx.Error(errors.Unauthorized("Token expired or not found", err))
			ctx.Abort()
			return
		}

		ctx.Set("user_id", claims.UserID)
		ctx.Set("user_name", claims.Username)
		ctx.Set("jwt_token", token)
		ctx.Next()
	}
}
