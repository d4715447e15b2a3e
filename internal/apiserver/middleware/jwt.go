package middleware

import (
	"strings"

	"github.com/medlinkx/medlinkx/internal/auth/jwt"
	"github.com/medlinkx/medlinkx/internal/common/errorx"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding the validated *jwt.Claims
const ClaimsKey = "claims"

// JWTAuthMiddleware creates a middleware that validates JWT tokens
func JWTAuthMiddleware(jwtService *jwt.Service, errs *errorx.ErrorHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			errs.HandleError(c, errorx.ErrUnauthorized)
			return
		}

		// Check if the header has the Bearer prefix
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errs.HandleError(c, errorx.ErrUnauthorized)
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			errs.HandleError(c, errorx.ErrUnauthorized)
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// Claims returns the claims stored by JWTAuthMiddleware
func Claims(c *gin.Context) (*jwt.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}
