package http

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/auth"
)

const claimsKey = "claims"

type Authenticator interface {
	Authenticate(token string) (*auth.Claims, error)
}

// RequireAuth accepts "Authorization: Bearer <token>". A missing token is
// 401, a bad or expired one 403.
func RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			respondError(c, apierr.Unauthorized("Access token required"))
			return
		}
		claims, err := a.Authenticate(token)
		if err != nil {
			respondError(c, apierr.Forbidden("Invalid or expired token"))
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := currentClaims(c)
		if claims == nil {
			respondError(c, apierr.Unauthorized("Authentication required"))
			return
		}
		if !slices.Contains(roles, claims.Role) {
			respondError(c, apierr.Forbidden("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// userID is only called behind RequireAuth.
func userID(c *gin.Context) uint {
	if claims := currentClaims(c); claims != nil {
		return claims.UserID
	}
	return 0
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
