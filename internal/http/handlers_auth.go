package http

import (
	"github.com/gin-gonic/gin"

	"vmxio.com/skillforge/internal/auth"
)

func Register(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in auth.RegisterInput
		if err := bindJSON(c, &in); err != nil {
			respondError(c, err)
			return
		}
		session, err := svc.Register(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, "User registered successfully", session)
	}
}

func Login(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in auth.LoginInput
		if err := bindJSON(c, &in); err != nil {
			respondError(c, err)
			return
		}
		session, err := svc.Login(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Login successful", session)
	}
}

func Me(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Me(c.Request.Context(), userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", gin.H{"user": user})
	}
}

func RefreshToken(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := svc.Refresh(*currentClaims(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", gin.H{"token": token})
	}
}

func Logout(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Logout(c.Request.Context(), *currentClaims(c)); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Logged out successfully", nil)
	}
}
