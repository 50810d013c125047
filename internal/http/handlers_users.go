package http

import (
	"github.com/gin-gonic/gin"

	"vmxio.com/skillforge/internal/achievements"
	"vmxio.com/skillforge/internal/users"
)

func UpdateProfile(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch users.ProfilePatch
		if err := bindStrictJSON(c, &patch); err != nil {
			respondError(c, err)
			return
		}
		user, err := svc.UpdateProfile(c.Request.Context(), userID(c), patch)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Profile updated successfully", gin.H{"user": user})
	}
}

func ChangePassword(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in users.PasswordChange
		if err := bindJSON(c, &in); err != nil {
			respondError(c, err)
			return
		}
		if err := svc.ChangePassword(c.Request.Context(), userID(c), in); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Password updated successfully", nil)
	}
}

func UserStats(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context(), userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", gin.H{"stats": stats})
	}
}

func UserAchievements(svc *achievements.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ForUser(c.Request.Context(), userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", gin.H{"achievements": list})
	}
}

func ListAchievements(svc *achievements.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", gin.H{"achievements": list})
	}
}
