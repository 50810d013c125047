package http

import (
	"github.com/gin-gonic/gin"

	"vmxio.com/skillforge/internal/analytics"
)

func Dashboard(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondOK(c, "", svc.Dashboard(c.Request.Context(), userID(c)))
	}
}

func Performance(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Performance(c.Request.Context(), userID(c), analytics.PerformanceFilter{
			Timeframe:  c.Query("timeframe"),
			SkillID:    queryUint(c, "skillId"),
			Difficulty: c.Query("difficulty"),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", res)
	}
}

func SkillsAnalytics(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Skills(c.Request.Context(), userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", res)
	}
}

func Leaderboard(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Leaderboard(c.Request.Context(), analytics.LeaderboardFilter{
			Timeframe: c.Query("timeframe"),
			Category:  c.Query("category"),
			Limit:     queryInt(c, "limit"),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", res)
	}
}
