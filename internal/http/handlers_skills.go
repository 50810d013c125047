package http

import (
	"github.com/gin-gonic/gin"

	"vmxio.com/skillforge/internal/skills"
)

func ListSkills(svc *skills.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := svc.List(c.Request.Context(), userID(c), skills.ListFilter{
			Page:       queryInt(c, "page"),
			Limit:      queryInt(c, "limit"),
			Category:   c.Query("category"),
			Difficulty: c.Query("difficulty"),
			Search:     c.Query("search"),
			Sort:       c.Query("sort"),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", page)
	}
}

func GetSkill(svc *skills.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		skill, err := svc.Get(c.Request.Context(), userID(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", gin.H{"skill": skill})
	}
}

func EnrollSkill(svc *skills.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		enrollment, err := svc.Enroll(c.Request.Context(), userID(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, "Successfully enrolled in skill", gin.H{"enrollment": enrollment})
	}
}

func UpdateSkillProgress(svc *skills.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var in skills.ProgressInput
		if err := bindJSON(c, &in); err != nil {
			respondError(c, err)
			return
		}
		if err := svc.UpdateProgress(c.Request.Context(), userID(c), id, in); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Progress updated successfully", nil)
	}
}

func EnrolledSkills(svc *skills.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Enrolled(c.Request.Context(), userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", gin.H{"skills": list})
	}
}

func CreateSkill(svc *skills.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in skills.CreateInput
		if err := bindJSON(c, &in); err != nil {
			respondError(c, err)
			return
		}
		skill, err := svc.Create(c.Request.Context(), userID(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, "Skill created successfully", gin.H{"skill": skill})
	}
}
