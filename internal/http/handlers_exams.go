package http

import (
	"github.com/gin-gonic/gin"

	"vmxio.com/skillforge/internal/exams"
)

func CreateExam(svc *exams.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in exams.CreateInput
		if err := bindJSON(c, &in); err != nil {
			respondError(c, err)
			return
		}
		res, err := svc.Create(c.Request.Context(), userID(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, "Exam created successfully", res)
	}
}

func ListExams(svc *exams.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := svc.List(c.Request.Context(), userID(c), exams.ListFilter{
			Page:       queryInt(c, "page"),
			Limit:      queryInt(c, "limit"),
			Status:     c.Query("status"),
			Difficulty: c.Query("difficulty"),
			SkillID:    queryUint(c, "skillId"),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", page)
	}
}

func GetExam(svc *exams.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		detail, err := svc.Get(c.Request.Context(), userID(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", detail)
	}
}

func StartExam(svc *exams.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		exam, err := svc.Start(c.Request.Context(), userID(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Exam started", gin.H{"exam": exam})
	}
}

func SubmitExam(svc *exams.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var in exams.SubmitInput
		if err := bindJSON(c, &in); err != nil {
			respondError(c, err)
			return
		}
		res, err := svc.Submit(c.Request.Context(), userID(c), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Exam submitted successfully", res)
	}
}

func ExamResults(svc *exams.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		res, err := svc.Results(c.Request.Context(), userID(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", res)
	}
}
