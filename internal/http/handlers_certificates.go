package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/certificates"
)

func ListCertificates(svc *certificates.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := svc.List(c.Request.Context(), userID(c), c.Query("status"), queryInt(c, "page"), queryInt(c, "limit"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", page)
	}
}

func GetCertificate(svc *certificates.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		cert, err := svc.Get(c.Request.Context(), userID(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "", gin.H{"certificate": cert})
	}
}

func GenerateCertificate(svc *certificates.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in certificates.GenerateInput
		if err := bindJSON(c, &in); err != nil {
			respondError(c, err)
			return
		}
		issued, err := svc.Generate(c.Request.Context(), userID(c), in.ExamID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, "Certificate generated successfully", issued)
	}
}

// VerifyCertificate is public. Its body carries a top-level "valid" flag,
// false on 404 as well.
func VerifyCertificate(svc *certificates.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Verify(c.Request.Context(), c.Param("credentialId"))
		if err != nil {
			apiErr := apierr.From(err)
			if apiErr.Status != http.StatusNotFound {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": apiErr.Message, "valid": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"valid":   res.Valid,
			"data":    gin.H{"certificate": res.Certificate},
		})
	}
}

func RevokeCertificate(svc *certificates.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		cert, err := svc.Revoke(c.Request.Context(), userID(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Certificate revoked", gin.H{"certificate": cert})
	}
}
