package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"vmxio.com/skillforge/internal/apierr"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  []apierr.FieldError `json:"errors,omitempty"`
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func respondCreated(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

// respondError renders err. Internal errors keep their detail out of the
// body; it is attached to the context for the request logger instead.
func respondError(c *gin.Context, err error) {
	apiErr := apierr.From(err)
	if apiErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(apiErr.Status, envelope{Success: false, Message: apiErr.Message, Errors: apiErr.Fields})
}

var registerTagNames sync.Once

// useJSONFieldNames makes validator report json names ("skillId") instead
// of Go field names.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// bindStrictJSON is bindJSON that also rejects unknown keys.
func bindStrictJSON(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.Validation("Request body is required")
		}
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			field = strings.Trim(field, `"`)
			return apierr.Validation("Validation error", apierr.FieldError{Field: field, Message: "is not allowed"})
		}
		return apierr.Validation("Invalid request body")
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) *apierr.Error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apierr.Validation("Invalid request body")
	}
	fields := make([]apierr.FieldError, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, apierr.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return apierr.Validation("Validation error", fields...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func pathID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apierr.Validation("Invalid " + name)
	}
	return uint(id), nil
}

// queryInt returns 0 for missing or malformed values so callers fall back
// to their defaults.
func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}

func queryUint(c *gin.Context, key string) uint {
	v, err := strconv.ParseUint(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
