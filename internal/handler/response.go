package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"otp_expense_tracker/internal/apperror"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError is one entry of a "Validation failed" response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": status < http.StatusBadRequest, "message": message})
}

// respondError maps classified errors to their status and message. Anything
// unclassified is logged and reported as a 500 with fallback.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	kind := apperror.KindOf(err)
	if kind == apperror.KindInternal {
		logger.Error(fallback, "error", err, "path", c.FullPath(), "request_id", c.GetString("requestID"))
		_ = c.Error(err)
	}
	respondMessage(c, apperror.HTTPStatus(kind), apperror.MessageOf(err, fallback))
}

func respondValidation(c *gin.Context, errs []FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Validation failed",
		"errors":  errs,
	})
}

// respondBindError reports a failed ShouldBind* call.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		respondValidation(c, out)
		return
	}
	respondValidation(c, []FieldError{{Field: "body", Message: "Malformed request body"}})
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "phone":
		return "Valid phone number is required"
	case "len":
		if field == "otp" {
			return "OTP must be 6 digits"
		}
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be a positive number", field)
	case "oneof":
		return fmt.Sprintf("Invalid %s, must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return "Valid email is required"
	}
	return fmt.Sprintf("%s is invalid", field)
}
