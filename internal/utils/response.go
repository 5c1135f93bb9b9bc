// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"

	"github.com/furnigo/furnigo-api/internal/apperrors"
	"github.com/furnigo/furnigo-api/internal/i18n"

	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyValidationInvalid, "request")
	}
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAuthRequired)
	}
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func ForbiddenResponse(c *gin.Context) {
	lang := GetLangFromContext(c)
	ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", i18n.T(lang, i18n.KeyAuthForbidden), nil)
}

func NotFoundResponse(c *gin.Context, resource string, details interface{}) {
	lang := GetLangFromContext(c)
	message := i18n.T(lang, resource+".not_found")
	ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", message, details)
}

func ConflictResponse(c *gin.Context, message string, details interface{}) {
	ErrorResponse(c, http.StatusConflict, "CONFLICT", message, details)
}

func InternalErrorResponse(c *gin.Context, message string, details interface{}) {
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyInternalError)
	}
	ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, details)
}

func ValidationErrorResponse(c *gin.Context, errors []ValidationError) {
	lang := GetLangFromContext(c)
	message := i18n.T(lang, i18n.KeyValidationInvalid, "input")
	ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", message, errors)
}

// ServiceErrorResponse maps the collaborator error kinds onto HTTP statuses.
// resource names the i18n prefix used for not-found messages.
func ServiceErrorResponse(c *gin.Context, resource string, err error, details interface{}) {
	lang := GetLangFromContext(c)

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		NotFoundResponse(c, resource, details)
	case errors.Is(err, apperrors.ErrInvalidInput):
		BadRequestResponse(c, err.Error(), details)
	case errors.Is(err, apperrors.ErrConflict):
		ConflictResponse(c, i18n.T(lang, i18n.KeyPostCreationInProgress), details)
	case errors.Is(err, apperrors.ErrTimeout):
		ErrorResponse(c, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", i18n.T(lang, i18n.KeyUpstreamTimeout), details)
	case errors.Is(err, apperrors.ErrTransport), errors.Is(err, apperrors.ErrPartialUpload):
		ErrorResponse(c, http.StatusBadGateway, "UPSTREAM_FAILURE", i18n.T(lang, i18n.KeyUpstreamUnavailable), details)
	default:
		InternalErrorResponse(c, "", details)
	}
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	SuccessResponseWithMeta(c, result.Data, gin.H{
		"pagination": gin.H{
			"page":          result.Page,
			"limit":         result.Limit,
			"has_next_page": result.HasNextPage,
		},
	})
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get("lang"); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return "en"
}

// GetUserUUIDFromContext returns the auth provider's identifier of the caller.
func GetUserUUIDFromContext(c *gin.Context) (string, bool) {
	if userUUID, exists := c.Get("user_uuid"); exists {
		if s, ok := userUUID.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func GetUserEmailFromContext(c *gin.Context) string {
	return c.GetString("user_email")
}
