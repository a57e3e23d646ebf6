package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/adapta-backend/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	message := "unexpected error"
	if err != nil {
		message = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: message, Code: code}})
}

func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// respondServiceError maps service sentinels to HTTP statuses so
// handlers stay free of status-code logic.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		RespondError(c, http.StatusUnauthorized, "not_authenticated", err)
	case errors.Is(err, services.ErrInvalidCredentials):
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", err)
	case errors.Is(err, services.ErrEmailAlreadyInUse):
		RespondError(c, http.StatusConflict, "email_in_use", err)
	case errors.Is(err, services.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrUnsupportedFormat):
		RespondError(c, http.StatusUnprocessableEntity, "unsupported_format", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
