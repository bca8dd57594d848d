package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"attire-api/internal/domain"
	"attire-api/internal/service"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"

	genericErrorMessage = "Something went wrong"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UserData wraps the profile the way clients expect it.
type UserData struct {
	User domain.Profile `json:"user"`
}

// AuthResponse is returned by every route that signs the user in.
type AuthResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   UserData `json:"data"`
}

// UserResponse carries a profile without a token.
type UserResponse struct {
	Status string   `json:"status"`
	Data   UserData `json:"data"`
}

// MessageResponse acknowledges an action with a message.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindInvalidResetToken:
		return http.StatusBadRequest
	case service.KindAuthentication:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the envelope. Operational errors keep their message;
// anything else is logged and hidden behind a generic one.
func (h *Handler) writeError(c *gin.Context, err error) {
	var svcErr *service.Error
	kind := service.KindOf(err)
	if kind == 0 {
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("unexpected error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Status: statusError, Message: genericErrorMessage})
		return
	}

	status := statusForKind(kind)
	body := ErrorResponse{Status: statusFail, Message: err.Error()}
	if status >= http.StatusInternalServerError {
		body.Status = statusError
		if errors.As(err, &svcErr) && svcErr.Err != nil {
			h.logger.WithError(svcErr.Err).WithField("path", c.FullPath()).Error(svcErr.Message)
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Status: statusFail, Message: message})
}
