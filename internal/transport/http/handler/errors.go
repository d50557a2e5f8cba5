package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"foerderscout/internal/app"
	"foerderscout/internal/transport/http/middleware"
	"foerderscout/internal/transport/http/response"
)

// writeError maps service errors to HTTP responses. fallback is the message used for 500s.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrEmptySearchQuery):
		response.Error(c, http.StatusBadRequest, response.CodeEmptySearchQuery, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		response.Error(c, http.StatusBadRequest, response.CodeEmailExists, err.Error())
	case errors.Is(err, app.ErrBudgetMismatch), errors.Is(err, app.ErrFundingExceedsGrant):
		response.Error(c, http.StatusBadRequest, response.CodeBudgetInvalid, err.Error())
	case errors.Is(err, app.ErrUnsupportedFile):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, err.Error())
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrUnknownSection):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrWrongPassword):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Current password is incorrect")
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrUserInactive):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrGrantNotFound),
		errors.Is(err, app.ErrApplicationNotFound),
		errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidStatusTransition),
		errors.Is(err, app.ErrApplicationLocked),
		errors.Is(err, app.ErrSectionsIncomplete):
		response.Error(c, http.StatusConflict, response.CodeConflict, err.Error())
	case errors.Is(err, app.ErrQueueUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeQueueUnavailable, err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func getUserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found in token")
		return uuid.Nil, false
	}

	userID, ok := userIDAny.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return uuid.Nil, false
	}
	return userID, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func badPayload(c *gin.Context) {
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
}
