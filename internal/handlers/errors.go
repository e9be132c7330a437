package handlers

import (
	"errors"

	"github.com/classtask/taskmaster/backend/internal/services"
	"github.com/classtask/taskmaster/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

// respondServiceError maps service-layer sentinel errors onto HTTP
// statuses. Anything unrecognized is a 500.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUserDisabled),
		errors.Is(err, services.ErrProfileMissing):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrAlreadyInGroup),
		errors.Is(err, services.ErrAlreadyReviewed),
		errors.Is(err, services.ErrGroupInUse):
		response.Conflict(c, err.Error())
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrGroupNotFound),
		errors.Is(err, services.ErrSubmissionNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrNotProjectOwner),
		errors.Is(err, services.ErrNotGroupMember),
		errors.Is(err, services.ErrNotStudentAccount):
		response.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrPasswordMismatch),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrEmptySubmission):
		response.BadRequest(c, err.Error())
	default:
		response.Error(c, err)
	}
}
