package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/content-pipeline/internal/errors"
	"github.com/yukikurage/content-pipeline/internal/logging"
	"github.com/yukikurage/content-pipeline/internal/middleware"
	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/services"
	"github.com/yukikurage/content-pipeline/internal/workflow"
)

// respondDomainError maps channel, task and analytics errors to API errors.
func respondDomainError(c *gin.Context, err error) {
	var required *workflow.RequiredFieldsError
	var fieldPerm *workflow.FieldPermissionError

	switch {
	case errors.As(err, &required):
		apierrors.UnprocessableEntity(c, apierrors.ErrCodeRequiredFieldsMissing, err.Error(), gin.H{
			"column_id": required.ColumnID,
			"fields":    required.Fields,
		})
	case errors.As(err, &fieldPerm):
		apierrors.ForbiddenWithDetails(c, err.Error(), gin.H{
			"field_id":   fieldPerm.FieldID,
			"field_name": fieldPerm.FieldName,
		})
	case errors.Is(err, workflow.ErrTaskNotFound),
		errors.Is(err, workflow.ErrChannelNotFound),
		errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, workflow.ErrColumnNotEmpty):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeColumnNotEmpty, err.Error())
	case errors.Is(err, workflow.ErrAlreadyTerminal):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeAlreadyTerminal, err.Error())
	case errors.Is(err, services.ErrAlreadyMember):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, workflow.ErrForbidden),
		errors.Is(err, services.ErrNotTaskCreator),
		errors.Is(err, services.ErrCannotCreateChannel),
		errors.Is(err, services.ErrRoleChangeForbidden):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, workflow.ErrInvalidColumn),
		errors.Is(err, workflow.ErrNotInTerminalColumn),
		errors.Is(err, workflow.ErrNoColumns),
		errors.Is(err, workflow.ErrInvalidFieldValue),
		errors.Is(err, workflow.ErrUnknownField),
		errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTitleEmpty),
		errors.Is(err, services.ErrChannelArchived),
		errors.Is(err, services.ErrInvalidAssignee),
		errors.Is(err, services.ErrInvalidLink),
		errors.Is(err, services.ErrChannelNameRequired),
		errors.Is(err, services.ErrUnknownUser),
		errors.Is(err, services.ErrNotMember),
		errors.Is(err, services.ErrCannotRemoveManager),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidDateRange),
		errors.Is(err, services.ErrAINoTasksGenerated),
		errors.Is(err, services.ErrAINoValidTasks):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrAIServiceNotConfigured),
		errors.Is(err, services.ErrAIUnavailable):
		apierrors.ServiceUnavailable(c, err.Error())
	default:
		logging.Logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		apierrors.InternalError(c, "Internal server error")
	}
}

// currentUser returns the authenticated user, responding 401 when missing.
func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return nil, false
	}
	return user, true
}
