package api

import (
	"errors"
	"net/http"

	"competition-voting/internal/domain/authz"
	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
	"competition-voting/internal/domain/vote"
	"competition-voting/internal/platform/apperr"
)

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		slogLogger.Error("request failed",
			"status", appErr.StatusCode(),
			"code", appErr.Code,
			"err", err,
		)
	}
	writeJSON(w, appErr.StatusCode(), appErr.Body())
}

func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	if appErr, ok := apperr.As(err); ok {
		return appErr
	}

	switch {
	// auth and users
	case errors.Is(err, user.ErrInvalidCredentials):
		return apperr.Unauthorized("invalid_credentials", "invalid credentials", err)
	case errors.Is(err, user.ErrEmailTaken):
		return apperr.Conflict("email_taken", "email already taken", err)
	case errors.Is(err, user.ErrMissingFields):
		return apperr.BadRequest("missing_fields", "full_name, email and password are required", err)
	case errors.Is(err, user.ErrInvalidRole):
		return apperr.BadRequest("invalid_role", "role must be REGULAR or ADMIN", err).OnField("role")
	case errors.Is(err, user.ErrUserNotFound):
		return apperr.NotFound("user_not_found", "user not found", err)
	case errors.Is(err, authz.ErrForbidden):
		return apperr.Forbidden("forbidden", "not allowed to perform this action", err)

	// competitions and options
	case errors.Is(err, competition.ErrCompetitionNotFound):
		return apperr.NotFound("competition_not_found", "competition not found", err)
	case errors.Is(err, competition.ErrOptionNotFound):
		return apperr.NotFound("option_not_found", "option not found", err)
	case errors.Is(err, competition.ErrTitleRequired):
		return apperr.BadRequest("title_required", "title is required", err).OnField("title")
	case errors.Is(err, competition.ErrDatesRequired):
		return apperr.BadRequest("dates_required", "start_time and end_time are required", err).OnField("start_time")
	case errors.Is(err, competition.ErrInvalidDateRange):
		return apperr.BadRequest("invalid_dates", "end_time must be after start_time", err).OnField("end_time")
	case errors.Is(err, competition.ErrOptionNameRequired):
		return apperr.BadRequest("option_name_required", "option name is required", err).OnField("name")

	// votes
	case errors.Is(err, vote.ErrCompetitionNotActive):
		return apperr.BadRequest("competition_not_active", "competition not active", err)
	case errors.Is(err, vote.ErrVotingClosed):
		return apperr.BadRequest("voting_closed", "voting not allowed at this time", err)
	case errors.Is(err, vote.ErrAlreadyVoted):
		return apperr.Conflict("already_voted", "already voted", err)

	case errors.Is(err, apperr.ErrUnavailable):
		return apperr.Unavailable("storage_unavailable", "storage temporarily unavailable", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
