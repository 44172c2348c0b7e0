package api

import (
	"net/http"

	"github.com/google/uuid"

	"competition-voting/internal/domain/competition"
	"competition-voting/internal/platform/apperr"
)

type createOptionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type updateOptionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
}

func parseOptionPath(r *http.Request) (competitionID, optionID uuid.UUID, err *apperr.AppError) {
	competitionID, perr := parseIDParam(r, "id")
	if perr != nil {
		return uuid.Nil, uuid.Nil, badID("competition", perr)
	}
	optionID, perr = parseIDParam(r, "optionId")
	if perr != nil {
		return uuid.Nil, uuid.Nil, badID("option", perr)
	}
	return competitionID, optionID, nil
}

// @Summary     Add option
// @Tags        options
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id       path      string               true  "Competition ID"
// @Param       request  body      createOptionRequest  true  "Option payload"
// @Success     201      {object}  competition.Option
// @Failure     400      {object}  map[string]string  "validation error"
// @Failure     403      {object}  map[string]string  "forbidden"
// @Failure     404      {object}  map[string]string  "not found"
// @Router      /competitions/{id}/options [post]
func (h *Handler) handleAddOption(w http.ResponseWriter, r *http.Request) {
	compID, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("competition", err))
		return
	}
	var req createOptionRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	actor, _ := actorFromCtx(r)

	o, err := h.compSvc.AddOption(r.Context(), actor, compID, competition.OptionInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// @Summary     Update option
// @Tags        options
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id        path      string               true  "Competition ID"
// @Param       optionId  path      string               true  "Option ID"
// @Param       request   body      updateOptionRequest  true  "Fields to change"
// @Success     200       {object}  competition.Option
// @Failure     400       {object}  map[string]string  "validation error"
// @Failure     403       {object}  map[string]string  "forbidden"
// @Failure     404       {object}  map[string]string  "not found"
// @Router      /competitions/{id}/options/{optionId} [put]
func (h *Handler) handleUpdateOption(w http.ResponseWriter, r *http.Request) {
	compID, optID, perr := parseOptionPath(r)
	if perr != nil {
		errorResponse(w, perr)
		return
	}
	var req updateOptionRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	actor, _ := actorFromCtx(r)

	o, err := h.compSvc.UpdateOption(r.Context(), actor, compID, optID, competition.OptionUpdate{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// @Summary     Delete option
// @Tags        options
// @Security    BearerAuth
// @Produce     json
// @Param       id        path      string  true  "Competition ID"
// @Param       optionId  path      string  true  "Option ID"
// @Success     200       {object}  map[string]string
// @Failure     400       {object}  map[string]string  "invalid id"
// @Failure     403       {object}  map[string]string  "forbidden"
// @Failure     404       {object}  map[string]string  "not found"
// @Router      /competitions/{id}/options/{optionId} [delete]
func (h *Handler) handleDeleteOption(w http.ResponseWriter, r *http.Request) {
	compID, optID, perr := parseOptionPath(r)
	if perr != nil {
		errorResponse(w, perr)
		return
	}
	actor, _ := actorFromCtx(r)

	if err := h.compSvc.DeleteOption(r.Context(), actor, compID, optID); err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "option deleted"})
}
