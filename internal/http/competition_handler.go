package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"competition-voting/internal/domain/competition"
	"competition-voting/internal/platform/apperr"
)

type createCompetitionRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	IsActive    *bool      `json:"is_active"`
}

type updateCompetitionRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	IsActive    *bool      `json:"is_active"`
}

type updateStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// competitionView adds the derived "open now" flag to a competition.
type competitionView struct {
	competition.Competition
	AcceptingVotes bool `json:"accepting_votes"`
}

type competitionListResponse struct {
	Items     []competitionView `json:"items"`
	NextAfter *uuid.UUID        `json:"next_after,omitempty"`
}

type competitionResponse struct {
	Competition competitionView      `json:"competition"`
	Options     []competition.Option `json:"options"`
}

func (h *Handler) view(c competition.Competition) competitionView {
	return competitionView{Competition: c, AcceptingVotes: c.AcceptsVotesAt(h.now())}
}

// @Summary     List competitions
// @Tags        competitions
// @Produce     json
// @Param       active  query     bool    false  "Filter by active flag"
// @Param       after   query     string  false  "Cursor: id of the last item of the previous page"
// @Param       limit   query     int     false  "Page size (1..100, default 20)"
// @Success     200     {object}  competitionListResponse
// @Failure     400     {object}  map[string]string  "invalid query"
// @Failure     500     {object}  map[string]string  "server error"
// @Router      /competitions [get]
func (h *Handler) handleListCompetitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f competition.ListFilter

	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			errorResponse(w, apperr.BadRequest("invalid_input", "active must be a boolean", err).OnField("active"))
			return
		}
		f.Active = &active
	}
	if v := q.Get("after"); v != "" {
		after, err := uuid.Parse(v)
		if err != nil {
			errorResponse(w, apperr.BadRequest("invalid_input", "invalid after cursor", err).OnField("after"))
			return
		}
		f.After = after
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			errorResponse(w, apperr.BadRequest("invalid_input", "limit must be a positive integer", err).OnField("limit"))
			return
		}
		f.Limit = limit
	}

	page, err := h.compSvc.List(r.Context(), f)
	if err != nil {
		errorResponse(w, err)
		return
	}

	resp := competitionListResponse{
		Items:     make([]competitionView, 0, len(page.Items)),
		NextAfter: page.NextAfter,
	}
	for _, c := range page.Items {
		resp.Items = append(resp.Items, h.view(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// @Summary     Get competition
// @Tags        competitions
// @Produce     json
// @Param       id   path      string  true  "Competition ID"
// @Success     200  {object}  competitionResponse
// @Failure     400  {object}  map[string]string  "invalid id"
// @Failure     404  {object}  map[string]string  "not found"
// @Failure     500  {object}  map[string]string  "server error"
// @Router      /competitions/{id} [get]
func (h *Handler) handleGetCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("competition", err))
		return
	}

	c, opts, err := h.compSvc.Get(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, competitionResponse{Competition: h.view(*c), Options: opts})
}

// @Summary     Competition details with voters
// @Tags        competitions
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Competition ID"
// @Success     200  {object}  competition.Details
// @Failure     400  {object}  map[string]string  "invalid id"
// @Failure     401  {object}  map[string]string  "unauthorized"
// @Failure     403  {object}  map[string]string  "forbidden"
// @Failure     404  {object}  map[string]string  "not found"
// @Router      /competitions/{id}/details [get]
func (h *Handler) handleCompetitionDetails(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("competition", err))
		return
	}
	actor, _ := actorFromCtx(r)

	d, err := h.compSvc.Details(r.Context(), actor, id)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// @Summary     Create competition
// @Tags        competitions
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       request  body      createCompetitionRequest  true  "Competition payload"
// @Success     201      {object}  competition.Competition
// @Failure     400      {object}  map[string]string  "validation error"
// @Failure     401      {object}  map[string]string  "unauthorized"
// @Failure     500      {object}  map[string]string  "server error"
// @Router      /competitions [post]
func (h *Handler) handleCreateCompetition(w http.ResponseWriter, r *http.Request) {
	var req createCompetitionRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	actor, _ := actorFromCtx(r)

	c, err := h.compSvc.Create(r.Context(), actor, competition.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsActive:    req.IsActive,
	})
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// @Summary     Update competition
// @Tags        competitions
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id       path      string                    true  "Competition ID"
// @Param       request  body      updateCompetitionRequest  true  "Fields to change"
// @Success     200      {object}  competition.Competition
// @Failure     400      {object}  map[string]string  "validation error"
// @Failure     403      {object}  map[string]string  "forbidden"
// @Failure     404      {object}  map[string]string  "not found"
// @Router      /competitions/{id} [put]
func (h *Handler) handleUpdateCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("competition", err))
		return
	}
	var req updateCompetitionRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	actor, _ := actorFromCtx(r)

	c, err := h.compSvc.Update(r.Context(), actor, id, competition.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsActive:    req.IsActive,
	})
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// @Summary     Activate or deactivate competition
// @Tags        competitions
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id       path      string               true  "Competition ID"
// @Param       request  body      updateStatusRequest  true  "New status"
// @Success     200      {object}  competition.Competition
// @Failure     400      {object}  map[string]string  "invalid body"
// @Failure     403      {object}  map[string]string  "forbidden"
// @Failure     404      {object}  map[string]string  "not found"
// @Router      /competitions/{id}/status [patch]
func (h *Handler) handleUpdateCompetitionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("competition", err))
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	if req.IsActive == nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "is_active is required", nil).OnField("is_active"))
		return
	}
	actor, _ := actorFromCtx(r)

	c, err := h.compSvc.SetActive(r.Context(), actor, id, *req.IsActive)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// @Summary     Delete competition
// @Tags        competitions
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Competition ID"
// @Success     200  {object}  map[string]string
// @Failure     400  {object}  map[string]string  "invalid id"
// @Failure     403  {object}  map[string]string  "forbidden"
// @Failure     404  {object}  map[string]string  "not found"
// @Router      /competitions/{id} [delete]
func (h *Handler) handleDeleteCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("competition", err))
		return
	}
	actor, _ := actorFromCtx(r)

	if err := h.compSvc.Delete(r.Context(), actor, id); err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "competition deleted"})
}
