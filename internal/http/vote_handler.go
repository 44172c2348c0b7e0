package api

import (
	"net/http"
	"time"

	"competition-voting/internal/domain/vote"
	"competition-voting/internal/metrics"
	"competition-voting/internal/worker"
)

// resultsResponse adds activity seen by this process since it started to the
// stored tally.
type resultsResponse struct {
	*vote.Tally
	RecentVotes int64      `json:"recent_votes"`
	LastVoteAt  *time.Time `json:"last_vote_at,omitempty"`
}

// @Summary     Vote for an option
// @Tags        votes
// @Security    BearerAuth
// @Produce     json
// @Param       id        path      string  true  "Competition ID"
// @Param       optionId  path      string  true  "Option ID"
// @Success     200       {object}  competition.Option
// @Failure     400       {object}  map[string]string  "invalid id, competition not active or outside voting window"
// @Failure     401       {object}  map[string]string  "unauthorized"
// @Failure     404       {object}  map[string]string  "competition or option not found"
// @Failure     409       {object}  map[string]string  "already voted"
// @Failure     429       {object}  map[string]string  "rate limited"
// @Failure     500       {object}  map[string]string  "server error"
// @Router      /competitions/{id}/options/{optionId}/vote [post]
func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	compID, optID, perr := parseOptionPath(r)
	if perr != nil {
		metrics.IncVote(perr.Code)
		errorResponse(w, perr)
		return
	}
	actor, _ := actorFromCtx(r)

	opt, err := h.voteSvc.CastVote(r.Context(), actor.ID, compID, optID)
	if err != nil {
		metrics.IncVote(mapError(err).Code)
		errorResponse(w, err)
		return
	}
	metrics.IncVote("accepted")

	worker.Publish(h.voteCh, worker.VoteEvent{
		CompetitionID: compID,
		OptionID:      optID,
		UserID:        actor.ID,
		At:            h.now(),
	})

	writeJSON(w, http.StatusOK, opt)
}

// @Summary     Competition results
// @Tags        votes
// @Produce     json
// @Param       id   path      string  true  "Competition ID"
// @Success     200  {object}  resultsResponse
// @Failure     400  {object}  map[string]string  "invalid competition id"
// @Failure     404  {object}  map[string]string  "not found"
// @Failure     500  {object}  map[string]string  "server error"
// @Router      /competitions/{id}/results [get]
func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	compID, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("competition", err))
		return
	}

	tally, err := h.voteSvc.Results(r.Context(), compID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	resp := resultsResponse{Tally: tally}
	if h.activity != nil {
		n, last := h.activity.Activity(compID)
		resp.RecentVotes = n
		if !last.IsZero() {
			resp.LastVoteAt = &last
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// @Summary     Reconcile vote counters
// @Tags        admin
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Competition ID"
// @Success     200  {object}  map[string][]vote.Drift
// @Failure     400  {object}  map[string]string  "invalid competition id"
// @Failure     403  {object}  map[string]string  "forbidden"
// @Failure     404  {object}  map[string]string  "not found"
// @Router      /admin/competitions/{id}/reconcile [post]
func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	compID, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("competition", err))
		return
	}
	actor, _ := actorFromCtx(r)

	drift, err := h.voteSvc.Reconcile(r.Context(), actor, compID)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drift": drift})
}
