package api

import (
	"net/http"

	"competition-voting/internal/domain/user"
	"competition-voting/internal/platform/apperr"
)

type updateRoleRequest struct {
	Role string `json:"role"`
}

// @Summary     Current user profile
// @Tags        users
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  user.User
// @Failure     401  {object}  map[string]string  "unauthorized"
// @Failure     404  {object}  map[string]string  "user no longer exists"
// @Router      /users/me [get]
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromCtx(r)
	u, err := h.userSvc.GetByID(r.Context(), actor.ID)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// @Summary     Update current user profile
// @Description Empty fields keep their current value.
// @Tags        users
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       request  body      user.ProfileUpdate  true  "Profile changes"
// @Success     200      {object}  user.User
// @Failure     400      {object}  map[string]string  "invalid body"
// @Failure     404      {object}  map[string]string  "user no longer exists"
// @Failure     409      {object}  map[string]string  "email already taken"
// @Router      /users/me [put]
func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req user.ProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	actor, _ := actorFromCtx(r)
	u, err := h.userSvc.UpdateProfile(r.Context(), actor.ID, req)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// @Summary     List users
// @Tags        admin
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}   user.User
// @Failure     403  {object}  map[string]string  "forbidden"
// @Failure     500  {object}  map[string]string  "server error"
// @Router      /admin/users [get]
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userSvc.List(r.Context())
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// @Summary     Get user
// @Tags        admin
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "User ID"
// @Success     200  {object}  user.User
// @Failure     400  {object}  map[string]string  "invalid id"
// @Failure     403  {object}  map[string]string  "forbidden"
// @Failure     404  {object}  map[string]string  "not found"
// @Router      /admin/users/{id} [get]
func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("user", err))
		return
	}

	actor, _ := actorFromCtx(r)
	u, err := h.userSvc.Get(r.Context(), actor, id)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// @Summary     Update user role
// @Tags        admin
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id       path      string             true  "User ID"
// @Param       request  body      updateRoleRequest  true  "New role (REGULAR or ADMIN)"
// @Success     200      {object}  user.User
// @Failure     400      {object}  map[string]string  "invalid id, body or role"
// @Failure     403      {object}  map[string]string  "forbidden"
// @Failure     404      {object}  map[string]string  "not found"
// @Router      /admin/users/{id}/role [put]
func (h *Handler) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("user", err))
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	actor, _ := actorFromCtx(r)
	u, err := h.userSvc.UpdateRole(r.Context(), actor, id, user.Role(req.Role))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// @Summary     Delete user
// @Tags        admin
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "User ID"
// @Success     200  {object}  map[string]string
// @Failure     400  {object}  map[string]string  "invalid id"
// @Failure     403  {object}  map[string]string  "forbidden"
// @Failure     404  {object}  map[string]string  "not found"
// @Router      /admin/users/{id} [delete]
func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, badID("user", err))
		return
	}

	actor, _ := actorFromCtx(r)
	if err := h.userSvc.Delete(r.Context(), actor, id); err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
