package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/chartrank/internal/domain/model"
)

// UsersHandler manages users and their totals.
type UsersHandler struct {
	deps UserDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

type overrideRequest struct {
	Points float64 `json:"points"`
}

// HandleCreateUser handles POST /users.
func (h *UsersHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var u model.User
	if err := decodeJSON(r, &u); err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.RegisterUser(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// HandleGetTotal handles GET /users/{userID}/total.
func (h *UsersHandler) HandleGetTotal(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.GetUserTotal(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleSetOverride handles PUT /users/{userID}/total/override.
func (h *UsersHandler) HandleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := h.deps.SetDirectTotal(r.Context(), chi.URLParam(r, "userID"), req.Points)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleClearOverride handles DELETE /users/{userID}/total/override.
func (h *UsersHandler) HandleClearOverride(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.ClearDirectTotal(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
