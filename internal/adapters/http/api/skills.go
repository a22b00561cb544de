package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/scoring"
)

// SkillsHandler manages skill records.
type SkillsHandler struct {
	deps SkillDependencies
}

// NewSkillsHandler creates a new skills handler.
func NewSkillsHandler(deps SkillDependencies) *SkillsHandler {
	return &SkillsHandler{deps: deps}
}

type skillResponse struct {
	UserID string `json:"user_id"`
	UnitID string `json:"unit_id"`
	scoring.Result
}

// HandleListSkills handles GET /users/{userID}/skills.
func (h *SkillsHandler) HandleListSkills(w http.ResponseWriter, r *http.Request) {
	recs, err := h.deps.ListUserSkills(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandlePutSkill handles PUT /users/{userID}/skills/{unitID}. The body is a
// raw input: {"tier": "AAA"} or {"score": 950}.
func (h *SkillsHandler) HandlePutSkill(w http.ResponseWriter, r *http.Request) {
	var in model.RawInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	userID, unitID := chi.URLParam(r, "userID"), chi.URLParam(r, "unitID")
	res, err := h.deps.SubmitSkill(r.Context(), userID, unitID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, skillResponse{UserID: userID, UnitID: unitID, Result: res})
}

// HandleDeleteSkill handles DELETE /users/{userID}/skills/{unitID}.
func (h *SkillsHandler) HandleDeleteSkill(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.RemoveSkill(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "unitID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
