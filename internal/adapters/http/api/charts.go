package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/pivot"
)

// ChartsHandler serves chart listings and per-unit rankings.
type ChartsHandler struct {
	deps ChartDependencies
}

// NewChartsHandler creates a new charts handler.
func NewChartsHandler(deps ChartDependencies) *ChartsHandler {
	return &ChartsHandler{deps: deps}
}

// HandleListCharts handles GET /charts?date=&exclude_limited=&exclude_not_yet_added=&order=.
func (h *ChartsHandler) HandleListCharts(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_charts"
	p, err := h.pivot(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	f := h.deps.DefaultFilters()
	if f.ExcludeLimited, err = boolParam(op, q.Get("exclude_limited"), f.ExcludeLimited); err != nil {
		writeError(w, err)
		return
	}
	if f.ExcludeNotYetAdded, err = boolParam(op, q.Get("exclude_not_yet_added"), f.ExcludeNotYetAdded); err != nil {
		writeError(w, err)
		return
	}
	switch o := chart.Order(q.Get("order")); o {
	case "":
	case chart.OrderByEra, chart.OrderByNumber:
		f.Order = o
	default:
		writeError(w, badRequest(op, fmt.Errorf("unknown order %q", o)))
		return
	}

	views, err := h.deps.ListActiveCharts(r.Context(), p, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pivot": p.String(), "charts": views})
}

// HandleGetChart handles GET /charts/{chartID}/{difficulty}?date=.
func (h *ChartsHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	p, err := h.pivot(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := chart.ParseDifficulty(chi.URLParam(r, "difficulty"))
	if err != nil {
		writeError(w, err)
		return
	}
	cell, err := h.deps.ResolveChartDisplay(r.Context(), p, chi.URLParam(r, "chartID"), d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cell)
}

// HandleUnitRanking handles GET /units/{unitID}/ranking.
func (h *ChartsHandler) HandleUnitRanking(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")
	entries, err := h.deps.UnitRanking(r.Context(), unitID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unit_id": unitID, "entries": entries})
}

func (h *ChartsHandler) pivot(r *http.Request) (pivot.Date, error) {
	return h.deps.ParsePivot(r.URL.Query().Get("date"))
}

func boolParam(op, raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, badRequest(op, fmt.Errorf("invalid boolean %q", raw))
	}
	return v, nil
}
