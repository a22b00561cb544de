package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/chartrank/internal/adapters/http/api"
	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/pivot"
	"github.com/okian/chartrank/internal/domain/scoring"
	"github.com/okian/chartrank/internal/domain/types"
	"github.com/okian/chartrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDeps records calls and returns canned values.
type mockDeps struct {
	parser pivot.Parser

	lastPivot   pivot.Date
	lastFilters chart.Filters
	lastInput   model.RawInput
	lastPoints  float64

	charts []types.ChartView
	topN   []types.Entry
	users  map[string]bool

	submitErr error
	topNErr   error
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		parser: pivot.Parser{Low: time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)},
		users:  map[string]bool{"u1": true},
		charts: []types.ChartView{{ID: "dm01", Title: "Song"}},
		topN:   []types.Entry{{Rank: 1, UserID: "u1", Points: 555}, {Rank: 2, UserID: "u2", Points: 340}},
	}
}

func (m *mockDeps) ParsePivot(raw string) (pivot.Date, error) { return m.parser.Parse(raw) }

func (m *mockDeps) DefaultFilters() chart.Filters {
	return chart.Filters{Order: chart.OrderByEra}
}

func (m *mockDeps) ResolveChartDisplay(_ context.Context, p pivot.Date, chartID string, d chart.Difficulty) (types.ChartCell, error) {
	m.lastPivot = p
	if chartID != "dm01" {
		return types.ChartCell{}, errs.New("mock", errs.KindNotFound, "chart %q not found", chartID)
	}
	return types.ChartCell{ChartID: chartID, Difficulty: d.Code(), Level: "12", Notes: "950", Exists: true}, nil
}

func (m *mockDeps) ListActiveCharts(_ context.Context, p pivot.Date, f chart.Filters) ([]types.ChartView, error) {
	m.lastPivot, m.lastFilters = p, f
	return m.charts, nil
}

func (m *mockDeps) UnitRanking(_ context.Context, unitID string) ([]model.UnitRankEntry, error) {
	if unitID != "dm01:MAS" {
		return nil, errs.New("mock", errs.KindNotFound, "unit %q not found", unitID)
	}
	return []model.UnitRankEntry{{Rank: 1, UserID: "u1", Points: 340, Tier: "AAA"}}, nil
}

func (m *mockDeps) RegisterUser(_ context.Context, u model.User) error {
	if u.ID == "" {
		return errs.Validation("mock", map[string]string{"id": "is required"})
	}
	if m.users[u.ID] {
		return errs.New("mock", errs.KindConflict, "user %q already exists", u.ID)
	}
	m.users[u.ID] = true
	return nil
}

func (m *mockDeps) GetUserTotal(_ context.Context, userID string) (model.UserTotal, error) {
	if !m.users[userID] {
		return model.UserTotal{}, errs.New("mock", errs.KindNotFound, "user %q not found", userID)
	}
	return model.UserTotal{UserID: userID, Points: 555}, nil
}

func (m *mockDeps) SetDirectTotal(_ context.Context, userID string, points float64) (model.UserTotal, error) {
	m.lastPoints = points
	if points < 0 {
		return model.UserTotal{}, errs.Validation("mock", map[string]string{"points": "must be at least 0"})
	}
	return model.UserTotal{UserID: userID, Points: points, Direct: true}, nil
}

func (m *mockDeps) ClearDirectTotal(_ context.Context, userID string) (model.UserTotal, error) {
	return model.UserTotal{UserID: userID, Points: 555}, nil
}

func (m *mockDeps) ListUserSkills(_ context.Context, userID string) ([]model.SkillRecord, error) {
	return []model.SkillRecord{{UserID: userID, UnitID: "dm01:MAS", Points: 340}}, nil
}

func (m *mockDeps) SubmitSkill(_ context.Context, _, _ string, in model.RawInput) (scoring.Result, error) {
	m.lastInput = in
	if m.submitErr != nil {
		return scoring.Result{}, m.submitErr
	}
	return scoring.Result{Points: 340, Breakdown: scoring.Breakdown{Tier: in.Tier, Multiplier: 3.4, Base: 100}}, nil
}

func (m *mockDeps) RemoveSkill(_ context.Context, _, unitID string) error {
	if unitID != "dm01:MAS" {
		return errs.New("mock", errs.KindNotFound, "record not found")
	}
	return nil
}

func (m *mockDeps) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.topN) {
		return m.topN, nil
	}
	return m.topN[:n], nil
}

func (m *mockDeps) Rank(_ context.Context, userID string) (types.Entry, error) {
	if !m.users[userID] {
		return types.Entry{}, errs.New("mock", errs.KindNotFound, "user %q not ranked", userID)
	}
	return types.Entry{Rank: 1, UserID: userID, Points: 555}, nil
}

func (m *mockDeps) GetStats() map[string]any {
	return map[string]any{"started": true, "rankedUsers": 2}
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, api.WithLogger(logger.Nop()), api.WithMaxLimit(10)).Handler()

		Convey("Then health, stats and metrics respond", func() {
			So(do(h, "GET", "/healthz", "").Code, ShouldEqual, http.StatusOK)
			w := do(h, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "rankedUsers")
			w = do(h, "GET", "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then unknown routes are 404", func() {
			So(do(h, "GET", "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then CORS preflight is answered", func() {
			req := httptest.NewRequest("OPTIONS", "/leaderboard", http.NoBody)
			req.Header.Set("Origin", "https://example.org")
			req.Header.Set("Access-Control-Request-Method", "GET")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("Then mounted routes are served", func() {
			h := api.NewServer(deps, api.WithLogger(logger.Nop()), api.WithMount(func(r chi.Router) {
				r.Get("/extra", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
			})).Handler()
			So(do(h, "GET", "/extra", "").Code, ShouldEqual, http.StatusTeapot)
		})
	})
}

func TestChartsHandler(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, api.WithLogger(logger.Nop())).Handler()

		Convey("When listing charts with a pivot and filters", func() {
			w := do(h, "GET", "/charts?date=20210214&exclude_limited=true&order=number", "")

			Convey("Then the pivot and filters reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastPivot.String(), ShouldEqual, "20210214")
				So(deps.lastFilters.ExcludeLimited, ShouldBeTrue)
				So(deps.lastFilters.ExcludeNotYetAdded, ShouldBeFalse)
				So(deps.lastFilters.Order, ShouldEqual, chart.OrderByNumber)
				So(w.Body.String(), ShouldContainSubstring, `"pivot":"20210214"`)
			})
		})

		Convey("When the pivot is malformed", func() {
			w := do(h, "GET", "/charts?date=bad", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "invalid_pivot")
		})

		Convey("When the pivot is before the low limit", func() {
			w := do(h, "GET", "/charts/dm01/MAS?date=20100101", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "date out of range")
		})

		Convey("When a filter is not a boolean", func() {
			w := do(h, "GET", "/charts?exclude_limited=maybe", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When resolving one difficulty", func() {
			w := do(h, "GET", "/charts/dm01/mas", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var cell types.ChartCell
			So(json.Unmarshal(w.Body.Bytes(), &cell), ShouldBeNil)
			So(cell.Difficulty, ShouldEqual, "MAS")
			So(cell.Level, ShouldEqual, "12")
		})

		Convey("When the difficulty or chart is unknown", func() {
			So(do(h, "GET", "/charts/dm01/XXX", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, "GET", "/charts/nope/MAS", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When requesting a unit ranking", func() {
			So(do(h, "GET", "/units/dm01:MAS/ranking", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, "GET", "/units/dan9/ranking", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestUsersAndSkillsHandlers(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, api.WithLogger(logger.Nop())).Handler()

		Convey("When registering a user", func() {
			w := do(h, "POST", "/users", `{"id":"u9","name":"Neo","display":true}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.users["u9"], ShouldBeTrue)
		})

		Convey("When the user ID is taken", func() {
			w := do(h, "POST", "/users", `{"id":"u1","name":"Again"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decodeError(w)["code"], ShouldEqual, "conflict")
		})

		Convey("When registration fails validation", func() {
			w := do(h, "POST", "/users", `{"name":"Neo"}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			body := decodeError(w)
			So(body["fields"], ShouldContainKey, "id")
		})

		Convey("When the body is malformed", func() {
			So(do(h, "POST", "/users", `{"id":`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, "POST", "/users", `{"id":"a","bogus":1}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading totals", func() {
			So(do(h, "GET", "/users/u1/total", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, "GET", "/users/ghost/total", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When overriding a total", func() {
			w := do(h, "PUT", "/users/u1/total/override", `{"points":1000}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastPoints, ShouldEqual, 1000.0)
			So(w.Body.String(), ShouldContainSubstring, `"is_override":true`)

			So(do(h, "PUT", "/users/u1/total/override", `{"points":-1}`).Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(do(h, "DELETE", "/users/u1/total/override", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("When submitting a skill", func() {
			w := do(h, "PUT", "/users/u1/skills/dm01:MAS", `{"tier":"AAA"}`)

			Convey("Then the scored result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastInput.Tier, ShouldEqual, "AAA")
				var body map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["points"], ShouldEqual, 340.0)
				So(body["unit_id"], ShouldEqual, "dm01:MAS")
			})
		})

		Convey("When a submission is rejected", func() {
			deps.submitErr = errs.Validation("mock", map[string]string{"tier": "unknown tier ZZZ"})
			w := do(h, "PUT", "/users/u1/skills/dm01:MAS", `{"tier":"ZZZ"}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decodeError(w)["fields"], ShouldContainKey, "tier")
		})

		Convey("When a write violates chart integrity", func() {
			deps.submitErr = errs.New("mock", errs.KindIntegrity, "overlap")
			So(do(h, "PUT", "/users/u1/skills/dm01:MAS", `{"tier":"A"}`).Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When an internal error occurs", func() {
			deps.submitErr = errs.New("mock", errs.KindInternal, "disk on fire")
			w := do(h, "PUT", "/users/u1/skills/dm01:MAS", `{"tier":"A"}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "disk on fire")
		})

		Convey("When listing and deleting skills", func() {
			So(do(h, "GET", "/users/u1/skills", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, "DELETE", "/users/u1/skills/dm01:MAS", "").Code, ShouldEqual, http.StatusNoContent)
			So(do(h, "DELETE", "/users/u1/skills/dm02:MAS", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestLeaderboardAndRankHandlers(t *testing.T) {
	Convey("Given an API server with a max limit of 10", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, api.WithLogger(logger.Nop()), api.WithMaxLimit(10)).Handler()

		Convey("When requesting the leaderboard", func() {
			w := do(h, "GET", "/leaderboard?limit=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var entries []types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].UserID, ShouldEqual, "u1")
		})

		Convey("When the limit is missing", func() {
			w := do(h, "GET", "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the limit is invalid or too large", func() {
			So(do(h, "GET", "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, "GET", "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, "GET", "/leaderboard?limit=11", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the index fails", func() {
			deps.topNErr = errs.New("mock", errs.KindInternal, "boom")
			So(do(h, "GET", "/leaderboard?limit=1", "").Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When requesting a rank", func() {
			So(do(h, "GET", "/rank/u1", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, "GET", "/rank/ghost", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
