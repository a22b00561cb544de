// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/pivot"
	"github.com/okian/chartrank/internal/domain/scoring"
	"github.com/okian/chartrank/internal/domain/types"
	"github.com/okian/chartrank/pkg/logger"
)

// Dependencies required by HTTP handlers. Each handler only sees the subset
// it needs; the service implements all of them.
type Dependencies interface {
	ChartDependencies
	UserDependencies
	SkillDependencies
	LeaderboardDependencies
	RankDependencies
	StatsProvider
}

// ChartDependencies resolves chart views under a pivot.
type ChartDependencies interface {
	ParsePivot(raw string) (pivot.Date, error)
	DefaultFilters() chart.Filters
	ResolveChartDisplay(ctx context.Context, p pivot.Date, chartID string, d chart.Difficulty) (types.ChartCell, error)
	ListActiveCharts(ctx context.Context, p pivot.Date, f chart.Filters) ([]types.ChartView, error)
	UnitRanking(ctx context.Context, unitID string) ([]model.UnitRankEntry, error)
}

// UserDependencies manages users and their totals.
type UserDependencies interface {
	RegisterUser(ctx context.Context, u model.User) error
	GetUserTotal(ctx context.Context, userID string) (model.UserTotal, error)
	SetDirectTotal(ctx context.Context, userID string, points float64) (model.UserTotal, error)
	ClearDirectTotal(ctx context.Context, userID string) (model.UserTotal, error)
}

// SkillDependencies manages skill records.
type SkillDependencies interface {
	ListUserSkills(ctx context.Context, userID string) ([]model.SkillRecord, error)
	SubmitSkill(ctx context.Context, userID, unitID string, in model.RawInput) (scoring.Result, error)
	RemoveSkill(ctx context.Context, userID, unitID string) error
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the leaderboard page size.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMount registers extra routes, such as API docs, on the router.
func WithMount(fn func(r chi.Router)) Option {
	return func(s *Server) {
		if fn != nil {
			s.mounts = append(s.mounts, fn)
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	router   *chi.Mux
	maxLimit int
	logger   logger.Logger
	mounts   []func(r chi.Router)

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	chartsHandler      *ChartsHandler
	usersHandler       *UsersHandler
	skillsHandler      *SkillsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

const defaultMaxLimit = 100

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.chartsHandler = NewChartsHandler(deps)
	s.usersHandler = NewUsersHandler(deps)
	s.skillsHandler = NewSkillsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	s.setupRouter()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/charts", func(r chi.Router) {
		r.Get("/", s.chartsHandler.HandleListCharts)
		r.Get("/{chartID}/{difficulty}", s.chartsHandler.HandleGetChart)
	})
	r.Get("/units/{unitID}/ranking", s.chartsHandler.HandleUnitRanking)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.usersHandler.HandleCreateUser)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/total", s.usersHandler.HandleGetTotal)
			r.Put("/total/override", s.usersHandler.HandleSetOverride)
			r.Delete("/total/override", s.usersHandler.HandleClearOverride)
			r.Get("/skills", s.skillsHandler.HandleListSkills)
			r.Put("/skills/{unitID}", s.skillsHandler.HandlePutSkill)
			r.Delete("/skills/{unitID}", s.skillsHandler.HandleDeleteSkill)
		})
	})

	r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	r.Get("/rank/{userID}", s.rankHandler.HandleGetRank)

	for _, mount := range s.mounts {
		mount(r)
	}
	s.router = r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode_body", err)
	}
	return nil
}
