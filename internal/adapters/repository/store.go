// Package repository is the storage collaborator of the ranking core: the
// Store contract, its GORM implementation, and the in-memory ranking index.
package repository

import (
	"context"
	"time"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/model"
)

// Store provides read/write access to charts, courses, users, totals and
// skill records. Not-found conditions carry errs.KindNotFound.
type Store interface {
	// WithinTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// fn must only use the Store it is given.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	GetChart(ctx context.Context, id string) (*chart.Chart, error)
	ListCharts(ctx context.Context) ([]*chart.Chart, error)
	// ChartsByIDs returns the charts that exist among ids, keyed by ID.
	ChartsByIDs(ctx context.Context, ids []string) (map[string]*chart.Chart, error)
	// SaveChart upserts the chart's own attributes; legacy versions are
	// written with SaveLegacy. created reports an insert.
	SaveChart(ctx context.Context, c *chart.Chart) (created bool, err error)
	// SaveLegacy inserts l, or updates it when l.ID is set, and returns the
	// stored version.
	SaveLegacy(ctx context.Context, chartID string, l chart.Legacy) (chart.Legacy, error)

	GetCourse(ctx context.Context, id string) (model.Course, error)
	SaveCourse(ctx context.Context, c model.Course) error
	CoursesByChart(ctx context.Context, chartID string) ([]model.Course, error)

	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetTotal(ctx context.Context, userID string) (model.UserTotal, error)
	// SaveTotal stores points, override flag and ComputedAt.
	SaveTotal(ctx context.Context, t model.UserTotal) error
	// TouchSkills records that the user's skill records changed at at.
	TouchSkills(ctx context.Context, userIDs []string, at time.Time) error
	// ListTotals returns the totals of displayed users.
	ListTotals(ctx context.Context) ([]model.UserTotal, error)
	// StaleUsers returns up to limit users, not under override, whose skill
	// records changed after their total was computed.
	StaleUsers(ctx context.Context, limit int) ([]string, error)

	GetSkill(ctx context.Context, userID, unitID string) (model.SkillRecord, error)
	ListSkills(ctx context.Context, userID string) ([]model.SkillRecord, error)
	// SaveSkill upserts by (user, unit).
	SaveSkill(ctx context.Context, rec model.SkillRecord) error
	DeleteSkill(ctx context.Context, userID, unitID string) error
	SkillsByUnits(ctx context.Context, unitIDs []string) ([]model.SkillRecord, error)
	// UnitRanking returns displayed users' records of one unit ordered by
	// points desc, then user ID.
	UnitRanking(ctx context.Context, unitID string) ([]model.UnitRankEntry, error)

	Close() error
}
