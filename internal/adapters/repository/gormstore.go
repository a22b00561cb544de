package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// GormStore implements Store on GORM.
type GormStore struct {
	db          *gorm.DB
	logger      gormLogger.Interface
	autoMigrate bool
	inTx        bool
}

var _ Store = (*GormStore)(nil)

// Open connects to the database named by driver and dsn and migrates the
// schema unless disabled.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*GormStore, error) {
	s := &GormStore{
		logger:      gormLogger.Default.LogMode(gormLogger.Silent),
		autoMigrate: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	var dial gorm.Dialector
	switch driver {
	case DriverSQLite:
		dial = sqlite.Open(dsn)
	case DriverPostgres:
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   s.logger,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite serializes writers; one connection avoids "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", driver, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	s.db = db

	if s.autoMigrate {
		if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *GormStore) DB() *gorm.DB { return s.db }

// Close closes the connection pool. It is a no-op inside a transaction.
func (s *GormStore) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithinTx implements Store.
func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, logger: s.logger, inTx: true})
	})
}

func notFound(op, format string, args ...any) error {
	return errs.WrapKind(op, errs.ErrNotFound, fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...))
}

func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	return errs.WrapKind(op, errs.ErrInternal, err)
}

// Charts

func (s *GormStore) chartQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Legacy", func(db *gorm.DB) *gorm.DB {
		return db.Order("span_start ASC")
	})
}

// GetChart implements Store.
func (s *GormStore) GetChart(ctx context.Context, id string) (*chart.Chart, error) {
	const op = "repository.get_chart"
	var row ChartRow
	err := s.chartQuery(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "chart %q", id)
	}
	if err != nil {
		return nil, dbError(op, err)
	}
	c, err := rowToChart(row)
	return c, dbError(op, err)
}

// ListCharts implements Store.
func (s *GormStore) ListCharts(ctx context.Context) ([]*chart.Chart, error) {
	const op = "repository.list_charts"
	var rows []ChartRow
	if err := s.chartQuery(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, dbError(op, err)
	}
	out := make([]*chart.Chart, 0, len(rows))
	for _, r := range rows {
		c, err := rowToChart(r)
		if err != nil {
			return nil, dbError(op, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ChartsByIDs implements Store.
func (s *GormStore) ChartsByIDs(ctx context.Context, ids []string) (map[string]*chart.Chart, error) {
	const op = "repository.charts_by_ids"
	out := make(map[string]*chart.Chart, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []ChartRow
	if err := s.chartQuery(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, dbError(op, err)
	}
	for _, r := range rows {
		c, err := rowToChart(r)
		if err != nil {
			return nil, dbError(op, err)
		}
		out[c.ID] = c
	}
	return out, nil
}

// SaveChart implements Store.
func (s *GormStore) SaveChart(ctx context.Context, c *chart.Chart) (bool, error) {
	const op = "repository.save_chart"
	row, err := chartToRow(c)
	if err != nil {
		return false, dbError(op, err)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&ChartRow{}).Where("id = ?", c.ID).Count(&count).Error; err != nil {
		return false, dbError(op, err)
	}
	if count == 0 {
		return true, dbError(op, s.db.WithContext(ctx).Omit("Legacy").Create(&row).Error)
	}
	err = s.db.WithContext(ctx).Model(&ChartRow{}).Where("id = ?", c.ID).Select("*").Omit("id", "created_at", "Legacy").Updates(&row).Error
	return false, dbError(op, err)
}

// SaveLegacy implements Store.
func (s *GormStore) SaveLegacy(ctx context.Context, chartID string, l chart.Legacy) (chart.Legacy, error) {
	const op = "repository.save_legacy"
	row, err := legacyToRow(chartID, l)
	if err != nil {
		return chart.Legacy{}, dbError(op, err)
	}
	if row.ID == 0 {
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return chart.Legacy{}, dbError(op, err)
		}
	} else {
		res := s.db.WithContext(ctx).Model(&LegacyChartRow{}).
			Where("id = ? AND chart_id = ?", row.ID, chartID).
			Updates(map[string]any{"span_start": row.SpanStart, "span_end": row.SpanEnd, "specs": row.Specs})
		if res.Error != nil {
			return chart.Legacy{}, dbError(op, res.Error)
		}
		if res.RowsAffected == 0 {
			return chart.Legacy{}, notFound(op, "legacy chart %d of %q", row.ID, chartID)
		}
	}
	return rowToLegacy(row)
}

// Courses

// GetCourse implements Store.
func (s *GormStore) GetCourse(ctx context.Context, id string) (model.Course, error) {
	const op = "repository.get_course"
	var row CourseRow
	err := s.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Course{}, notFound(op, "course %q", id)
	}
	if err != nil {
		return model.Course{}, dbError(op, err)
	}
	c, err := rowToCourse(row)
	return c, dbError(op, err)
}

// SaveCourse implements Store. Items are replaced wholesale.
func (s *GormStore) SaveCourse(ctx context.Context, c model.Course) error {
	const op = "repository.save_course"
	row := courseToRow(c)
	items := row.Items
	row.Items = nil
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return dbError(op, err)
	}
	if err := db.Where("course_id = ?", c.ID).Delete(&CourseItemRow{}).Error; err != nil {
		return dbError(op, err)
	}
	if len(items) == 0 {
		return nil
	}
	return dbError(op, db.Create(&items).Error)
}

// CoursesByChart implements Store.
func (s *GormStore) CoursesByChart(ctx context.Context, chartID string) ([]model.Course, error) {
	const op = "repository.courses_by_chart"
	var ids []string
	if err := s.db.WithContext(ctx).Model(&CourseItemRow{}).
		Where("chart_id = ?", chartID).Distinct().Order("course_id").Pluck("course_id", &ids).Error; err != nil {
		return nil, dbError(op, err)
	}
	out := make([]model.Course, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCourse(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Users and totals

// CreateUser implements Store.
func (s *GormStore) CreateUser(ctx context.Context, u model.User) error {
	const op = "repository.create_user"
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserRow{}).Where("id = ?", u.ID).Count(&count).Error; err != nil {
		return dbError(op, err)
	}
	if count > 0 {
		return errs.WrapKind(op, errs.ErrConflict, fmt.Errorf("%w: user %q", ErrAlreadyExists, u.ID))
	}
	row := UserRow{ID: u.ID, Name: u.Name, Display: u.Display}
	return dbError(op, s.db.WithContext(ctx).Create(&row).Error)
}

func (s *GormStore) userRow(ctx context.Context, op, id string) (UserRow, error) {
	var row UserRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserRow{}, notFound(op, "user %q", id)
	}
	return row, dbError(op, err)
}

// GetUser implements Store.
func (s *GormStore) GetUser(ctx context.Context, id string) (model.User, error) {
	row, err := s.userRow(ctx, "repository.get_user", id)
	if err != nil {
		return model.User{}, err
	}
	return rowToUser(row), nil
}

// GetTotal implements Store.
func (s *GormStore) GetTotal(ctx context.Context, userID string) (model.UserTotal, error) {
	row, err := s.userRow(ctx, "repository.get_total", userID)
	if err != nil {
		return model.UserTotal{}, err
	}
	return rowToTotal(row), nil
}

// SaveTotal implements Store.
func (s *GormStore) SaveTotal(ctx context.Context, t model.UserTotal) error {
	const op = "repository.save_total"
	at := t.ComputedAt.UTC()
	res := s.db.WithContext(ctx).Model(&UserRow{}).Where("id = ?", t.UserID).Updates(map[string]any{
		"point":            t.Points,
		"point_direct":     t.Direct,
		"point_updated_at": &at,
	})
	if res.Error != nil {
		return dbError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(op, "user %q", t.UserID)
	}
	return nil
}

// TouchSkills implements Store.
func (s *GormStore) TouchSkills(ctx context.Context, userIDs []string, at time.Time) error {
	const op = "repository.touch_skills"
	if len(userIDs) == 0 {
		return nil
	}
	return dbError(op, s.db.WithContext(ctx).Model(&UserRow{}).
		Where("id IN ?", userIDs).Update("skills_changed_at", at.UTC()).Error)
}

// ListTotals implements Store.
func (s *GormStore) ListTotals(ctx context.Context) ([]model.UserTotal, error) {
	const op = "repository.list_totals"
	var rows []UserRow
	if err := s.db.WithContext(ctx).Where("display = ?", true).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, dbError(op, err)
	}
	out := make([]model.UserTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToTotal(r))
	}
	return out, nil
}

// StaleUsers implements Store.
func (s *GormStore) StaleUsers(ctx context.Context, limit int) ([]string, error) {
	const op = "repository.stale_users"
	var ids []string
	q := s.db.WithContext(ctx).Model(&UserRow{}).
		Where("point_direct = ?", false).
		Where("skills_changed_at IS NOT NULL").
		Where("point_updated_at IS NULL OR point_updated_at < skills_changed_at").
		Order("skills_changed_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, dbError(op, err)
	}
	return ids, nil
}

// Skills

// GetSkill implements Store.
func (s *GormStore) GetSkill(ctx context.Context, userID, unitID string) (model.SkillRecord, error) {
	const op = "repository.get_skill"
	var row SkillRow
	err := s.db.WithContext(ctx).Where("user_id = ? AND unit_id = ?", userID, unitID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SkillRecord{}, notFound(op, "skill of user %q for unit %q", userID, unitID)
	}
	if err != nil {
		return model.SkillRecord{}, dbError(op, err)
	}
	rec, err := rowToSkill(row)
	return rec, dbError(op, err)
}

func (s *GormStore) findSkills(op string, q *gorm.DB) ([]model.SkillRecord, error) {
	var rows []SkillRow
	if err := q.Order("user_id ASC, unit_id ASC").Find(&rows).Error; err != nil {
		return nil, dbError(op, err)
	}
	out := make([]model.SkillRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := rowToSkill(r)
		if err != nil {
			return nil, dbError(op, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListSkills implements Store.
func (s *GormStore) ListSkills(ctx context.Context, userID string) ([]model.SkillRecord, error) {
	return s.findSkills("repository.list_skills", s.db.WithContext(ctx).Where("user_id = ?", userID))
}

// SkillsByUnits implements Store.
func (s *GormStore) SkillsByUnits(ctx context.Context, unitIDs []string) ([]model.SkillRecord, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	return s.findSkills("repository.skills_by_units", s.db.WithContext(ctx).Where("unit_id IN ?", unitIDs))
}

// SaveSkill implements Store.
func (s *GormStore) SaveSkill(ctx context.Context, rec model.SkillRecord) error {
	const op = "repository.save_skill"
	row, err := skillToRow(rec)
	if err != nil {
		return dbError(op, err)
	}
	return dbError(op, s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "unit_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "score", "comment", "point", "breakdown", "updated_at"}),
	}).Create(&row).Error)
}

// DeleteSkill implements Store.
func (s *GormStore) DeleteSkill(ctx context.Context, userID, unitID string) error {
	const op = "repository.delete_skill"
	res := s.db.WithContext(ctx).Where("user_id = ? AND unit_id = ?", userID, unitID).Delete(&SkillRow{})
	if res.Error != nil {
		return dbError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(op, "skill of user %q for unit %q", userID, unitID)
	}
	return nil
}

// UnitRanking implements Store.
func (s *GormStore) UnitRanking(ctx context.Context, unitID string) ([]model.UnitRankEntry, error) {
	const op = "repository.unit_ranking"
	type joined struct {
		UserID string
		Name   string
		Point  float64
		Tier   string
	}
	var rows []joined
	err := s.db.WithContext(ctx).Table("skills").
		Select("skills.user_id AS user_id, users.name AS name, skills.point AS point, skills.tier AS tier").
		Joins("JOIN users ON users.id = skills.user_id").
		Where("skills.unit_id = ? AND users.display = ?", unitID, true).
		Order("skills.point DESC, skills.user_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError(op, err)
	}
	out := make([]model.UnitRankEntry, len(rows))
	for i, r := range rows {
		out[i] = model.UnitRankEntry{UserID: r.UserID, UserName: r.Name, Points: r.Point, Tier: r.Tier}
	}
	assignUnitRanks(out)
	return out, nil
}

// assignUnitRanks gives equal points the same rank and skips positions after
// a tie (1, 1, 3).
func assignUnitRanks(entries []model.UnitRankEntry) {
	for i := range entries {
		if i > 0 && entries[i].Points == entries[i-1].Points {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
