package service

import (
	"context"
	"sort"
	"time"

	repository "github.com/okian/chartrank/internal/adapters/repository"
	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/pivot"
	"github.com/okian/chartrank/internal/domain/types"
	"github.com/okian/chartrank/pkg/logger"
	"github.com/okian/chartrank/pkg/metrics"
)

// ResolveChartDisplay renders one chart difficulty as of p.
func (s *Service) ResolveChartDisplay(ctx context.Context, p pivot.Date, chartID string, d chart.Difficulty) (types.ChartCell, error) {
	const op = "service.resolve_chart_display"
	if !d.Valid() {
		return types.ChartCell{}, errs.New(op, errs.KindNotFound, "unknown difficulty")
	}
	c, err := s.store.GetChart(ctx, chartID)
	if err != nil {
		return types.ChartCell{}, errs.Wrap(op, err)
	}
	sp := c.Spec(d, p)
	return types.ChartCell{
		ChartID:    c.ID,
		Difficulty: d.Code(),
		Level:      s.formatter.Level(sp),
		Notes:      s.formatter.Notes(sp),
		Exists:     c.ExistsDisplayed(d, p),
	}, nil
}

// GetChart returns a chart with its legacy versions.
func (s *Service) GetChart(ctx context.Context, chartID string) (*chart.Chart, error) {
	c, err := s.store.GetChart(ctx, chartID)
	return c, errs.Wrap("service.get_chart", err)
}

// ListActiveCharts lists visible charts as of p. An empty f.Order uses the
// configured order.
func (s *Service) ListActiveCharts(ctx context.Context, p pivot.Date, f chart.Filters) ([]types.ChartView, error) {
	const op = "service.list_active_charts"
	all, err := s.store.ListCharts(ctx)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	if f.Order == "" {
		f.Order = s.order
	}
	now := s.now()
	active := chart.Active(all, p, now, f)
	out := make([]types.ChartView, 0, len(active))
	for _, c := range active {
		out = append(out, s.chartView(c, p, now))
	}
	return out, nil
}

// DefaultFilters returns the configured list filters.
func (s *Service) DefaultFilters() chart.Filters {
	return chart.Filters{ExcludeLimited: s.excludeLimited, Order: s.order}
}

func (s *Service) chartView(c *chart.Chart, p pivot.Date, now time.Time) types.ChartView {
	v := types.ChartView{
		ID:           c.ID,
		Number:       c.Number,
		Era:          c.Era,
		Title:        c.FullTitle(),
		Category:     c.Category,
		Limited:      c.Limited,
		Deleted:      c.IsDeleted(p, now),
		MaxNotes:     c.MaxNotes(p),
		MaxDiff:      c.MaxDifficulty(p).Code(),
		Difficulties: make(map[string]*types.DifficultyView, chart.NumDifficulties),
	}
	for _, d := range chart.Difficulties() {
		if !c.Visible(d, p) {
			v.Difficulties[d.Code()] = nil
			continue
		}
		sp := c.Spec(d, p)
		v.Difficulties[d.Code()] = &types.DifficultyView{
			Level:     s.formatter.Level(sp),
			Notes:     s.formatter.Notes(sp),
			HasLegacy: c.HasLegacy(d),
		}
	}
	return v
}

// UpsertChart stores a chart's current attributes and rescores every record
// that depends on it. Legacy versions on c are ignored; use AddLegacyChart.
func (s *Service) UpsertChart(ctx context.Context, c *chart.Chart) (created bool, err error) {
	const op = "service.upsert_chart"
	now := s.now()
	if err := prepareChart(op, c, now); err != nil {
		return false, err
	}

	var updates []rankUpdate
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		created, err = tx.SaveChart(ctx, c)
		if err != nil {
			return err
		}
		if created {
			return nil
		}
		updates, err = s.rescoreChart(ctx, tx, c.ID, now)
		return err
	})
	if err != nil {
		return false, errs.Wrap(op, err)
	}
	s.applyRanks(ctx, updates)
	s.logger.Info(ctx, "chart saved",
		logger.String("chart_id", c.ID),
		logger.Bool("created", created),
		logger.Int("rescored_users", len(updates)),
	)
	return created, nil
}

// ImportChart stores a chart's current attributes together with a batch of
// legacy versions in one transaction. The batch is checked against itself
// and against the stored versions it does not replace; any failure leaves
// the chart as it was.
func (s *Service) ImportChart(ctx context.Context, c *chart.Chart, legacy []chart.Legacy) (created bool, saved []chart.Legacy, err error) {
	const op = "service.import_chart"
	now := s.now()
	if err := prepareChart(op, c, now); err != nil {
		return false, nil, err
	}

	var updates []rankUpdate
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		saved = nil
		var err error
		if created, err = tx.SaveChart(ctx, c); err != nil {
			return err
		}
		var stored []chart.Legacy
		if !created {
			cur, err := tx.GetChart(ctx, c.ID)
			if err != nil {
				return err
			}
			stored = cur.Legacy
		}
		if err := chart.ValidateLegacySet(mergeLegacy(stored, legacy)); err != nil {
			if errs.KindOf(err) == errs.KindIntegrity {
				metrics.RecordIntegrityRejection()
			}
			return err
		}
		for _, l := range legacy {
			out, err := tx.SaveLegacy(ctx, c.ID, l)
			if err != nil {
				return err
			}
			saved = append(saved, out)
		}
		if created {
			return nil
		}
		updates, err = s.rescoreChart(ctx, tx, c.ID, now)
		return err
	})
	if err != nil {
		return false, nil, errs.Wrap(op, err)
	}
	s.applyRanks(ctx, updates)
	s.logger.Info(ctx, "chart imported",
		logger.String("chart_id", c.ID),
		logger.Bool("created", created),
		logger.Int("legacy", len(saved)),
		logger.Int("rescored_users", len(updates)),
	)
	return created, saved, nil
}

// mergeLegacy returns the stored versions not replaced by incoming, followed
// by incoming.
func mergeLegacy(stored, incoming []chart.Legacy) []chart.Legacy {
	replaced := make(map[uint]struct{}, len(incoming))
	for _, l := range incoming {
		if l.ID != 0 {
			replaced[l.ID] = struct{}{}
		}
	}
	out := make([]chart.Legacy, 0, len(stored)+len(incoming))
	for _, l := range stored {
		if _, ok := replaced[l.ID]; !ok {
			out = append(out, l)
		}
	}
	return append(out, incoming...)
}

// prepareChart validates c and fills the defaults of a new chart.
func prepareChart(op string, c *chart.Chart, now time.Time) error {
	if fields := chartFields(c); len(fields) > 0 {
		return errs.Validation(op, fields)
	}
	if c.AddedOn.IsZero() {
		c.AddedOn = pivot.Day(now)
	}
	if c.UnlockUnlimited == "" {
		c.UnlockUnlimited = chart.UnlockNormal
	}
	return nil
}

func chartFields(c *chart.Chart) map[string]string {
	fields := map[string]string{}
	if c == nil {
		fields["chart"] = "is required"
		return fields
	}
	if c.ID == "" {
		fields["id"] = "is required"
	}
	if c.Title == "" {
		fields["title"] = "is required"
	}
	switch c.UnlockUnlimited {
	case "", chart.UnlockNormal, chart.UnlockSpecial, chart.UnlockNever:
	default:
		fields["unlock_unlimited"] = "must be one of normal special never"
	}
	return fields
}

// AddLegacyChart stores a historical version after checking it does not
// overlap the chart's other versions, then rescores dependent records.
func (s *Service) AddLegacyChart(ctx context.Context, chartID string, l chart.Legacy) (chart.Legacy, error) {
	const op = "service.add_legacy_chart"
	var (
		saved   chart.Legacy
		updates []rankUpdate
	)
	now := s.now()
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		c, err := tx.GetChart(ctx, chartID)
		if err != nil {
			return err
		}
		if err := chart.ValidateLegacy(c.Legacy, l); err != nil {
			if errs.KindOf(err) == errs.KindIntegrity {
				metrics.RecordIntegrityRejection()
			}
			return err
		}
		saved, err = tx.SaveLegacy(ctx, chartID, l)
		if err != nil {
			return err
		}
		updates, err = s.rescoreChart(ctx, tx, chartID, now)
		return err
	})
	if err != nil {
		return chart.Legacy{}, errs.Wrap(op, err)
	}
	s.applyRanks(ctx, updates)
	return saved, nil
}

// UpsertCourse stores a course and rescores records submitted against it.
func (s *Service) UpsertCourse(ctx context.Context, c model.Course) error {
	const op = "service.upsert_course"
	fields := map[string]string{}
	if c.ID == "" {
		fields["id"] = "is required"
	}
	if _, _, ok := model.ParseChartUnitID(c.ID); ok {
		fields["id"] = "must not look like a chart unit"
	}
	if len(c.Items) == 0 {
		fields["items"] = "must contain at least one chart"
	}
	for _, it := range c.Items {
		if !it.Difficulty.Valid() {
			fields["items"] = "contain an unknown difficulty"
		}
	}
	if len(fields) > 0 {
		return errs.Validation(op, fields)
	}

	var updates []rankUpdate
	now := s.now()
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.SaveCourse(ctx, c); err != nil {
			return err
		}
		var err error
		updates, err = s.rescoreUnits(ctx, tx, []string{c.ID}, now)
		return err
	})
	if err != nil {
		return errs.Wrap(op, err)
	}
	s.applyRanks(ctx, updates)
	return nil
}

// rescoreChart rebuilds the totals of every user with a record on a unit
// that contains chartID.
func (s *Service) rescoreChart(ctx context.Context, tx repository.Store, chartID string, now time.Time) ([]rankUpdate, error) {
	units := make([]string, 0, chart.NumDifficulties)
	for _, d := range chart.Difficulties() {
		units = append(units, model.ChartUnitID(chartID, d))
	}
	courses, err := tx.CoursesByChart(ctx, chartID)
	if err != nil {
		return nil, err
	}
	for _, c := range courses {
		units = append(units, c.ID)
	}
	return s.rescoreUnits(ctx, tx, units, now)
}

func (s *Service) rescoreUnits(ctx context.Context, tx repository.Store, unitIDs []string, now time.Time) ([]rankUpdate, error) {
	records, err := tx.SkillsByUnits(ctx, unitIDs)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var users []string
	for _, r := range records {
		if _, ok := seen[r.UserID]; !ok {
			seen[r.UserID] = struct{}{}
			users = append(users, r.UserID)
		}
	}
	sort.Strings(users)
	if len(users) == 0 {
		return nil, nil
	}
	if err := tx.TouchSkills(ctx, users, now); err != nil {
		return nil, err
	}

	updates := make([]rankUpdate, 0, len(users))
	for _, id := range users {
		user, err := tx.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		total, err := s.rebuild(ctx, tx, user, now, triggerChartEdit)
		if err != nil {
			return nil, err
		}
		updates = append(updates, rankUpdate{userID: id, points: total.Points, display: user.Display})
	}
	return updates, nil
}
