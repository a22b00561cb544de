package service

import (
	"context"
	"errors"
	"slices"
	"time"

	repository "github.com/okian/chartrank/internal/adapters/repository"
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/scoring"
	"github.com/okian/chartrank/internal/domain/types"
	"github.com/okian/chartrank/pkg/logger"
	"github.com/okian/chartrank/pkg/metrics"
)

// Recompute triggers.
const (
	triggerSubmit    = "submit"
	triggerRemove    = "remove"
	triggerChartEdit = "chart_edit"
	triggerOverride  = "override_cleared"
	triggerReconcile = "reconcile"
)

// rankUpdate is an index change applied after the transaction commits.
type rankUpdate struct {
	userID  string
	points  float64
	display bool
}

// applyRanks moves the index to the committed state of each updated user.
// Commits and index writes can interleave across requests, so the state is
// re-read under rankMu; the values carried by u are used only when that
// read fails.
func (s *Service) applyRanks(ctx context.Context, updates []rankUpdate) {
	s.rankMu.Lock()
	defer s.rankMu.Unlock()
	for _, u := range updates {
		if fresh, err := s.committedRank(ctx, u.userID); err == nil {
			u = fresh
		} else {
			s.logger.Warn(ctx, "index update uses uncommitted view",
				logger.String("user_id", u.userID), logger.Error(err))
		}
		if u.display {
			s.index.Set(u.userID, u.points)
		} else {
			s.index.Remove(u.userID)
		}
	}
}

func (s *Service) committedRank(ctx context.Context, userID string) (rankUpdate, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return rankUpdate{}, err
	}
	total, err := s.store.GetTotal(ctx, userID)
	if err != nil {
		return rankUpdate{}, err
	}
	return rankUpdate{userID: userID, points: total.Points, display: user.Display}, nil
}

// sameDerived reports whether two versions of a record carry the same
// points and breakdown.
func sameDerived(a, b model.SkillRecord) bool {
	x, y := a.Breakdown, b.Breakdown
	return a.Points == b.Points &&
		x.Tier == y.Tier &&
		x.Multiplier == y.Multiplier &&
		x.Base == y.Base &&
		slices.Equal(x.Items, y.Items)
}

// rebuild rescores every record of the user and, unless the total is under
// override, replaces the stored total. Rescored records whose points or
// breakdown moved are written back. It must run inside a transaction.
func (s *Service) rebuild(ctx context.Context, tx repository.Store, user model.User, now time.Time, trigger string) (model.UserTotal, error) {
	const op = "service.rebuild_total"
	start := time.Now()

	total, err := tx.GetTotal(ctx, user.ID)
	if err != nil {
		return model.UserTotal{}, errs.Wrap(op, err)
	}
	records, err := tx.ListSkills(ctx, user.ID)
	if err != nil {
		return model.UserTotal{}, errs.Wrap(op, err)
	}
	cat, err := loadCatalog(ctx, tx, unitIDsOf(records))
	if err != nil {
		return model.UserTotal{}, errs.Wrap(op, err)
	}
	sum, err := s.agg.RecomputeTotal(cat, records)
	if err != nil {
		return model.UserTotal{}, errs.Wrap(op, err)
	}
	for i, rec := range sum.Records {
		if sameDerived(rec, records[i]) {
			continue
		}
		rec.UpdatedAt = now
		if err := tx.SaveSkill(ctx, rec); err != nil {
			return model.UserTotal{}, errs.Wrap(op, err)
		}
	}

	if total.Direct {
		return total, nil
	}
	total = model.UserTotal{UserID: user.ID, Points: sum.Points, ComputedAt: now}
	if err := tx.SaveTotal(ctx, total); err != nil {
		return model.UserTotal{}, errs.Wrap(op, err)
	}
	metrics.RecordTotalRecompute(trigger, float64(time.Since(start).Milliseconds()))
	return total, nil
}

func submissionResult(err error) string {
	if err == nil {
		return "ok"
	}
	return string(errs.KindOf(err))
}

// SubmitSkill scores in against the unit, stores the record and recomputes
// the user's total in one transaction. Invalid input leaves nothing written.
func (s *Service) SubmitSkill(ctx context.Context, userID, unitID string, in model.RawInput) (res scoring.Result, err error) {
	const op = "service.submit_skill"
	defer func() { metrics.RecordSkillSubmission(submissionResult(err)) }()

	if err := s.validator.Validate(op, in); err != nil {
		return scoring.Result{}, err
	}

	var update rankUpdate
	now := s.now()
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		cat, err := loadCatalog(ctx, tx, []string{unitID})
		if err != nil {
			return err
		}
		res, err = s.agg.Score(cat, unitID, in)
		if err != nil {
			return err
		}
		rec := model.SkillRecord{
			UserID:    userID,
			UnitID:    unitID,
			Input:     in,
			Points:    res.Points,
			Breakdown: res.Breakdown,
			UpdatedAt: now,
		}
		if err := tx.SaveSkill(ctx, rec); err != nil {
			return err
		}
		if err := tx.TouchSkills(ctx, []string{userID}, now); err != nil {
			return err
		}
		total, err := s.rebuild(ctx, tx, user, now, triggerSubmit)
		if err != nil {
			return err
		}
		update = rankUpdate{userID: userID, points: total.Points, display: user.Display}
		return nil
	})
	if err != nil {
		return scoring.Result{}, errs.Wrap(op, err)
	}
	s.applyRanks(ctx, []rankUpdate{update})
	s.logger.Debug(ctx, "skill submitted",
		logger.String("user_id", userID),
		logger.String("unit_id", unitID),
		logger.Float64("points", res.Points),
	)
	return res, nil
}

// RemoveSkill deletes a record and recomputes the user's total.
func (s *Service) RemoveSkill(ctx context.Context, userID, unitID string) error {
	const op = "service.remove_skill"
	var update rankUpdate
	now := s.now()
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.DeleteSkill(ctx, userID, unitID); err != nil {
			return err
		}
		if err := tx.TouchSkills(ctx, []string{userID}, now); err != nil {
			return err
		}
		total, err := s.rebuild(ctx, tx, user, now, triggerRemove)
		if err != nil {
			return err
		}
		update = rankUpdate{userID: userID, points: total.Points, display: user.Display}
		return nil
	})
	if err != nil {
		return errs.Wrap(op, err)
	}
	s.applyRanks(ctx, []rankUpdate{update})
	metrics.RecordSkillRemoval()
	return nil
}

// GetUserTotal returns the stored total.
func (s *Service) GetUserTotal(ctx context.Context, userID string) (model.UserTotal, error) {
	t, err := s.store.GetTotal(ctx, userID)
	return t, errs.Wrap("service.get_user_total", err)
}

// ListUserSkills returns every record of the user.
func (s *Service) ListUserSkills(ctx context.Context, userID string) ([]model.SkillRecord, error) {
	const op = "service.list_user_skills"
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, errs.Wrap(op, err)
	}
	recs, err := s.store.ListSkills(ctx, userID)
	return recs, errs.Wrap(op, err)
}

// UnitRanking returns the displayed users' records of one unit, best first.
func (s *Service) UnitRanking(ctx context.Context, unitID string) ([]model.UnitRankEntry, error) {
	const op = "service.unit_ranking"
	cat, err := loadCatalog(ctx, s.store, []string{unitID})
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	unit, err := cat.Unit(unitID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	for _, id := range unit.ChartIDs() {
		if _, err := cat.Chart(id); err != nil {
			return nil, errs.Wrap(op, err)
		}
	}
	entries, err := s.store.UnitRanking(ctx, unitID)
	return entries, errs.Wrap(op, err)
}

// TopN returns the first n leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	const op = "service.top_n"
	entries, err := s.index.TopN(ctx, n)
	if errors.Is(err, repository.ErrInvalidLimit) {
		return nil, errs.Validation(op, map[string]string{"limit": "must be at least 1"})
	}
	return entries, errs.Wrap(op, err)
}

// Rank returns the user's leaderboard position.
func (s *Service) Rank(ctx context.Context, userID string) (types.Entry, error) {
	e, err := s.index.Rank(ctx, userID)
	return e, errs.Wrap("service.rank", err)
}

// RegisterUser creates a user with a zero total.
func (s *Service) RegisterUser(ctx context.Context, u model.User) error {
	const op = "service.register_user"
	if err := s.validator.Validate(op, u); err != nil {
		return err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return errs.Wrap(op, err)
	}
	s.applyRanks(ctx, []rankUpdate{{userID: u.ID, display: u.Display}})
	s.logger.Info(ctx, "user registered", logger.String("user_id", u.ID))
	return nil
}

// SetDirectTotal overrides the user's total. Aggregation leaves an
// overridden total alone until ClearDirectTotal.
func (s *Service) SetDirectTotal(ctx context.Context, userID string, points float64) (model.UserTotal, error) {
	const op = "service.set_direct_total"
	if points < 0 {
		return model.UserTotal{}, errs.Validation(op, map[string]string{"points": "must be at least 0"})
	}
	var (
		total  model.UserTotal
		update rankUpdate
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		total = model.UserTotal{UserID: userID, Points: points, Direct: true, ComputedAt: s.now()}
		if err := tx.SaveTotal(ctx, total); err != nil {
			return err
		}
		update = rankUpdate{userID: userID, points: points, display: user.Display}
		return nil
	})
	if err != nil {
		return model.UserTotal{}, errs.Wrap(op, err)
	}
	s.applyRanks(ctx, []rankUpdate{update})
	s.logger.Info(ctx, "total overridden", logger.String("user_id", userID), logger.Float64("points", points))
	return total, nil
}

// ClearDirectTotal drops the override and recomputes the total.
func (s *Service) ClearDirectTotal(ctx context.Context, userID string) (model.UserTotal, error) {
	const op = "service.clear_direct_total"
	var (
		total  model.UserTotal
		update rankUpdate
	)
	now := s.now()
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		cur, err := tx.GetTotal(ctx, userID)
		if err != nil {
			return err
		}
		cur.Direct = false
		if err := tx.SaveTotal(ctx, cur); err != nil {
			return err
		}
		total, err = s.rebuild(ctx, tx, user, now, triggerOverride)
		if err != nil {
			return err
		}
		update = rankUpdate{userID: userID, points: total.Points, display: user.Display}
		return nil
	})
	if err != nil {
		return model.UserTotal{}, errs.Wrap(op, err)
	}
	s.applyRanks(ctx, []rankUpdate{update})
	return total, nil
}
