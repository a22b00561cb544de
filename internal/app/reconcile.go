package service

import (
	"context"
	"time"

	repository "github.com/okian/chartrank/internal/adapters/repository"
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/pkg/logger"
	"github.com/okian/chartrank/pkg/metrics"
)

// Reconcile queues a recompute for every user whose skill records changed
// after their total was computed. Users already queued are skipped, as are
// users that do not fit the pending set; the next sweep picks them up.
// Without started workers the repairs run inline. It returns the number of
// users queued or repaired.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	const op = "service.reconcile"
	metrics.RecordReconcileSweep()

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stale, err := s.store.StaleUsers(ctx, s.queueSize)
	if err != nil {
		metrics.RecordReconcileError()
		return 0, errs.Wrap(op, err)
	}

	n := 0
	for _, id := range stale {
		if !started {
			if err := s.Recompute(ctx, id); err != nil {
				s.logger.Error(ctx, "inline repair failed", logger.String("user_id", id), logger.Error(err))
				metrics.RecordReconcileError()
				continue
			}
			metrics.RecordReconcileRepair()
			n++
			continue
		}
		if !s.pending.Mark(ctx, id) {
			continue
		}
		if err := s.jobs.Enqueue(ctx, model.NewRecomputeJob(id, triggerReconcile, s.now())); err != nil {
			s.pending.Done(ctx, id)
			s.logger.Warn(ctx, "recompute not queued", logger.String("user_id", id), logger.Error(err))
			continue
		}
		n++
	}
	metrics.UpdatePendingUsers(s.pending.Size())
	if n > 0 {
		s.logger.Info(ctx, "reconcile sweep", logger.Int("stale", len(stale)), logger.Int("queued", n))
	}
	return n, nil
}

// Recompute rebuilds one user's total from their records. Failures carry
// KindAggregateInconsistency: the stored total stays stale until a later
// repair succeeds.
func (s *Service) Recompute(ctx context.Context, userID string) error {
	const op = "service.recompute"
	var update rankUpdate
	now := s.now()
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		total, err := s.rebuild(ctx, tx, user, now, triggerReconcile)
		if err != nil {
			return err
		}
		update = rankUpdate{userID: userID, points: total.Points, display: user.Display}
		return nil
	})
	if err != nil {
		return errs.WrapKind(op, errs.ErrAggregateInconsistency, err)
	}
	s.applyRanks(ctx, []rankUpdate{update})
	return nil
}

// RunReconciler sweeps every interval until ctx is done. A non-positive
// interval returns immediately.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	log := s.logger.Named("reconciler")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Reconcile(ctx); err != nil {
				log.Error(ctx, "reconcile sweep failed", logger.Error(err))
			}
		}
	}
}
