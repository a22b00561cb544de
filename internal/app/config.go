package service

import (
	"github.com/okian/chartrank/internal/config"
	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/scoring"
)

// OptionsFromConfig translates process configuration into service options.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	scoringOpts, err := cfg.ScoringOptions()
	if err != nil {
		return nil, err
	}
	low, err := cfg.LowLimit()
	if err != nil {
		return nil, err
	}
	scoringPivot, err := cfg.ScoringPivot()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithPendingSize(cfg.PendingSize),
		WithScorer(scoring.NewCalculator(scoringOpts...)),
		WithScoringPivot(scoringPivot),
		WithDateLowLimit(low),
		WithLevelFormat(cfg.LevelFormat),
		WithOrder(chart.Order(cfg.OrderBy)),
		WithExcludeLimited(cfg.ExcludeLimited),
	}, nil
}
