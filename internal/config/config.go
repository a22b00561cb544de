// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and env vars over the defaults.
// - Derived values (pivot dates, level table) are parsed by accessor methods
//   so validation and use share one code path.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/okian/chartrank/internal/domain/pivot"
	"github.com/okian/chartrank/internal/domain/scoring"
)

// Supported values for enumerated keys.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	OrderEra    = "era"
	OrderNumber = "number"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	// WorkerCount sets the number of reconciliation workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the recompute job queue.
	QueueSize int `koanf:"queue_size"`
	// PendingSize bounds the set of users with a job in flight.
	PendingSize int `koanf:"pending_size"`
	// ReconcileIntervalMS is the sweep period; 0 disables the periodic sweep.
	ReconcileIntervalMS int `koanf:"reconcile_interval_ms"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DateLowLimit is the earliest accepted pivot date, YYYYMMDD.
	DateLowLimit string `koanf:"date_low_limit"`
	// LevelFormat is the printf format for known levels.
	LevelFormat string `koanf:"level_format"`
	// OrderBy sorts active chart lists: era or number.
	OrderBy string `koanf:"order_by"`
	// ExcludeLimited drops limited charts from active lists by default.
	ExcludeLimited bool `koanf:"exclude_limited"`

	// ScoringPivotDate is the pivot in effect when scoring, YYYYMMDD. Empty
	// scores against current chart attributes.
	ScoringPivotDate string `koanf:"scoring_pivot_date"`

	TierMultipliers map[string]float64 `koanf:"tier_multipliers"`
	// LevelBasePoints is keyed by level as text; koanf map keys are strings.
	LevelBasePoints map[string]float64 `koanf:"level_base_points"`
	TierThresholds  map[string]int     `koanf:"tier_thresholds"`
	MaxScore        int                `koanf:"max_score"`
}

// New creates a Config with defaults.
func New() *Config {
	base := scoring.DefaultLevelBase()
	levels := make(map[string]float64, len(base))
	for lv, pts := range base {
		levels[strconv.Itoa(lv)] = pts
	}
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBDriver:            DriverSQLite,
		DBDSN:               "chartrank.db",
		WorkerCount:         2,
		QueueSize:           10_000,
		PendingSize:         50_000,
		ReconcileIntervalMS: 60_000,
		MaxLeaderboardLimit: 100,
		DateLowLimit:        "20130101",
		LevelFormat:         "%d",
		OrderBy:             OrderEra,
		ExcludeLimited:      false,
		TierMultipliers:     scoring.DefaultTierMultipliers(),
		LevelBasePoints:     levels,
		TierThresholds:      scoring.DefaultTierThresholds(),
		MaxScore:            1_000_000,
	}
}

// LowLimit returns the parsed DateLowLimit; zero when unset.
func (c *Config) LowLimit() (time.Time, error) {
	d, err := pivot.Parse(c.DateLowLimit)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date_low_limit %q", ErrInvalidConfig, c.DateLowLimit)
	}
	t, _ := d.Time()
	return t, nil
}

// ScoringPivot returns the parsed ScoringPivotDate; unset when empty.
func (c *Config) ScoringPivot() (pivot.Date, error) {
	d, err := pivot.Parse(c.ScoringPivotDate)
	if err != nil {
		return pivot.None(), fmt.Errorf("%w: scoring_pivot_date %q", ErrInvalidConfig, c.ScoringPivotDate)
	}
	return d, nil
}

// LevelBase returns the level table keyed by integer level.
func (c *Config) LevelBase() (map[int]float64, error) {
	out := make(map[int]float64, len(c.LevelBasePoints))
	for k, v := range c.LevelBasePoints {
		lv, err := strconv.Atoi(k)
		if err != nil || lv < 1 {
			return nil, fmt.Errorf("%w: level_base_points key %q is not a positive integer", ErrInvalidConfig, k)
		}
		out[lv] = v
	}
	return out, nil
}

// ReconcileInterval returns the sweep period.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMS) * time.Millisecond
}

// ScoringOptions builds calculator options from the scoring tables.
func (c *Config) ScoringOptions() ([]scoring.Option, error) {
	base, err := c.LevelBase()
	if err != nil {
		return nil, err
	}
	return []scoring.Option{
		scoring.WithTierMultipliers(c.TierMultipliers),
		scoring.WithLevelBase(base),
		scoring.WithTierThresholds(c.TierThresholds),
		scoring.WithMaxScore(c.MaxScore),
	}, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != DriverSQLite && c.DBDriver != DriverPostgres:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	case c.OrderBy != OrderEra && c.OrderBy != OrderNumber:
		return fmt.Errorf("%w: unknown order_by %q", ErrInvalidConfig, c.OrderBy)
	case len(c.TierMultipliers) == 0:
		return fmt.Errorf("%w: tier_multipliers must not be empty", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.ReconcileIntervalMS < 0:
		return fmt.Errorf("%w: reconcile_interval_ms must not be negative", ErrInvalidConfig)
	}
	if _, err := c.LowLimit(); err != nil {
		return err
	}
	if _, err := c.ScoringPivot(); err != nil {
		return err
	}
	if _, err := c.LevelBase(); err != nil {
		return err
	}
	return nil
}
