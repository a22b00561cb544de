// Package scoring turns a skill record's raw input and the resolved charts of
// its scoring unit into a point value and a display breakdown.
package scoring

import (
	"math"
	"sort"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/errs"
)

// Default scoring configuration constants.
const (
	defaultMaxScore = 1000000
	pointPrecision  = 100
)

// DefaultTierMultipliers is used when no tier table is configured.
func DefaultTierMultipliers() map[string]float64 {
	return map[string]float64{
		"SSS": 4.5,
		"SS":  4.0,
		"S":   3.5,
		"AAA": 3.0,
		"AA":  2.5,
		"A":   2.0,
		"B":   1.5,
		"C":   1.0,
	}
}

// DefaultTierThresholds maps tiers to the minimum raw score that earns them.
func DefaultTierThresholds() map[string]int {
	return map[string]int{
		"SSS": 990000,
		"SS":  970000,
		"S":   950000,
		"AAA": 900000,
		"AA":  850000,
		"A":   800000,
		"B":   700000,
		"C":   0,
	}
}

// DefaultLevelBase maps chart levels to base points.
func DefaultLevelBase() map[int]float64 {
	out := make(map[int]float64, 15)
	for lv := 1; lv <= 15; lv++ {
		out[lv] = float64(lv * lv)
	}
	return out
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithTierMultipliers replaces the tier → multiplier table. Non-positive
// multipliers are dropped.
func WithTierMultipliers(table map[string]float64) Option {
	return func(c *Calculator) {
		if len(table) == 0 {
			return
		}
		c.multipliers = make(map[string]float64, len(table))
		for tier, m := range table {
			if m > 0 {
				c.multipliers[tier] = m
			}
		}
	}
}

// WithLevelBase replaces the level → base points table.
func WithLevelBase(table map[int]float64) Option {
	return func(c *Calculator) {
		if len(table) == 0 {
			return
		}
		c.levels = c.levels[:0]
		c.base = make(map[int]float64, len(table))
		for lv, b := range table {
			if lv > 0 && b >= 0 {
				c.base[lv] = b
				c.levels = append(c.levels, lv)
			}
		}
		sort.Ints(c.levels)
	}
}

// WithTierThresholds sets the tier → minimum score table used when the
// input only carries a raw score.
func WithTierThresholds(table map[string]int) Option {
	return func(c *Calculator) {
		if len(table) == 0 {
			return
		}
		c.thresholds = c.thresholds[:0]
		for tier, floor := range table {
			c.thresholds = append(c.thresholds, threshold{tier: tier, min: floor})
		}
		sortThresholds(c.thresholds)
	}
}

// WithMaxScore sets the largest accepted raw score.
func WithMaxScore(limit int) Option {
	return func(c *Calculator) {
		if limit > 0 {
			c.maxScore = limit
		}
	}
}

// Item is one chart difficulty of a scoring unit, resolved under the scoring
// pivot.
type Item struct {
	ChartID    string
	Difficulty chart.Difficulty
	Spec       chart.Spec
}

// Input is the raw performance input plus the resolved unit it targets.
// Either Tier or Score must be present; Tier wins when both are.
type Input struct {
	Tier  string
	Score *int
	Items []Item
}

// ItemBreakdown is the contribution of one chart difficulty.
type ItemBreakdown struct {
	ChartID    string  `json:"chart_id"`
	Difficulty string  `json:"difficulty"`
	Level      int     `json:"level"`
	Base       float64 `json:"base"`
}

// Breakdown explains how a point value was derived.
type Breakdown struct {
	Tier       string          `json:"tier"`
	Multiplier float64         `json:"multiplier"`
	Base       float64         `json:"base"`
	Items      []ItemBreakdown `json:"items"`
}

// Result contains the computed point value of one skill record.
type Result struct {
	Points    float64   `json:"points"`
	Breakdown Breakdown `json:"breakdown"`
}

// Scorer computes a point value from an input.
type Scorer interface {
	// Calculate is pure: identical inputs yield identical results.
	Calculate(in Input) (Result, error)
}

type threshold struct {
	tier string
	min  int
}

// Calculator implements Scorer as base(level) * multiplier(tier), summed over
// the unit's charts and rounded to two decimals.
type Calculator struct {
	multipliers map[string]float64
	base        map[int]float64
	levels      []int // sorted keys of base
	thresholds  []threshold
	maxScore    int
}

// NewCalculator creates a calculator with configuration options.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{maxScore: defaultMaxScore}
	WithTierMultipliers(DefaultTierMultipliers())(c)
	WithLevelBase(DefaultLevelBase())(c)
	WithTierThresholds(DefaultTierThresholds())(c)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate computes the points of in.
func (c *Calculator) Calculate(in Input) (Result, error) {
	const op = "scoring.calculate"
	if len(in.Items) == 0 {
		return Result{}, errs.Validation(op, map[string]string{"unit": "has no charts"})
	}

	tier, err := c.tier(in)
	if err != nil {
		return Result{}, err
	}
	mult := c.multipliers[tier]

	bd := Breakdown{Tier: tier, Multiplier: mult, Items: make([]ItemBreakdown, 0, len(in.Items))}
	for _, it := range in.Items {
		if !it.Spec.Offered {
			return Result{}, errs.New(op, errs.KindNotFound, "chart %q has no %s difficulty", it.ChartID, it.Difficulty.Code())
		}
		lv, ok := it.Spec.Level.Value()
		if !ok {
			return Result{}, errs.Validation(op, map[string]string{
				"level": "chart " + it.ChartID + " " + it.Difficulty.Code() + " has no revealed level",
			})
		}
		b, err := c.levelBase(lv)
		if err != nil {
			return Result{}, err
		}
		bd.Base += b
		bd.Items = append(bd.Items, ItemBreakdown{
			ChartID:    it.ChartID,
			Difficulty: it.Difficulty.Code(),
			Level:      lv,
			Base:       b,
		})
	}
	bd.Base = round(bd.Base)

	return Result{Points: round(bd.Base * mult), Breakdown: bd}, nil
}

// Tiers lists the configured tiers in descending multiplier order.
func (c *Calculator) Tiers() []string {
	out := make([]string, 0, len(c.multipliers))
	for t := range c.multipliers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if c.multipliers[out[i]] != c.multipliers[out[j]] {
			return c.multipliers[out[i]] > c.multipliers[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func (c *Calculator) tier(in Input) (string, error) {
	const op = "scoring.tier"
	if in.Tier != "" {
		if _, ok := c.multipliers[in.Tier]; !ok {
			return "", errs.Validation(op, map[string]string{"tier": "unknown tier " + in.Tier})
		}
		return in.Tier, nil
	}
	if in.Score == nil {
		return "", errs.Validation(op, map[string]string{"tier": "is required when score is absent"})
	}
	score := *in.Score
	if score < 0 || score > c.maxScore {
		return "", errs.Validation(op, map[string]string{"score": "is out of range"})
	}
	for _, th := range c.thresholds {
		if score < th.min {
			continue
		}
		if _, ok := c.multipliers[th.tier]; ok {
			return th.tier, nil
		}
	}
	return "", errs.Validation(op, map[string]string{"score": "is below the lowest tier"})
}

// levelBase looks the level up in the base table, falling back to the
// nearest lower configured level.
func (c *Calculator) levelBase(lv int) (float64, error) {
	if b, ok := c.base[lv]; ok {
		return b, nil
	}
	i := sort.SearchInts(c.levels, lv)
	if i == 0 {
		return 0, errs.Validation("scoring.level_base", map[string]string{"level": "has no base points"})
	}
	return c.base[c.levels[i-1]], nil
}

func sortThresholds(ts []threshold) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].min != ts[j].min {
			return ts[i].min > ts[j].min
		}
		return ts[i].tier < ts[j].tier
	})
}

func round(v float64) float64 {
	return math.Round(v*pointPrecision) / pointPrecision
}
