// Package skillset aggregates a user's skill records into a ranking total.
//
// Every record is rescored against its own unit's chart state under the
// scoring pivot, which is configured once and is independent of whatever
// display pivot a request carries.
package skillset

import (
	"fmt"
	"math"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/pivot"
	"github.com/okian/chartrank/internal/domain/scoring"
)

// Catalog looks up scoring units and charts.
type Catalog interface {
	Unit(id string) (model.ScoringUnit, error)
	Chart(id string) (*chart.Chart, error)
}

// MapCatalog is an in-memory Catalog snapshot. Unit IDs of the form
// "chartID:DIFF" resolve to implicit single-chart units.
type MapCatalog struct {
	Units  map[string]model.ScoringUnit
	Charts map[string]*chart.Chart
}

// NewMapCatalog returns an empty catalog.
func NewMapCatalog() *MapCatalog {
	return &MapCatalog{
		Units:  make(map[string]model.ScoringUnit),
		Charts: make(map[string]*chart.Chart),
	}
}

// AddChart stores c.
func (m *MapCatalog) AddChart(c *chart.Chart) { m.Charts[c.ID] = c }

// AddUnit stores u.
func (m *MapCatalog) AddUnit(u model.ScoringUnit) { m.Units[u.ID] = u }

// Unit implements Catalog.
func (m *MapCatalog) Unit(id string) (model.ScoringUnit, error) {
	if u, ok := m.Units[id]; ok {
		return u, nil
	}
	chartID, d, ok := model.ParseChartUnitID(id)
	if !ok {
		return model.ScoringUnit{}, errs.New("skillset.unit", errs.KindNotFound, "scoring unit %q not found", id)
	}
	return model.ScoringUnit{ID: id, Items: []model.UnitItem{{ChartID: chartID, Difficulty: d}}}, nil
}

// Chart implements Catalog.
func (m *MapCatalog) Chart(id string) (*chart.Chart, error) {
	if c, ok := m.Charts[id]; ok {
		return c, nil
	}
	return nil, errs.New("skillset.chart", errs.KindNotFound, "chart %q not found", id)
}

// ResolveItems resolves every item of unit at p.
func ResolveItems(cat Catalog, unit model.ScoringUnit, p pivot.Date) ([]scoring.Item, error) {
	const op = "skillset.resolve_items"
	items := make([]scoring.Item, 0, len(unit.Items))
	for _, it := range unit.Items {
		c, err := cat.Chart(it.ChartID)
		if err != nil {
			return nil, errs.Wrap(op, err)
		}
		sp, err := c.Resolve(it.Difficulty, p)
		if err != nil {
			return nil, errs.Wrap(op, err)
		}
		items = append(items, scoring.Item{ChartID: it.ChartID, Difficulty: it.Difficulty, Spec: sp})
	}
	return items, nil
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithScoringPivot sets the pivot under which records are scored.
func WithScoringPivot(p pivot.Date) Option {
	return func(a *Aggregator) { a.pivot = p }
}

// Aggregator scores records and sums totals.
type Aggregator struct {
	scorer scoring.Scorer
	pivot  pivot.Date
}

// New creates an aggregator around scorer.
func New(scorer scoring.Scorer, opts ...Option) *Aggregator {
	a := &Aggregator{scorer: scorer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Pivot returns the scoring pivot.
func (a *Aggregator) Pivot() pivot.Date { return a.pivot }

// Score computes the points of in against unitID.
func (a *Aggregator) Score(cat Catalog, unitID string, in model.RawInput) (scoring.Result, error) {
	const op = "skillset.score"
	unit, err := cat.Unit(unitID)
	if err != nil {
		return scoring.Result{}, errs.Wrap(op, err)
	}
	items, err := ResolveItems(cat, unit, a.pivot)
	if err != nil {
		return scoring.Result{}, err
	}
	res, err := a.scorer.Calculate(scoring.Input{Tier: in.Tier, Score: in.Score, Items: items})
	if err != nil {
		return scoring.Result{}, errs.Wrap(op, err)
	}
	return res, nil
}

// Total is the outcome of a recompute: the sum and the rescored records.
type Total struct {
	Points  float64
	Records []model.SkillRecord
}

// RecomputeTotal rescores every record and sums the points. It has no side
// effects; the caller persists the result. An empty set totals 0.
func (a *Aggregator) RecomputeTotal(cat Catalog, records []model.SkillRecord) (Total, error) {
	const op = "skillset.recompute_total"
	out := Total{Records: make([]model.SkillRecord, 0, len(records))}
	var sum float64
	for _, rec := range records {
		res, err := a.Score(cat, rec.UnitID, rec.Input)
		if err != nil {
			return Total{}, errs.Wrap(op, fmt.Errorf("unit %s: %w", rec.UnitID, err))
		}
		rec.Points = res.Points
		rec.Breakdown = res.Breakdown
		out.Records = append(out.Records, rec)
		sum += res.Points
	}
	out.Points = math.Round(sum*100) / 100
	return out, nil
}
