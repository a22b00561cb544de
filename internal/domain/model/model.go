// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/scoring"
)

// User is a ranked player.
type User struct {
	ID      string `json:"id" validate:"required,max=64"`
	Name    string `json:"name" validate:"required,max=128"`
	Display bool   `json:"display"`
}

// UserTotal is a user's ranking score.
type UserTotal struct {
	UserID string  `json:"user_id"`
	Points float64 `json:"points"`
	// Direct marks an administrative override; aggregation leaves it alone.
	Direct     bool      `json:"is_override"`
	ComputedAt time.Time `json:"last_computed_at"`
}

// UnitItem is one chart difficulty inside a scoring unit.
type UnitItem struct {
	ChartID    string           `json:"chart_id" yaml:"chart" validate:"required"`
	Difficulty chart.Difficulty `json:"difficulty" yaml:"difficulty"`
}

// ScoringUnit is what a skill record is submitted against: a single chart
// difficulty or a course of several.
type ScoringUnit struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Items []UnitItem `json:"items"`
}

// Course is a named, ordered group of chart difficulties scored together.
type Course = ScoringUnit

// unitSep separates chart ID and difficulty code in implicit unit IDs.
const unitSep = ":"

// ChartUnitID returns the implicit scoring unit ID of one chart difficulty,
// e.g. "dm01:MAS".
func ChartUnitID(chartID string, d chart.Difficulty) string {
	return chartID + unitSep + d.Code()
}

// ParseChartUnitID splits an implicit unit ID. ok is false when id does not
// name a single chart difficulty.
func ParseChartUnitID(id string) (chartID string, d chart.Difficulty, ok bool) {
	i := strings.LastIndex(id, unitSep)
	if i <= 0 || i == len(id)-1 {
		return "", 0, false
	}
	d, err := chart.ParseDifficulty(id[i+1:])
	if err != nil {
		return "", 0, false
	}
	return id[:i], d, true
}

// ChartUnit returns the implicit single-chart unit.
func ChartUnit(c *chart.Chart, d chart.Difficulty) ScoringUnit {
	return ScoringUnit{
		ID:    ChartUnitID(c.ID, d),
		Title: c.FullTitle() + " [" + d.Code() + "]",
		Items: []UnitItem{{ChartID: c.ID, Difficulty: d}},
	}
}

// ChartIDs returns the distinct chart IDs referenced by the unit.
func (u ScoringUnit) ChartIDs() []string {
	seen := make(map[string]struct{}, len(u.Items))
	out := make([]string, 0, len(u.Items))
	for _, it := range u.Items {
		if _, ok := seen[it.ChartID]; ok {
			continue
		}
		seen[it.ChartID] = struct{}{}
		out = append(out, it.ChartID)
	}
	return out
}

// RawInput is the user-supplied performance data of one skill record.
type RawInput struct {
	Tier  string `json:"tier,omitempty" validate:"required_without=Score,max=16"`
	Score *int   `json:"score,omitempty" validate:"omitempty,gte=0"`
	// Comment is free text shown next to the record.
	Comment string `json:"comment,omitempty" validate:"max=256"`
}

// SkillRecord is one user's input against one scoring unit with its derived
// points. Points and Breakdown are always recomputed, never edited.
type SkillRecord struct {
	UserID    string            `json:"user_id"`
	UnitID    string            `json:"unit_id"`
	Input     RawInput          `json:"input"`
	Points    float64           `json:"points"`
	Breakdown scoring.Breakdown `json:"breakdown"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// UnitRankEntry is one row of a per-unit ranking.
type UnitRankEntry struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"user_id"`
	UserName string  `json:"user_name"`
	Points   float64 `json:"points"`
	Tier     string  `json:"tier"`
}

// RecomputeJob asks a worker to rebuild one user's total.
type RecomputeJob struct {
	ID       string
	UserID   string
	Reason   string
	QueuedAt time.Time
}

// NewRecomputeJob creates a job with a fresh ID.
func NewRecomputeJob(userID, reason string, now time.Time) RecomputeJob {
	return RecomputeJob{ID: uuid.NewString(), UserID: userID, Reason: reason, QueuedAt: now}
}
