package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/scoring"
)

// specColumn is the stored form of one offered difficulty. Zero encodes a
// withheld value.
type specColumn struct {
	Level int `json:"level"`
	Notes int `json:"notes"`
}

// specsColumn maps difficulty codes to their stored spec. A difficulty that
// is not a key is not offered.
type specsColumn map[string]specColumn

// ChartRow is the charts table.
type ChartRow struct {
	ID              string `gorm:"column:id;primaryKey;size:64"`
	Number          int    `gorm:"column:number;index"`
	Era             int    `gorm:"column:era;index"`
	SortKey         string `gorm:"column:sort_key;size:255"`
	Title           string `gorm:"column:title;size:255;not null"`
	Subtitle        string `gorm:"column:subtitle;size:255"`
	Category        string `gorm:"column:category;size:64"`
	Limited         bool   `gorm:"column:limited;not null"`
	Display         bool   `gorm:"column:display;not null"`
	UnlockUnlimited string `gorm:"column:unlock_unlimited;size:16"`
	AddedOn         time.Time
	DeletedOn       *time.Time
	Specs           datatypes.JSON   `gorm:"column:specs;not null"`
	Legacy          []LegacyChartRow `gorm:"foreignKey:ChartID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the GORM default.
func (ChartRow) TableName() string { return "charts" }

// LegacyChartRow is the legacy_charts table.
type LegacyChartRow struct {
	ID        uint           `gorm:"column:id;primaryKey"`
	ChartID   string         `gorm:"column:chart_id;size:64;index;not null"`
	SpanStart time.Time      `gorm:"column:span_start;not null"`
	SpanEnd   time.Time      `gorm:"column:span_end;not null"`
	Specs     datatypes.JSON `gorm:"column:specs;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the GORM default.
func (LegacyChartRow) TableName() string { return "legacy_charts" }

// CourseRow is the courses table.
type CourseRow struct {
	ID        string          `gorm:"column:id;primaryKey;size:64"`
	Title     string          `gorm:"column:title;size:255"`
	Items     []CourseItemRow `gorm:"foreignKey:CourseID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the GORM default.
func (CourseRow) TableName() string { return "courses" }

// CourseItemRow is one chart difficulty of a course, in play order.
type CourseItemRow struct {
	CourseID   string `gorm:"column:course_id;primaryKey;size:64"`
	Position   int    `gorm:"column:position;primaryKey"`
	ChartID    string `gorm:"column:chart_id;size:64;index;not null"`
	Difficulty string `gorm:"column:difficulty;size:3;not null"`
}

// TableName overrides the GORM default.
func (CourseItemRow) TableName() string { return "course_items" }

// UserRow is the users table, including the ranking total.
type UserRow struct {
	ID      string `gorm:"column:id;primaryKey;size:64"`
	Name    string `gorm:"column:name;size:128;not null"`
	Display bool   `gorm:"column:display;not null"`
	// Point is the stored total; PointDirect marks an override.
	Point          float64    `gorm:"column:point;not null"`
	PointDirect    bool       `gorm:"column:point_direct;not null"`
	PointUpdatedAt *time.Time `gorm:"column:point_updated_at"`
	// SkillsChangedAt is bumped in every transaction that writes a skill
	// record of this user. A total older than it is stale.
	SkillsChangedAt *time.Time `gorm:"column:skills_changed_at;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the GORM default.
func (UserRow) TableName() string { return "users" }

// SkillRow is the skills table: one row per (user, unit).
type SkillRow struct {
	ID        uint           `gorm:"column:id;primaryKey"`
	UserID    string         `gorm:"column:user_id;size:64;not null;uniqueIndex:idx_skills_user_unit"`
	UnitID    string         `gorm:"column:unit_id;size:128;not null;uniqueIndex:idx_skills_user_unit;index"`
	Tier      string         `gorm:"column:tier;size:16"`
	Score     *int           `gorm:"column:score"`
	Comment   string         `gorm:"column:comment;size:256"`
	Point     float64        `gorm:"column:point;not null"`
	Breakdown datatypes.JSON `gorm:"column:breakdown"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the GORM default.
func (SkillRow) TableName() string { return "skills" }

// allModels lists every table for AutoMigrate.
func allModels() []any {
	return []any{&ChartRow{}, &LegacyChartRow{}, &CourseRow{}, &CourseItemRow{}, &UserRow{}, &SkillRow{}}
}

func encodeSpecs(s chart.SpecSet) (datatypes.JSON, error) {
	col := specsColumn{}
	for _, d := range chart.Difficulties() {
		sp := s.Get(d)
		if !sp.Offered {
			continue
		}
		col[d.Code()] = specColumn{Level: sp.Level.Raw(), Notes: sp.Notes.Raw()}
	}
	raw, err := json.Marshal(col)
	if err != nil {
		return nil, fmt.Errorf("encode specs: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decodeSpecs(raw datatypes.JSON) (chart.SpecSet, error) {
	var set chart.SpecSet
	if len(raw) == 0 {
		return set, nil
	}
	var col specsColumn
	if err := json.Unmarshal(raw, &col); err != nil {
		return set, fmt.Errorf("decode specs: %w", err)
	}
	for code, sp := range col {
		d, err := chart.ParseDifficulty(code)
		if err != nil {
			return set, fmt.Errorf("decode specs: %w", err)
		}
		set.Set(d, chart.Offer(sp.Level, sp.Notes))
	}
	return set, nil
}

func chartToRow(c *chart.Chart) (ChartRow, error) {
	specs, err := encodeSpecs(c.Current)
	if err != nil {
		return ChartRow{}, err
	}
	return ChartRow{
		ID:              c.ID,
		Number:          c.Number,
		Era:             c.Era,
		SortKey:         c.SortKey,
		Title:           c.Title,
		Subtitle:        c.Subtitle,
		Category:        c.Category,
		Limited:         c.Limited,
		Display:         !c.Hidden,
		UnlockUnlimited: string(c.UnlockUnlimited),
		AddedOn:         c.AddedOn,
		DeletedOn:       c.DeletedOn,
		Specs:           specs,
	}, nil
}

func rowToChart(r ChartRow) (*chart.Chart, error) {
	current, err := decodeSpecs(r.Specs)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", r.ID, err)
	}
	c := &chart.Chart{
		ID:              r.ID,
		Number:          r.Number,
		Era:             r.Era,
		SortKey:         r.SortKey,
		Title:           r.Title,
		Subtitle:        r.Subtitle,
		Category:        r.Category,
		Limited:         r.Limited,
		Hidden:          !r.Display,
		UnlockUnlimited: chart.UnlockType(r.UnlockUnlimited),
		AddedOn:         r.AddedOn,
		DeletedOn:       r.DeletedOn,
		Current:         current,
		UpdatedAt:       r.UpdatedAt,
	}
	for _, lr := range r.Legacy {
		l, err := rowToLegacy(lr)
		if err != nil {
			return nil, fmt.Errorf("chart %s: %w", r.ID, err)
		}
		c.Legacy = append(c.Legacy, l)
	}
	c.SortLegacy()
	return c, nil
}

func legacyToRow(chartID string, l chart.Legacy) (LegacyChartRow, error) {
	specs, err := encodeSpecs(l.Specs)
	if err != nil {
		return LegacyChartRow{}, err
	}
	return LegacyChartRow{ID: l.ID, ChartID: chartID, SpanStart: l.Start, SpanEnd: l.End, Specs: specs}, nil
}

func rowToLegacy(r LegacyChartRow) (chart.Legacy, error) {
	specs, err := decodeSpecs(r.Specs)
	if err != nil {
		return chart.Legacy{}, err
	}
	return chart.Legacy{ID: r.ID, Start: r.SpanStart, End: r.SpanEnd, Specs: specs}, nil
}

func courseToRow(c model.Course) CourseRow {
	row := CourseRow{ID: c.ID, Title: c.Title, Items: make([]CourseItemRow, 0, len(c.Items))}
	for i, it := range c.Items {
		row.Items = append(row.Items, CourseItemRow{
			CourseID:   c.ID,
			Position:   i,
			ChartID:    it.ChartID,
			Difficulty: it.Difficulty.Code(),
		})
	}
	return row
}

func rowToCourse(r CourseRow) (model.Course, error) {
	c := model.Course{ID: r.ID, Title: r.Title, Items: make([]model.UnitItem, 0, len(r.Items))}
	for _, it := range r.Items {
		d, err := chart.ParseDifficulty(it.Difficulty)
		if err != nil {
			return model.Course{}, fmt.Errorf("course %s: %w", r.ID, err)
		}
		c.Items = append(c.Items, model.UnitItem{ChartID: it.ChartID, Difficulty: d})
	}
	return c, nil
}

func rowToUser(r UserRow) model.User {
	return model.User{ID: r.ID, Name: r.Name, Display: r.Display}
}

func rowToTotal(r UserRow) model.UserTotal {
	t := model.UserTotal{UserID: r.ID, Points: r.Point, Direct: r.PointDirect}
	if r.PointUpdatedAt != nil {
		t.ComputedAt = *r.PointUpdatedAt
	}
	return t
}

func skillToRow(rec model.SkillRecord) (SkillRow, error) {
	bd, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return SkillRow{}, fmt.Errorf("encode breakdown: %w", err)
	}
	return SkillRow{
		UserID:    rec.UserID,
		UnitID:    rec.UnitID,
		Tier:      rec.Input.Tier,
		Score:     rec.Input.Score,
		Comment:   rec.Input.Comment,
		Point:     rec.Points,
		Breakdown: datatypes.JSON(bd),
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func rowToSkill(r SkillRow) (model.SkillRecord, error) {
	rec := model.SkillRecord{
		UserID:    r.UserID,
		UnitID:    r.UnitID,
		Input:     model.RawInput{Tier: r.Tier, Score: r.Score, Comment: r.Comment},
		Points:    r.Point,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Breakdown) > 0 {
		var bd scoring.Breakdown
		if err := json.Unmarshal(r.Breakdown, &bd); err != nil {
			return model.SkillRecord{}, fmt.Errorf("decode breakdown: %w", err)
		}
		rec.Breakdown = bd
	}
	return rec, nil
}
