package importer

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/pivot"
)

// Document is a chart master file.
type Document struct {
	Charts  []ChartDoc  `yaml:"charts" json:"charts" validate:"dive"`
	Courses []CourseDoc `yaml:"courses" json:"courses" validate:"dive"`
}

// ChartDoc is one chart entry. Omitted difficulties are left as stored.
type ChartDoc struct {
	ID       string `yaml:"id" json:"id" validate:"required,max=64"`
	Number   int    `yaml:"number" json:"number" validate:"gte=0"`
	Era      int    `yaml:"era" json:"era" validate:"gte=0"`
	SortKey  string `yaml:"sort_key" json:"sort_key"`
	Title    string `yaml:"title" json:"title" validate:"required"`
	Subtitle string `yaml:"subtitle" json:"subtitle"`
	Category string `yaml:"category" json:"category"`
	Limited  bool   `yaml:"limited" json:"limited"`
	// Display publishes the chart. New charts without it start hidden.
	Display         *bool  `yaml:"display" json:"display"`
	UnlockUnlimited string `yaml:"unlock_unlimited" json:"unlock_unlimited" validate:"omitempty,oneof=normal special never"`
	AddedOn         *Day   `yaml:"added_on" json:"added_on"`
	DeletedOn       *Day   `yaml:"deleted_on" json:"deleted_on"`

	Difficulties map[string]SpecDoc `yaml:"difficulties" json:"difficulties" validate:"dive"`
	Legacy       []LegacyDoc        `yaml:"legacy" json:"legacy" validate:"dive"`
}

// SpecDoc holds one difficulty. A missing level or note count is withheld.
type SpecDoc struct {
	Level *int `yaml:"level" json:"level" validate:"omitempty,gte=1"`
	Notes *int `yaml:"notes" json:"notes" validate:"omitempty,gte=1"`
}

// LegacyDoc is a historical version valid over [start, end).
type LegacyDoc struct {
	Start        Day                `yaml:"start" json:"start"`
	End          Day                `yaml:"end" json:"end"`
	Difficulties map[string]SpecDoc `yaml:"difficulties" json:"difficulties" validate:"required,dive"`
}

// CourseDoc is a course over several chart difficulties.
type CourseDoc struct {
	ID    string    `yaml:"id" json:"id" validate:"required,max=64"`
	Title string    `yaml:"title" json:"title" validate:"required"`
	Items []ItemDoc `yaml:"items" json:"items" validate:"min=1,dive"`
}

// ItemDoc is one chart difficulty of a course.
type ItemDoc struct {
	Chart      string `yaml:"chart" json:"chart" validate:"required"`
	Difficulty string `yaml:"difficulty" json:"difficulty" validate:"required"`
}

// Day is a calendar date written as YYYYMMDD or YYYY-MM-DD.
type Day struct {
	time.Time
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Day) UnmarshalYAML(node *yaml.Node) error {
	p, err := pivot.Parse(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a date", node.Line, node.Value)
	}
	t, _ := p.Time()
	d.Time = t
	return nil
}

// Decode reads a document. Unknown keys are rejected.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &doc, nil
}

func specSet(base chart.SpecSet, docs map[string]SpecDoc) (chart.SpecSet, error) {
	for code, sd := range docs {
		d, err := chart.ParseDifficulty(code)
		if err != nil {
			return base, err
		}
		sp := chart.Spec{Offered: true, Level: chart.Withheld(), Notes: chart.Withheld()}
		if sd.Level != nil {
			sp.Level = chart.Known(*sd.Level)
		}
		if sd.Notes != nil {
			sp.Notes = chart.Known(*sd.Notes)
		}
		base.Set(d, sp)
	}
	return base, nil
}
