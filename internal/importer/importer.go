// Package importer loads chart master data (charts, historical versions and
// courses) from YAML into the ranking service.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/pivot"
	"github.com/okian/chartrank/internal/validation"
	"github.com/okian/chartrank/pkg/logger"
)

// Target receives imported master data.
type Target interface {
	GetChart(ctx context.Context, chartID string) (*chart.Chart, error)
	// ImportChart writes c and legacy atomically.
	ImportChart(ctx context.Context, c *chart.Chart, legacy []chart.Legacy) (bool, []chart.Legacy, error)
	UpsertCourse(ctx context.Context, c model.Course) error
}

// Report counts what an import changed.
type Report struct {
	ChartsCreated int `json:"charts_created"`
	ChartsUpdated int `json:"charts_updated"`
	LegacySaved   int `json:"legacy_saved"`
	CoursesSaved  int `json:"courses_saved"`
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the importer logger.
func WithLogger(l logger.Logger) Option {
	return func(im *Importer) {
		if l != nil {
			im.logger = l
		}
	}
}

// WithClock overrides the time source used for default added-on dates.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) {
		if now != nil {
			im.clock = now
		}
	}
}

// Importer applies documents to a Target.
type Importer struct {
	target    Target
	validator *validation.Validator
	logger    logger.Logger
	clock     func() time.Time
}

// New creates an importer writing to target.
func New(target Target, opts ...Option) *Importer {
	im := &Importer{target: target, validator: validation.New(), clock: time.Now}
	for _, opt := range opts {
		opt(im)
	}
	if im.logger == nil {
		im.logger = logger.Get().Named("importer")
	}
	return im
}

// ImportFile decodes and imports the file at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer func() { _ = f.Close() }()
	doc, err := Decode(f)
	if err != nil {
		return Report{}, err
	}
	return im.Import(ctx, doc)
}

// Import validates doc, then writes charts, their historical versions and
// courses in that order. Each chart and its versions form one transaction;
// the first failure stops the import and the report covers what was written
// before it.
func (im *Importer) Import(ctx context.Context, doc *Document) (Report, error) {
	const op = "importer.import"
	var rep Report
	if err := im.validator.Validate(op, doc); err != nil {
		return rep, err
	}
	for _, cd := range doc.Charts {
		if err := im.importChart(ctx, cd, &rep); err != nil {
			return rep, errs.Wrap(op, fmt.Errorf("chart %s: %w", cd.ID, err))
		}
	}
	for _, cd := range doc.Courses {
		c, err := courseOf(cd)
		if err != nil {
			return rep, errs.Wrap(op, fmt.Errorf("course %s: %w", cd.ID, err))
		}
		if err := im.target.UpsertCourse(ctx, c); err != nil {
			return rep, errs.Wrap(op, fmt.Errorf("course %s: %w", cd.ID, err))
		}
		rep.CoursesSaved++
	}
	im.logger.Info(ctx, "import finished",
		logger.Int("charts_created", rep.ChartsCreated),
		logger.Int("charts_updated", rep.ChartsUpdated),
		logger.Int("legacy_saved", rep.LegacySaved),
		logger.Int("courses_saved", rep.CoursesSaved),
	)
	return rep, nil
}

func (im *Importer) importChart(ctx context.Context, cd ChartDoc, rep *Report) error {
	existing, err := im.target.GetChart(ctx, cd.ID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		existing = nil
	case err != nil:
		return err
	}

	c, err := im.merge(existing, cd)
	if err != nil {
		return err
	}
	legacy := make([]chart.Legacy, 0, len(cd.Legacy))
	for _, ld := range cd.Legacy {
		l := chart.Legacy{Start: ld.Start.Time, End: ld.End.Time}
		if l.Specs, err = specSet(chart.SpecSet{}, ld.Difficulties); err != nil {
			return err
		}
		// Re-importing the same interval updates that version in place.
		if existing != nil {
			for _, prev := range existing.Legacy {
				if prev.Start.Equal(l.Start) && prev.End.Equal(l.End) {
					l.ID = prev.ID
				}
			}
		}
		legacy = append(legacy, l)
	}

	created, saved, err := im.target.ImportChart(ctx, c, legacy)
	if err != nil {
		return err
	}
	if created {
		rep.ChartsCreated++
	} else {
		rep.ChartsUpdated++
	}
	rep.LegacySaved += len(saved)
	return nil
}

// merge overlays cd on the stored chart. New charts are hidden unless the
// document publishes them.
func (im *Importer) merge(existing *chart.Chart, cd ChartDoc) (*chart.Chart, error) {
	c := &chart.Chart{Hidden: true, UnlockUnlimited: chart.UnlockSpecial}
	if existing != nil {
		cp := *existing
		c = &cp
	} else {
		c.AddedOn = pivot.Day(im.clock())
	}
	c.ID = cd.ID
	c.Number = cd.Number
	c.Era = cd.Era
	c.SortKey = cd.SortKey
	c.Title = cd.Title
	c.Subtitle = cd.Subtitle
	c.Category = cd.Category
	c.Limited = cd.Limited
	if cd.Display != nil {
		c.Hidden = !*cd.Display
	}
	if cd.UnlockUnlimited != "" {
		c.UnlockUnlimited = chart.UnlockType(cd.UnlockUnlimited)
	}
	if cd.AddedOn != nil {
		c.AddedOn = cd.AddedOn.Time
	}
	if cd.DeletedOn != nil {
		t := cd.DeletedOn.Time
		c.DeletedOn = &t
	}
	var err error
	if c.Current, err = specSet(c.Current, cd.Difficulties); err != nil {
		return nil, err
	}
	return c, nil
}

func courseOf(cd CourseDoc) (model.Course, error) {
	c := model.Course{ID: cd.ID, Title: cd.Title, Items: make([]model.UnitItem, 0, len(cd.Items))}
	for _, it := range cd.Items {
		d, err := chart.ParseDifficulty(it.Difficulty)
		if err != nil {
			return model.Course{}, err
		}
		c.Items = append(c.Items, model.UnitItem{ChartID: it.Chart, Difficulty: d})
	}
	return c, nil
}
