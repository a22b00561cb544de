package chart

import (
	"sort"
	"time"

	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/pivot"
)

// UnlockType describes how the UNL difficulty becomes playable.
type UnlockType string

// Unlock types. UnlockNever hides UNL from chart views.
const (
	UnlockNormal  UnlockType = "normal"
	UnlockSpecial UnlockType = "special"
	UnlockNever   UnlockType = "never"
)

// Chart is one piece of music with its current per-difficulty attributes
// and zero or more historical overrides.
type Chart struct {
	// ID is the stable text key, e.g. "dm01".
	ID       string
	Number   int
	Era      int
	SortKey  string
	Title    string
	Subtitle string
	Category string

	Limited         bool
	Hidden          bool
	UnlockUnlimited UnlockType

	AddedOn   time.Time
	DeletedOn *time.Time

	Current SpecSet
	// Legacy is kept sorted by Start; intervals never overlap.
	Legacy []Legacy

	UpdatedAt time.Time
}

// Legacy is a historical version of a chart valid over [Start, End).
type Legacy struct {
	ID    uint
	Start time.Time
	End   time.Time
	Specs SpecSet
}

// Covers reports whether p falls inside the version's validity interval.
func (l Legacy) Covers(p pivot.Date) bool {
	return p.Within(l.Start, l.End)
}

// FullTitle joins title and subtitle.
func (c *Chart) FullTitle() string {
	if c.Subtitle == "" {
		return c.Title
	}
	return c.Title + " " + c.Subtitle
}

// SortLegacy orders legacy versions by start date.
func (c *Chart) SortLegacy() {
	sort.SliceStable(c.Legacy, func(i, j int) bool {
		return c.Legacy[i].Start.Before(c.Legacy[j].Start)
	})
}

// version returns the legacy version covering p, or nil when the current
// attributes apply.
func (c *Chart) version(p pivot.Date) *Legacy {
	if !p.IsSet() {
		return nil
	}
	for i := range c.Legacy {
		if c.Legacy[i].Covers(p) {
			return &c.Legacy[i]
		}
	}
	return nil
}

// Specs returns the full spec set in effect at p.
func (c *Chart) Specs(p pivot.Date) SpecSet {
	if v := c.version(p); v != nil {
		return v.Specs
	}
	return c.Current
}

// Spec returns the resolved spec of d at p. The result may be unoffered.
func (c *Chart) Spec(d Difficulty, p pivot.Date) Spec {
	return c.Specs(p).Get(d)
}

// Resolve returns the resolved spec of d at p, or a NotFound error when the
// chart does not offer d at p.
func (c *Chart) Resolve(d Difficulty, p pivot.Date) (Spec, error) {
	const op = "chart.resolve"
	if !d.Valid() {
		return Spec{}, errs.New(op, errs.KindNotFound, "unknown difficulty %d", int(d))
	}
	sp := c.Spec(d, p)
	if !sp.Offered {
		return Spec{}, errs.New(op, errs.KindNotFound, "chart %q has no %s difficulty", c.ID, d.Code())
	}
	return sp, nil
}

// HasDifficulty reports whether d is populated in the current attributes or
// in any historical version.
func (c *Chart) HasDifficulty(d Difficulty) bool {
	if c.Current.Get(d).Offered {
		return true
	}
	for _, l := range c.Legacy {
		if l.Specs.Get(d).Offered {
			return true
		}
	}
	return false
}

// ExistsDisplayed reports whether d is offered in the version resolved at p.
// A withheld level still exists.
func (c *Chart) ExistsDisplayed(d Difficulty, p pivot.Date) bool {
	return c.Spec(d, p).Offered
}

// IsDeleted reports whether the deletion date is on or before the pivot, or
// on or before today when no pivot is set.
func (c *Chart) IsDeleted(p pivot.Date, now time.Time) bool {
	if c.DeletedOn == nil {
		return false
	}
	return !pivot.Day(*c.DeletedOn).After(p.Reference(now))
}

// AvailableOn reports whether the chart was added on or before the reference
// day and not yet deleted on it.
func (c *Chart) AvailableOn(p pivot.Date, now time.Time) bool {
	ref := p.Reference(now)
	if pivot.Day(c.AddedOn).After(ref) {
		return false
	}
	return !c.IsDeleted(p, now)
}

// MaxNotes returns the largest known note count over offered difficulties
// at p, or 0 when none is known.
func (c *Chart) MaxNotes(p pivot.Date) int {
	best := 0
	for _, sp := range c.Specs(p) {
		if n, ok := sp.Notes.Value(); sp.Offered && ok && n > best {
			best = n
		}
	}
	return best
}

// MaxDifficulty returns UNL when it exists at p, MAS otherwise.
func (c *Chart) MaxDifficulty(p pivot.Date) Difficulty {
	if c.ExistsDisplayed(Unlimited, p) {
		return Unlimited
	}
	return Master
}

// LegacySpec returns d's spec in the earliest historical version.
func (c *Chart) LegacySpec(d Difficulty) (Spec, bool) {
	if len(c.Legacy) == 0 {
		return Spec{}, false
	}
	sp := c.Legacy[0].Specs.Get(d)
	return sp, sp.Offered
}

// HasLegacy reports whether the earliest historical version offers d.
func (c *Chart) HasLegacy(d Difficulty) bool {
	_, ok := c.LegacySpec(d)
	return ok
}

// Visible reports whether d should appear in chart views at p.
func (c *Chart) Visible(d Difficulty, p pivot.Date) bool {
	if d == Unlimited && c.UnlockUnlimited == UnlockNever {
		return false
	}
	return c.ExistsDisplayed(d, p)
}
