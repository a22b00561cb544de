package chart

import (
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/pivot"
)

// ValidateLegacy checks candidate against the versions already stored for a
// chart. A version needs Start before End and needs to be disjoint from every
// other version; touching intervals ([a,b) and [b,c)) are disjoint.
// Existing versions with the candidate's ID are skipped so an update does not
// collide with itself.
func ValidateLegacy(existing []Legacy, candidate Legacy) error {
	const op = "chart.validate_legacy"
	start, end := pivot.Day(candidate.Start), pivot.Day(candidate.End)
	fields := map[string]string{}
	if candidate.Start.IsZero() {
		fields["span_start"] = "is required"
	}
	if candidate.End.IsZero() {
		fields["span_end"] = "is required"
	}
	if len(fields) == 0 && !start.Before(end) {
		fields["span_end"] = "must be after span_start"
	}
	if len(fields) > 0 {
		return errs.Validation(op, fields)
	}
	if !candidate.Specs.Any() {
		return errs.Validation(op, map[string]string{"difficulties": "must offer at least one difficulty"})
	}
	for _, l := range existing {
		if candidate.ID != 0 && l.ID == candidate.ID {
			continue
		}
		if start.Before(pivot.Day(l.End)) && pivot.Day(l.Start).Before(end) {
			return errs.New(op, errs.KindIntegrity,
				"interval [%s, %s) overlaps [%s, %s)",
				start.Format(pivot.Layout), end.Format(pivot.Layout),
				pivot.Day(l.Start).Format(pivot.Layout), pivot.Day(l.End).Format(pivot.Layout))
		}
	}
	return nil
}

// ValidateLegacySet checks a whole set of versions pairwise.
func ValidateLegacySet(versions []Legacy) error {
	for i := range versions {
		if err := ValidateLegacy(versions[:i], versions[i]); err != nil {
			return err
		}
	}
	return nil
}
