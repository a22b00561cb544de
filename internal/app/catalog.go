package service

import (
	"context"

	repository "github.com/okian/chartrank/internal/adapters/repository"
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/skillset"
)

// loadCatalog snapshots the units named by unitIDs and every chart they
// reference. Unit IDs that parse as "chartID:DIFF" are implicit chart units;
// anything else must be a stored course. Missing charts are left out so that
// scoring reports them as not found.
func loadCatalog(ctx context.Context, st repository.Store, unitIDs []string) (*skillset.MapCatalog, error) {
	const op = "service.load_catalog"
	cat := skillset.NewMapCatalog()
	seen := map[string]struct{}{}
	var chartIDs []string
	addChart := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		chartIDs = append(chartIDs, id)
	}

	for _, id := range unitIDs {
		if _, ok := cat.Units[id]; ok {
			continue
		}
		if chartID, _, ok := model.ParseChartUnitID(id); ok {
			addChart(chartID)
			continue
		}
		course, err := st.GetCourse(ctx, id)
		if err != nil {
			return nil, errs.Wrap(op, err)
		}
		cat.AddUnit(course)
		for _, cid := range course.ChartIDs() {
			addChart(cid)
		}
	}

	charts, err := st.ChartsByIDs(ctx, chartIDs)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	for _, c := range charts {
		cat.AddChart(c)
	}
	return cat, nil
}

// unitIDsOf returns the distinct unit IDs of records plus extra.
func unitIDsOf(records []model.SkillRecord, extra ...string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(records)+len(extra))
	for _, id := range extra {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, r := range records {
		if _, ok := seen[r.UnitID]; !ok {
			seen[r.UnitID] = struct{}{}
			out = append(out, r.UnitID)
		}
	}
	return out
}
