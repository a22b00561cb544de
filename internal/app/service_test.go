package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	repository "github.com/okian/chartrank/internal/adapters/repository"
	service "github.com/okian/chartrank/internal/app"
	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/errs"
	"github.com/okian/chartrank/internal/domain/model"
	"github.com/okian/chartrank/internal/domain/pivot"
	"github.com/okian/chartrank/internal/domain/scoring"
	"github.com/okian/chartrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// fakeClock advances one second per reading.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func testCalculator() *scoring.Calculator {
	return scoring.NewCalculator(
		scoring.WithTierMultipliers(map[string]float64{"AAA": 3.4, "AA": 2.15, "A": 1}),
		scoring.WithLevelBase(map[int]float64{10: 100, 12: 100, 13: 120}),
		scoring.WithTierThresholds(map[string]int{"AAA": 900, "AA": 800, "A": 0}),
		scoring.WithMaxScore(1000),
	)
}

func newChart(id string, number, masLevel int) *chart.Chart {
	c := &chart.Chart{ID: id, Number: number, Era: 1, Title: id, AddedOn: day(2019, 1, 1)}
	c.Current.Set(chart.Master, chart.Offer(masLevel, 900))
	return c
}

type fixture struct {
	store *repository.GormStore
	svc   *service.Service
}

func newFixture(t *testing.T, opts ...service.Option) fixture {
	ctx := context.Background()
	st, err := repository.Open(ctx, repository.DriverSQLite, filepath.Join(t.TempDir(), "svc.db"))
	So(err, ShouldBeNil)
	Reset(func() { _ = st.Close() })

	clock := &fakeClock{now: day(2024, 1, 1)}
	base := []service.Option{
		service.WithScorer(testCalculator()),
		service.WithClock(clock.Now),
		service.WithLogger(logger.Nop()),
		service.WithDateLowLimit(day(2013, 1, 1)),
	}
	svc := service.New(st, append(base, opts...)...)

	_, err = svc.UpsertChart(ctx, newChart("dm01", 1, 12))
	So(err, ShouldBeNil)
	_, err = svc.UpsertChart(ctx, newChart("dm02", 2, 12))
	So(err, ShouldBeNil)
	So(svc.RegisterUser(ctx, model.User{ID: "u1", Name: "Alice", Display: true}), ShouldBeNil)
	So(svc.RegisterUser(ctx, model.User{ID: "u2", Name: "Bob", Display: true}), ShouldBeNil)
	return fixture{store: st, svc: svc}
}

func TestService_SkillTotals(t *testing.T) {
	Convey("Given a user with two skill records", t, func() {
		ctx := context.Background()
		f := newFixture(t)

		res, err := f.svc.SubmitSkill(ctx, "u1", "dm01:MAS", model.RawInput{Tier: "AAA"})
		So(err, ShouldBeNil)
		So(res.Points, ShouldEqual, 340.0)

		res, err = f.svc.SubmitSkill(ctx, "u1", "dm02:MAS", model.RawInput{Score: intPtr(850)})
		So(err, ShouldBeNil)
		So(res.Points, ShouldEqual, 215.0)
		So(res.Breakdown.Tier, ShouldEqual, "AA")

		Convey("Then the total is the sum of both", func() {
			total, err := f.svc.GetUserTotal(ctx, "u1")
			So(err, ShouldBeNil)
			So(total.Points, ShouldEqual, 555.0)
			So(total.Direct, ShouldBeFalse)
			So(total.ComputedAt.IsZero(), ShouldBeFalse)

			e, err := f.svc.Rank(ctx, "u1")
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 1)
			So(e.Points, ShouldEqual, 555.0)
		})

		Convey("When the 215 record is removed", func() {
			So(f.svc.RemoveSkill(ctx, "u1", "dm02:MAS"), ShouldBeNil)

			Convey("Then the total drops to 340", func() {
				total, err := f.svc.GetUserTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(total.Points, ShouldEqual, 340.0)

				top, err := f.svc.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(top[0].UserID, ShouldEqual, "u1")
				So(top[0].Points, ShouldEqual, 340.0)
			})

			Convey("And removing it again is not found", func() {
				err := f.svc.RemoveSkill(ctx, "u1", "dm02:MAS")
				So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a record is resubmitted", func() {
			_, err := f.svc.SubmitSkill(ctx, "u1", "dm02:MAS", model.RawInput{Tier: "A"})
			So(err, ShouldBeNil)

			Convey("Then it replaces the old one", func() {
				total, err := f.svc.GetUserTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(total.Points, ShouldEqual, 440.0)

				recs, err := f.svc.ListUserSkills(ctx, "u1")
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
			})
		})

		Convey("When a tier outside the table is submitted", func() {
			_, err := f.svc.SubmitSkill(ctx, "u1", "dm01:MAS", model.RawInput{Tier: "ZZZ"})

			Convey("Then it is a validation error and nothing changes", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(errs.FieldsOf(err), ShouldContainKey, "tier")

				total, err := f.svc.GetUserTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(total.Points, ShouldEqual, 555.0)

				rec, err := f.store.GetSkill(ctx, "u1", "dm01:MAS")
				So(err, ShouldBeNil)
				So(rec.Input.Tier, ShouldEqual, "AAA")
			})
		})

		Convey("When the input has neither tier nor score", func() {
			_, err := f.svc.SubmitSkill(ctx, "u1", "dm01:MAS", model.RawInput{})
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			So(errs.FieldsOf(err), ShouldContainKey, "tier")
		})

		Convey("When the unit references an unknown chart", func() {
			_, err := f.svc.SubmitSkill(ctx, "u1", "nope:MAS", model.RawInput{Tier: "AAA"})
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the user is unknown", func() {
			_, err := f.svc.SubmitSkill(ctx, "ghost", "dm01:MAS", model.RawInput{Tier: "AAA"})
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_SubmitRollsBack(t *testing.T) {
	Convey("Given a user holding a record that can no longer be scored", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		So(f.store.SaveSkill(ctx, model.SkillRecord{UserID: "u1", UnitID: "dm02:HRD", Input: model.RawInput{Tier: "AAA"}}), ShouldBeNil)

		Convey("When a valid record is submitted", func() {
			_, err := f.svc.SubmitSkill(ctx, "u1", "dm01:MAS", model.RawInput{Tier: "AAA"})

			Convey("Then the failed total rebuild discards the new record too", func() {
				So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)

				_, err := f.store.GetSkill(ctx, "u1", "dm01:MAS")
				So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)

				total, err := f.svc.GetUserTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(total.Points, ShouldEqual, 0.0)

				e, err := f.svc.Rank(ctx, "u1")
				So(err, ShouldBeNil)
				So(e.Points, ShouldEqual, 0.0)
			})
		})
	})
}

func TestService_ConcurrentSubmits(t *testing.T) {
	Convey("Given concurrent submissions for one user", t, func() {
		ctx := context.Background()
		f := newFixture(t)

		inputs := []model.RawInput{{Tier: "A"}, {Tier: "AA"}, {Tier: "AAA"}, {Score: intPtr(850)}}
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				unit := "dm01:MAS"
				if i%2 == 1 {
					unit = "dm02:MAS"
				}
				_, _ = f.svc.SubmitSkill(ctx, "u1", unit, inputs[i%len(inputs)])
			}(i)
		}
		wg.Wait()

		Convey("Then the leaderboard agrees with the stored total", func() {
			total, err := f.svc.GetUserTotal(ctx, "u1")
			So(err, ShouldBeNil)
			e, err := f.svc.Rank(ctx, "u1")
			So(err, ShouldBeNil)
			So(e.Points, ShouldEqual, total.Points)
		})
	})
}

func TestService_ImportChart(t *testing.T) {
	Convey("Given a chart with a scored record", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		_, err := f.svc.SubmitSkill(ctx, "u1", "dm01:MAS", model.RawInput{Tier: "AAA"})
		So(err, ShouldBeNil)

		legacy := func(from, to time.Time, level int) chart.Legacy {
			var l chart.Legacy
			l.Start, l.End = from, to
			l.Specs.Set(chart.Master, chart.Offer(level, 800))
			return l
		}

		Convey("When the chart is imported with disjoint versions", func() {
			created, saved, err := f.svc.ImportChart(ctx, newChart("dm01", 1, 13), []chart.Legacy{
				legacy(day(2020, 1, 1), day(2020, 6, 1), 10),
				legacy(day(2020, 6, 1), day(2021, 1, 1), 12),
			})

			Convey("Then everything is stored and records are rescored", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(saved, ShouldHaveLength, 2)

				c, err := f.store.GetChart(ctx, "dm01")
				So(err, ShouldBeNil)
				So(c.Legacy, ShouldHaveLength, 2)

				total, err := f.svc.GetUserTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(total.Points, ShouldEqual, 408.0)
			})
		})

		Convey("When the second version overlaps the first", func() {
			_, _, err := f.svc.ImportChart(ctx, newChart("dm01", 1, 13), []chart.Legacy{
				legacy(day(2021, 1, 1), day(2021, 4, 1), 10),
				legacy(day(2021, 3, 1), day(2021, 6, 1), 11),
			})

			Convey("Then nothing of the import persists", func() {
				So(errors.Is(err, errs.ErrIntegrity), ShouldBeTrue)

				c, err := f.store.GetChart(ctx, "dm01")
				So(err, ShouldBeNil)
				So(c.Legacy, ShouldBeEmpty)
				lv, _ := c.Current.Get(chart.Master).Level.Value()
				So(lv, ShouldEqual, 12)

				total, err := f.svc.GetUserTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(total.Points, ShouldEqual, 340.0)
			})
		})

		Convey("When a new chart carries an overlapping pair", func() {
			_, _, err := f.svc.ImportChart(ctx, newChart("zz01", 9, 12), []chart.Legacy{
				legacy(day(2021, 1, 1), day(2021, 4, 1), 10),
				legacy(day(2021, 3, 1), day(2021, 6, 1), 11),
			})
			So(errors.Is(err, errs.ErrIntegrity), ShouldBeTrue)

			_, err = f.store.GetChart(ctx, "zz01")
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Override(t *testing.T) {
	Convey("Given a user with a record", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		_, err := f.svc.SubmitSkill(ctx, "u1", "dm01:MAS", model.RawInput{Tier: "AAA"})
		So(err, ShouldBeNil)

		Convey("When the total is overridden", func() {
			_, err := f.svc.SetDirectTotal(ctx, "u1", 1000)
			So(err, ShouldBeNil)

			_, err = f.svc.SubmitSkill(ctx, "u1", "dm02:MAS", model.RawInput{Tier: "AAA"})
			So(err, ShouldBeNil)

			Convey("Then new records do not touch it", func() {
				total, err := f.svc.GetUserTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(total.Points, ShouldEqual, 1000.0)
				So(total.Direct, ShouldBeTrue)
			})

			Convey("And clearing it recomputes from the records", func() {
				total, err := f.svc.ClearDirectTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(total.Points, ShouldEqual, 680.0)
				So(total.Direct, ShouldBeFalse)
			})
		})

		Convey("When a negative override is requested", func() {
			_, err := f.svc.SetDirectTotal(ctx, "u1", -1)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestService_ChartResolution(t *testing.T) {
	Convey("Given dm01 with a historical version", t, func() {
		ctx := context.Background()
		f := newFixture(t)

		var v chart.Legacy
		v.Start, v.End = day(2021, 1, 1), day(2021, 4, 1)
		v.Specs.Set(chart.Master, chart.Offer(10, 800))
		_, err := f.svc.AddLegacyChart(ctx, "dm01", v)
		So(err, ShouldBeNil)

		Convey("Then the pivot selects the version", func() {
			p, err := f.svc.ParsePivot("20210214")
			So(err, ShouldBeNil)
			cell, err := f.svc.ResolveChartDisplay(ctx, p, "dm01", chart.Master)
			So(err, ShouldBeNil)
			So(cell.Level, ShouldEqual, "10")
			So(cell.Notes, ShouldEqual, "800")
			So(cell.Exists, ShouldBeTrue)

			p, err = f.svc.ParsePivot("20210501")
			So(err, ShouldBeNil)
			cell, err = f.svc.ResolveChartDisplay(ctx, p, "dm01", chart.Master)
			So(err, ShouldBeNil)
			So(cell.Level, ShouldEqual, "12")
		})

		Convey("Then absent difficulties render placeholders", func() {
			cell, err := f.svc.ResolveChartDisplay(ctx, pivot.None(), "dm01", chart.Unlimited)
			So(err, ShouldBeNil)
			So(cell.Exists, ShouldBeFalse)
			So(cell.Level, ShouldEqual, "-")
			So(cell.Notes, ShouldEqual, "-")
		})

		Convey("Then unknown charts are not found", func() {
			_, err := f.svc.ResolveChartDisplay(ctx, pivot.None(), "nope", chart.Master)
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})

		Convey("When an overlapping version is added", func() {
			var o chart.Legacy
			o.Start, o.End = day(2021, 3, 1), day(2021, 6, 1)
			o.Specs.Set(chart.Master, chart.Offer(11, 850))
			_, err := f.svc.AddLegacyChart(ctx, "dm01", o)

			Convey("Then it is rejected as an integrity error", func() {
				So(errors.Is(err, errs.ErrIntegrity), ShouldBeTrue)
				c, err := f.store.GetChart(ctx, "dm01")
				So(err, ShouldBeNil)
				So(c.Legacy, ShouldHaveLength, 1)
			})
		})

		Convey("When a touching version is added", func() {
			var o chart.Legacy
			o.Start, o.End = day(2021, 4, 1), day(2021, 6, 1)
			o.Specs.Set(chart.Master, chart.Offer(11, 850))
			_, err := f.svc.AddLegacyChart(ctx, "dm01", o)
			So(err, ShouldBeNil)
		})

		Convey("When pivots are malformed or too early", func() {
			_, err := f.svc.ParsePivot("2021-02-30")
			So(errors.Is(err, errs.ErrInvalidPivot), ShouldBeTrue)
			_, err = f.svc.ParsePivot("20100101")
			So(errors.Is(err, errs.ErrInvalidPivot), ShouldBeTrue)
			So(errors.Is(err, pivot.ErrDateOutOfRange), ShouldBeTrue)
		})
	})
}

func TestService_ListActiveCharts(t *testing.T) {
	Convey("Given visible, hidden and limited charts", t, func() {
		ctx := context.Background()
		f := newFixture(t)

		hidden := newChart("dm03", 3, 12)
		hidden.Hidden = true
		_, err := f.svc.UpsertChart(ctx, hidden)
		So(err, ShouldBeNil)

		limited := newChart("dm04", 4, 12)
		limited.Limited = true
		_, err = f.svc.UpsertChart(ctx, limited)
		So(err, ShouldBeNil)

		Convey("Then hidden charts are never listed", func() {
			views, err := f.svc.ListActiveCharts(ctx, pivot.None(), chart.Filters{})
			So(err, ShouldBeNil)
			ids := []string{}
			for _, v := range views {
				ids = append(ids, v.ID)
			}
			So(ids, ShouldResemble, []string{"dm01", "dm02", "dm04"})
			So(views[0].Difficulties["MAS"].Level, ShouldEqual, "12")
			So(views[0].Difficulties["UNL"], ShouldBeNil)
			So(views[0].MaxDiff, ShouldEqual, "MAS")
		})

		Convey("Then limited charts can be excluded", func() {
			views, err := f.svc.ListActiveCharts(ctx, pivot.None(), chart.Filters{ExcludeLimited: true})
			So(err, ShouldBeNil)
			So(views, ShouldHaveLength, 2)
		})
	})
}

func TestService_ChartEditRescores(t *testing.T) {
	Convey("Given records on dm01 and a course over both charts", t, func() {
		ctx := context.Background()
		f := newFixture(t)

		So(f.svc.UpsertCourse(ctx, model.Course{ID: "dan1", Title: "Dan 1", Items: []model.UnitItem{
			{ChartID: "dm01", Difficulty: chart.Master},
			{ChartID: "dm02", Difficulty: chart.Master},
		}}), ShouldBeNil)

		_, err := f.svc.SubmitSkill(ctx, "u1", "dm01:MAS", model.RawInput{Tier: "AAA"})
		So(err, ShouldBeNil)
		res, err := f.svc.SubmitSkill(ctx, "u2", "dan1", model.RawInput{Tier: "A"})
		So(err, ShouldBeNil)
		So(res.Points, ShouldEqual, 200.0)

		Convey("When dm01's master level changes", func() {
			_, err := f.svc.UpsertChart(ctx, newChart("dm01", 1, 13))
			So(err, ShouldBeNil)

			Convey("Then dependent records and totals are rescored", func() {
				rec, err := f.store.GetSkill(ctx, "u1", "dm01:MAS")
				So(err, ShouldBeNil)
				So(rec.Points, ShouldEqual, 408.0)

				t1, err := f.svc.GetUserTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(t1.Points, ShouldEqual, 408.0)

				t2, err := f.svc.GetUserTotal(ctx, "u2")
				So(err, ShouldBeNil)
				So(t2.Points, ShouldEqual, 220.0)
			})

			Convey("And the per-unit ranking reflects it", func() {
				ranking, err := f.svc.UnitRanking(ctx, "dm01:MAS")
				So(err, ShouldBeNil)
				So(ranking, ShouldHaveLength, 1)
				So(ranking[0].Points, ShouldEqual, 408.0)
			})
		})

		Convey("When dm01's master level moves to one with the same base", func() {
			_, err := f.svc.UpsertChart(ctx, newChart("dm01", 1, 10))
			So(err, ShouldBeNil)

			Convey("Then stored breakdowns carry the new level", func() {
				rec, err := f.store.GetSkill(ctx, "u1", "dm01:MAS")
				So(err, ShouldBeNil)
				So(rec.Points, ShouldEqual, 340.0)
				So(rec.Breakdown.Items, ShouldHaveLength, 1)
				So(rec.Breakdown.Items[0].Level, ShouldEqual, 10)

				course, err := f.store.GetSkill(ctx, "u2", "dan1")
				So(err, ShouldBeNil)
				So(course.Points, ShouldEqual, 200.0)
				So(course.Breakdown.Items, ShouldHaveLength, 2)
				So(course.Breakdown.Items[0].Level, ShouldEqual, 10)
			})
		})

		Convey("When a chart edit withdraws a scored difficulty", func() {
			c := newChart("dm01", 1, 12)
			c.Current.Set(chart.Master, chart.Spec{})
			_, err := f.svc.UpsertChart(ctx, c)

			Convey("Then the whole write fails", func() {
				So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
				got, err := f.store.GetChart(ctx, "dm01")
				So(err, ShouldBeNil)
				So(got.Current.Get(chart.Master).Offered, ShouldBeTrue)
			})
		})

		Convey("When a unit ranking is requested for an unknown course", func() {
			_, err := f.svc.UnitRanking(ctx, "dan9")
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Reconcile(t *testing.T) {
	Convey("Given a user whose total is stale", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		_, err := f.svc.SubmitSkill(ctx, "u1", "dm01:MAS", model.RawInput{Tier: "AAA"})
		So(err, ShouldBeNil)

		// A record write whose total update was lost.
		So(f.store.SaveSkill(ctx, model.SkillRecord{UserID: "u1", UnitID: "dm02:MAS", Input: model.RawInput{Tier: "AA"}}), ShouldBeNil)
		So(f.store.SaveTotal(ctx, model.UserTotal{UserID: "u1", Points: 340, ComputedAt: day(2023, 1, 1)}), ShouldBeNil)

		Convey("When reconciling without workers", func() {
			n, err := f.svc.Reconcile(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			Convey("Then the total is repaired inline", func() {
				total, err := f.svc.GetUserTotal(ctx, "u1")
				So(err, ShouldBeNil)
				So(total.Points, ShouldEqual, 555.0)
			})
		})

		Convey("When reconciling with started workers", func() {
			So(f.svc.Start(ctx), ShouldBeNil)
			defer func() { _ = f.svc.Stop(ctx) }()

			n, err := f.svc.Reconcile(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			Convey("Then a worker repairs the total", func() {
				deadline := time.Now().Add(2 * time.Second)
				var total model.UserTotal
				for time.Now().Before(deadline) {
					total, err = f.svc.GetUserTotal(ctx, "u1")
					So(err, ShouldBeNil)
					if total.Points == 555 {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(total.Points, ShouldEqual, 555.0)
			})
		})

		Convey("When the total is overridden", func() {
			_, err := f.svc.SetDirectTotal(ctx, "u1", 1)
			So(err, ShouldBeNil)

			Convey("Then the sweep leaves it alone", func() {
				n, err := f.svc.Reconcile(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service with ranked users", t, func() {
		ctx := context.Background()
		f := newFixture(t, service.WithWorkerCount(3))
		So(f.store.SaveTotal(ctx, model.UserTotal{UserID: "u2", Points: 77, ComputedAt: day(2024, 1, 1)}), ShouldBeNil)

		So(f.svc.Start(ctx), ShouldBeNil)

		Convey("Then the index is loaded from the store", func() {
			e, err := f.svc.Rank(ctx, "u2")
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 1)
			So(e.Points, ShouldEqual, 77.0)

			stats := f.svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["rankedUsers"], ShouldEqual, 2)
		})

		Convey("When stopping", func() {
			So(f.svc.Stop(ctx), ShouldBeNil)
			So(f.svc.GetStats()["started"], ShouldEqual, false)
			So(f.svc.Stop(ctx), ShouldBeNil)
		})

		Convey("Then invalid leaderboard limits are validation errors", func() {
			_, err := f.svc.TopN(ctx, 0)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Reset(func() { _ = f.svc.Stop(ctx) })
	})
}
