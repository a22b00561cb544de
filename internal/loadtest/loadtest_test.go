package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/chartrank/internal/adapters/http/api"
	repository "github.com/okian/chartrank/internal/adapters/repository"
	service "github.com/okian/chartrank/internal/app"
	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithWriter(io.Discard))
}

// newTarget serves a real service over sqlite with two listed charts.
func newTarget(t *testing.T) *httptest.Server {
	ctx := context.Background()
	st, err := repository.Open(ctx, repository.DriverSQLite, filepath.Join(t.TempDir(), "load.db"))
	So(err, ShouldBeNil)
	svc := service.New(st, service.WithLogger(logger.Nop()))

	for i, id := range []string{"dm01", "dm02"} {
		c := &chart.Chart{ID: id, Number: i + 1, Era: 1, Title: id, AddedOn: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)}
		c.Current.Set(chart.Master, chart.Offer(12, 900))
		c.Current.Set(chart.Hard, chart.Offer(8, 500))
		_, err := svc.UpsertChart(ctx, c)
		So(err, ShouldBeNil)
	}

	srv := httptest.NewServer(api.NewServer(svc, api.WithLogger(logger.Nop())).Handler())
	Reset(func() {
		srv.Close()
		_ = st.Close()
	})
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running service with a catalog", t, func() {
		srv := newTarget(t)
		out := filepath.Join(t.TempDir(), "out", "subs.json")
		config := &Config{
			BaseURL:     srv.URL,
			Users:       12,
			Submissions: 60,
			TopN:        10,
			Workers:     4,
			MaxScore:    1_000_000,
			Timeout:     5 * time.Second,
			OutputFile:  out,
		}

		Convey("When a load run completes", func() {
			stats, err := Run(context.Background(), config)
			So(err, ShouldBeNil)

			Convey("Then every submission is accepted and ranked", func() {
				So(stats.UnitsDiscovered, ShouldEqual, 4)
				So(stats.UsersRegistered, ShouldEqual, 12)
				So(stats.SubmissionsSent, ShouldEqual, 60)
				So(stats.SubmissionsOK, ShouldEqual, 60)
				So(stats.SubmissionsFailed, ShouldEqual, 0)
				So(stats.RankingsRetrieved, ShouldEqual, 12)
				So(stats.LeaderboardEntries, ShouldEqual, 10)
			})

			Convey("Then the submissions are saved", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var subs []Submission
				So(json.Unmarshal(data, &subs), ShouldBeNil)
				So(subs, ShouldHaveLength, 60)
			})
		})

		Convey("When scores exceed what the service accepts", func() {
			config.MaxScore = 5_000_000
			config.Submissions = 200
			stats, err := Run(context.Background(), config)

			Convey("Then rejections are counted, not failures", func() {
				So(err, ShouldBeNil)
				So(stats.SubmissionsOK+stats.SubmissionsRejected, ShouldEqual, 200)
				So(stats.SubmissionsFailed, ShouldEqual, 0)
			})
		})
	})
}

func TestVerifyLeaderboard(t *testing.T) {
	Convey("Given leaderboard rows", t, func() {
		Convey("When ties share a rank and the next rank skips", func() {
			rows := []Entry{
				{Rank: 1, UserID: "a", Points: 50},
				{Rank: 1, UserID: "b", Points: 50},
				{Rank: 3, UserID: "c", Points: 10},
			}
			So(verifyLeaderboard(rows), ShouldBeNil)
			So(verifyRankOrder(rows), ShouldBeNil)
		})

		Convey("When points rise down the board", func() {
			rows := []Entry{{Rank: 1, UserID: "a", Points: 5}, {Rank: 2, UserID: "b", Points: 9}}
			So(errors.Is(verifyLeaderboard(rows), ErrInconsistent), ShouldBeTrue)
		})

		Convey("When a tie is split", func() {
			rows := []Entry{{Rank: 1, UserID: "a", Points: 5}, {Rank: 2, UserID: "b", Points: 5}}
			So(errors.Is(verifyLeaderboard(rows), ErrInconsistent), ShouldBeTrue)
			So(errors.Is(verifyRankOrder(rows), ErrInconsistent), ShouldBeTrue)
		})

		Convey("When the per-user rank disagrees", func() {
			board := []Entry{{Rank: 1, UserID: "a", Points: 5}}
			ranks := []Entry{{Rank: 2, UserID: "a", Points: 5}}
			So(errors.Is(verifyAgreement(ranks, board), ErrInconsistent), ShouldBeTrue)
		})
	})
}

func TestGenerator(t *testing.T) {
	Convey("Given generated users", t, func() {
		users := generateUsers(5)
		So(users, ShouldHaveLength, 5)
		seen := map[string]bool{}
		for _, u := range users {
			seen[u.ID] = true
		}
		So(seen, ShouldHaveLength, 5)

		Convey("When submissions are generated", func() {
			stats := &Stats{}
			config := &Config{Submissions: 100, MaxScore: 1000}
			subs, err := generateSubmissions(context.Background(), config, users, []string{"dm01:MAS"}, stats)
			So(err, ShouldBeNil)

			Convey("Then every score is in range", func() {
				So(stats.SubmissionsGenerated, ShouldEqual, 100)
				for _, s := range subs {
					So(s.Score, ShouldBeBetweenOrEqual, 0, 1000)
					So(s.UnitID, ShouldEqual, "dm01:MAS")
				}
			})
		})

		Convey("When there are no units", func() {
			_, err := generateSubmissions(context.Background(), &Config{Submissions: 1}, users, nil, &Stats{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestWaitForService(t *testing.T) {
	Convey("Given a service that reports unhealthy", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		Convey("Then waiting stops with the context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			err := waitForService(ctx, newHTTPClient(srv.URL, time.Second))
			So(err, ShouldNotBeNil)
		})
	})
}
