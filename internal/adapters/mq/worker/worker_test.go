package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/chartrank/internal/adapters/mq/queue"
	worker "github.com/okian/chartrank/internal/adapters/mq/worker"
	"github.com/okian/chartrank/internal/domain/dedupe"
	model "github.com/okian/chartrank/internal/domain/model"
	logging "github.com/okian/chartrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	close(mq.jobs)
	return nil
}

func (mq *mockQueue) add(userID string) {
	mq.jobs <- model.NewRecomputeJob(userID, "test", time.Now())
}

type mockRecomputer struct {
	mu     sync.Mutex
	calls  map[string]int
	errors map[string]error
	seen   chan string
}

func newMockRecomputer() *mockRecomputer {
	return &mockRecomputer{
		calls:  map[string]int{},
		errors: map[string]error{},
		seen:   make(chan string, 100),
	}
}

func (m *mockRecomputer) Recompute(ctx context.Context, userID string) error {
	m.mu.Lock()
	m.calls[userID]++
	err := m.errors[userID]
	m.mu.Unlock()
	m.seen <- userID
	return err
}

func (m *mockRecomputer) setError(userID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[userID] = err
}

func (m *mockRecomputer) count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[userID]
}

func waitFor(ch <-chan string, want string) bool {
	timeout := time.After(time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return true
			}
		case <-timeout:
			return false
		}
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		rec := newMockRecomputer()
		pending := dedupe.NewInMemoryDeduper()
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("test-worker"), worker.WithDeduper(pending))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job arrives", func() {
			pending.Mark(ctx, "u1")
			q.add("u1")

			convey.Convey("Then the user's total is recomputed", func() {
				convey.So(waitFor(rec.seen, "u1"), convey.ShouldBeTrue)
				convey.So(rec.count("u1"), convey.ShouldEqual, 1)
			})

			convey.Convey("And the user is released for the next sweep", func() {
				convey.So(waitFor(rec.seen, "u1"), convey.ShouldBeTrue)
				deadline := time.Now().Add(time.Second)
				for pending.Pending("u1") && time.Now().Before(deadline) {
					time.Sleep(time.Millisecond)
				}
				convey.So(pending.Pending("u1"), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When recompute fails", func() {
			rec.setError("u2", errors.New("boom"))
			pending.Mark(ctx, "u2")
			q.add("u2")
			q.add("u3")

			convey.Convey("Then the worker keeps going and still releases the user", func() {
				convey.So(waitFor(rec.seen, "u3"), convey.ShouldBeTrue)
				convey.So(rec.count("u2"), convey.ShouldEqual, 1)
				convey.So(pending.Pending("u2"), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then a second shutdown is harmless", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		rec := newMockRecomputer()
		pool := worker.NewPool(3, q, rec)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When jobs are enqueued", func() {
			for _, id := range []string{"a", "b", "c", "d"} {
				convey.So(q.Enqueue(ctx, model.NewRecomputeJob(id, "test", time.Now())), convey.ShouldBeNil)
			}

			convey.Convey("Then every job is processed once", func() {
				for i := 0; i < 4; i++ {
					select {
					case <-rec.seen:
					case <-time.After(time.Second):
						t.Fatal("timed out waiting for jobs")
					}
				}
				for _, id := range []string{"a", "b", "c", "d"} {
					convey.So(rec.count(id), convey.ShouldEqual, 1)
				}
			})
		})

		convey.Convey("When the pool shuts down", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then the queue is closed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestNewPoolDefaults(t *testing.T) {
	convey.Convey("Given a non-positive worker count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), newMockRecomputer())

		convey.Convey("Then the default size is used", func() {
			convey.So(pool.Size(), convey.ShouldEqual, 2)
		})
	})
}
