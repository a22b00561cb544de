package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/chartrank/internal/domain/errs"
)

func TestRankIndex_BasicOperations(t *testing.T) {
	ctx := context.Background()
	idx := NewRankIndex()

	if count := idx.Count(); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	idx.Set("u1", 555)
	if count := idx.Count(); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := idx.Rank(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 || entry.Points != 555 {
		t.Errorf("expected rank 1 with 555 points, got %+v", entry)
	}

	entries, err := idx.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != "u1" {
		t.Errorf("unexpected top entries %+v", entries)
	}
}

func TestRankIndex_SetReplacesTotal(t *testing.T) {
	ctx := context.Background()
	idx := NewRankIndex()

	idx.Set("u1", 555)
	idx.Set("u2", 400)
	// Totals can go down when a record is removed.
	idx.Set("u1", 340)

	entry, err := idx.Rank(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 2 || entry.Points != 340 {
		t.Errorf("expected rank 2 with 340 points, got %+v", entry)
	}
	if idx.Count() != 2 {
		t.Errorf("expected 2 users, got %d", idx.Count())
	}
}

func TestRankIndex_Ordering(t *testing.T) {
	ctx := context.Background()
	idx := NewRankIndex()

	idx.Set("c", 100)
	idx.Set("a", 300.25)
	idx.Set("b", 200)

	entries, err := idx.TopN(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if entries[i].UserID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, entries[i].UserID)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("position %d: expected rank %d, got %d", i, i+1, entries[i].Rank)
		}
	}

	top, err := idx.TopN(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Errorf("expected 2 entries, got %d", len(top))
	}
}

func TestRankIndex_TiesShareRank(t *testing.T) {
	ctx := context.Background()
	idx := NewRankIndex()

	idx.Set("b", 100)
	idx.Set("a", 100)
	idx.Set("top", 150)
	idx.Set("low", 50)

	entries, err := idx.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotIDs := []string{}
	gotRanks := []int{}
	for _, e := range entries {
		gotIDs = append(gotIDs, e.UserID)
		gotRanks = append(gotRanks, e.Rank)
	}
	if fmt.Sprint(gotIDs) != "[top a b low]" {
		t.Errorf("unexpected order %v", gotIDs)
	}
	if fmt.Sprint(gotRanks) != "[1 2 2 4]" {
		t.Errorf("unexpected ranks %v", gotRanks)
	}

	for id, want := range map[string]int{"top": 1, "a": 2, "b": 2, "low": 4} {
		e, err := idx.Rank(ctx, id)
		if err != nil {
			t.Fatalf("rank %s: %v", id, err)
		}
		if e.Rank != want {
			t.Errorf("rank %s: expected %d, got %d", id, want, e.Rank)
		}
	}
}

func TestRankIndex_EdgeCases(t *testing.T) {
	ctx := context.Background()
	idx := NewRankIndex()

	_, err := idx.Rank(ctx, "ghost")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected repository not found, got %v", err)
	}

	if _, err := idx.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}

	entries, err := idx.TopN(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty leaderboard, got %d entries", len(entries))
	}

	idx.Remove("ghost")
	idx.Set("u1", 0)
	idx.Remove("u1")
	if idx.Count() != 0 {
		t.Errorf("expected empty index, got %d", idx.Count())
	}
}

func TestRankIndex_Reset(t *testing.T) {
	ctx := context.Background()
	idx := NewRankIndex()
	idx.Set("stale", 999)

	idx.Reset(map[string]float64{"u1": 10, "u2": 20})

	if idx.Count() != 2 {
		t.Fatalf("expected 2 users, got %d", idx.Count())
	}
	if _, err := idx.Rank(ctx, "stale"); err == nil {
		t.Error("expected stale entry to be gone")
	}
	e, err := idx.Rank(ctx, "u2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Rank != 1 {
		t.Errorf("expected rank 1, got %d", e.Rank)
	}
}

func TestRankIndex_FixedPoint(t *testing.T) {
	idx := NewRankIndex()
	idx.Set("u1", 473.005)
	e, err := idx.Rank(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Points != 473.01 && e.Points != 473 {
		t.Errorf("expected two-decimal points, got %v", e.Points)
	}
}

func TestRankIndex_RankCorrectnessUnderStress(t *testing.T) {
	ctx := context.Background()
	idx := NewRankIndex()
	rng := rand.New(rand.NewSource(42))

	totals := map[string]float64{}
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("user%04d", rng.Intn(500))
		pts := float64(rng.Intn(200))
		if rng.Intn(10) == 0 {
			idx.Remove(id)
			delete(totals, id)
			continue
		}
		idx.Set(id, pts)
		totals[id] = pts
	}

	if idx.Count() != len(totals) {
		t.Fatalf("expected %d users, got %d", len(totals), idx.Count())
	}

	type kv struct {
		id  string
		pts float64
	}
	sorted := make([]kv, 0, len(totals))
	for id, pts := range totals {
		sorted = append(sorted, kv{id, pts})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].pts != sorted[j].pts {
			return sorted[i].pts > sorted[j].pts
		}
		return sorted[i].id < sorted[j].id
	})

	entries, err := idx.TopN(ctx, len(sorted))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range sorted {
		if entries[i].UserID != want.id {
			t.Fatalf("position %d: expected %s, got %s", i, want.id, entries[i].UserID)
		}
		above := 0
		for _, other := range sorted {
			if other.pts > want.pts {
				above++
			}
		}
		e, err := idx.Rank(ctx, want.id)
		if err != nil {
			t.Fatalf("rank %s: %v", want.id, err)
		}
		if e.Rank != above+1 || entries[i].Rank != above+1 {
			t.Fatalf("user %s: expected rank %d, got %d / %d", want.id, above+1, e.Rank, entries[i].Rank)
		}
	}
}

func TestRankIndex_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	idx := NewRankIndex()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("g%d-u%d", g, i%20)
				idx.Set(id, float64(i))
				_, _ = idx.Rank(ctx, id)
				_, _ = idx.TopN(ctx, 5)
			}
		}(g)
	}
	wg.Wait()

	if idx.Count() != 8*20 {
		t.Errorf("expected %d users, got %d", 8*20, idx.Count())
	}
}
