package repository

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	types "github.com/okian/chartrank/internal/domain/types"
	"github.com/okian/chartrank/pkg/metrics"
)

// Treap-based, in-memory ranking index over user totals.
//
// Ordering: points DESC, then userID ASC (deterministic). "less" means ranks
// earlier, so in-order traversal yields the leaderboard from best to worst.
// Ranks use competition ranking: a user's rank is 1 plus the number of users
// with strictly more points.

// pointScale stores totals as fixed point with two decimals, the precision
// totals are rounded to.
const pointScale = 100

type pointsFP int64

func toFixedPoint(x float64) pointsFP {
	switch {
	case math.IsNaN(x):
		return 0
	case x*pointScale >= math.MaxInt64:
		return pointsFP(math.MaxInt64)
	case x*pointScale <= math.MinInt64:
		return pointsFP(math.MinInt64)
	}
	return pointsFP(math.Round(x * pointScale))
}

func toFloat(x pointsFP) float64 {
	return float64(x) / pointScale
}

type node struct {
	id     string
	points pointsFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aPoints, aID) should appear before (bPoints, bID).
func less(aPoints pointsFP, aID string, bPoints pointsFP, bID string) bool {
	if aPoints != bPoints {
		return aPoints > bPoints
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priority derives a stable pseudo-random heap priority from the user ID.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, points pointsFP) *node {
	if n == nil {
		return &node{id: id, points: points, prio: priority(id), size: 1}
	}
	if less(points, id, n.points, n.id) {
		n.left = insert(n.left, id, points)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, points)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, points pointsFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case points == n.points && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, points)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, points)
		}
	case less(points, id, n.points, n.id):
		n.left = deleteNode(n.left, id, points)
	default:
		n.right = deleteNode(n.right, id, points)
	}
	fix(n)
	return n
}

// countAbove returns the number of nodes with strictly more than points.
func countAbove(n *node, points pointsFP) int {
	count := 0
	for n != nil {
		if n.points > points {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// RankIndex keeps displayed users ordered by total for O(log n) rank
// queries. It is a cache of the store and is rebuilt with Reset.
type RankIndex struct {
	mu   sync.RWMutex
	root *node
	byID map[string]pointsFP
}

// NewRankIndex returns an empty index.
func NewRankIndex() *RankIndex {
	return &RankIndex{byID: make(map[string]pointsFP)}
}

// Reset replaces the index content with entries.
func (s *RankIndex) Reset(entries map[string]float64) {
	s.mu.Lock()
	s.root = nil
	s.byID = make(map[string]pointsFP, len(entries))
	for id, pts := range entries {
		fp := toFixedPoint(pts)
		s.byID[id] = fp
		s.root = insert(s.root, id, fp)
	}
	n := len(s.byID)
	s.mu.Unlock()
	metrics.UpdateRankedUsers(n)
}

// Set stores the user's total, replacing any previous one.
func (s *RankIndex) Set(userID string, points float64) {
	fp := toFixedPoint(points)
	s.mu.Lock()
	if old, ok := s.byID[userID]; ok {
		if old == fp {
			s.mu.Unlock()
			return
		}
		s.root = deleteNode(s.root, userID, old)
	}
	s.byID[userID] = fp
	s.root = insert(s.root, userID, fp)
	n := len(s.byID)
	s.mu.Unlock()
	metrics.UpdateRankedUsers(n)
}

// Remove drops the user. Unknown users are ignored.
func (s *RankIndex) Remove(userID string) {
	s.mu.Lock()
	old, ok := s.byID[userID]
	if ok {
		s.root = deleteNode(s.root, userID, old)
		delete(s.byID, userID)
	}
	n := len(s.byID)
	s.mu.Unlock()
	if ok {
		metrics.UpdateRankedUsers(n)
	}
}

// Rank returns the user's rank and total.
func (s *RankIndex) Rank(ctx context.Context, userID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.byID[userID]
	if !ok {
		metrics.RecordErrorByComponent("ranking", "not_found")
		return types.Entry{}, notFound("repository.rank", "user %q is not ranked", userID)
	}
	return types.Entry{Rank: countAbove(s.root, fp) + 1, UserID: userID, Points: toFloat(fp)}, nil
}

// TopN returns the first n entries in rank order.
func (s *RankIndex) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("ranking", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := make([]*node, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &nodes)

	out := make([]types.Entry, len(nodes))
	for i, nd := range nodes {
		out[i] = types.Entry{UserID: nd.id, Points: toFloat(nd.points)}
		switch {
		case i > 0 && nd.points == nodes[i-1].points:
			out[i].Rank = out[i-1].Rank
		default:
			out[i].Rank = i + 1
		}
	}
	return out, nil
}

// Count returns the number of ranked users.
func (s *RankIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
