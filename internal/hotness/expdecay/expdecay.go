// Package expdecay scores geohash cells with exponentially decaying hit
// counters.
package expdecay

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/geocached/internal/hotness"
)

const numShards = 64

type Tracker struct {
	HalfLife time.Duration

	now func() time.Time

	shards [numShards]shard
}

type shard struct {
	mu    sync.RWMutex
	cells map[string]*counter
}

type counter struct {
	score float64
	last  time.Time
}

var (
	_ hotness.Interface = (*Tracker)(nil)
	_ hotness.Ranker    = (*Tracker)(nil)
)

func New(halfLife time.Duration) *Tracker {
	if halfLife <= 0 {
		halfLife = time.Minute
	}
	t := &Tracker{HalfLife: halfLife, now: time.Now}
	for i := range t.shards {
		t.shards[i].cells = make(map[string]*counter)
	}
	return t
}

func (t *Tracker) Inc(cell string) {
	if cell == "" {
		return
	}
	s := t.shardFor(cell)
	n := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cells[cell]
	if c == nil {
		s.cells[cell] = &counter{score: 1, last: n}
		return
	}
	c.score = t.decayed(c, n) + 1
	c.last = n
}

func (t *Tracker) Score(cell string) float64 {
	if cell == "" {
		return 0
	}
	s := t.shardFor(cell)
	n := t.now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.cells[cell]
	if c == nil {
		return 0
	}
	return t.decayed(c, n)
}

func (t *Tracker) Reset(cells ...string) {
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		s := t.shardFor(cell)
		s.mu.Lock()
		delete(s.cells, cell)
		s.mu.Unlock()
	}
}

// Top returns up to n cells ordered by descending score, ties by cell.
func (t *Tracker) Top(n int) []hotness.Scored {
	if n <= 0 {
		return nil
	}
	now := t.now()
	var all []hotness.Scored
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		for cell, c := range s.cells {
			all = append(all, hotness.Scored{Cell: cell, Score: t.decayed(c, now)})
		}
		s.mu.RUnlock()
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Cell < all[j].Cell
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func (t *Tracker) Size() int {
	total := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		total += len(t.shards[i].cells)
		t.shards[i].mu.RUnlock()
	}
	return total
}

func (t *Tracker) decayed(c *counter, now time.Time) float64 {
	return decay(c.score, now.Sub(c.last).Seconds(), t.HalfLife.Seconds())
}

func decay(score, dt, halfLife float64) float64 {
	if score == 0 || dt <= 0 || halfLife <= 0 {
		return score
	}
	return score * math.Exp(-math.Ln2/halfLife*dt)
}

func (t *Tracker) shardFor(cell string) *shard {
	h := xxhash.Sum64String(cell)
	return &t.shards[h&(numShards-1)]
}
