// Package cache implements the geospatial object store: payloads keyed by
// object id, indexed by geohash cell, queried by circle.
package cache

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/geocached/internal/cache/keys"
	"github.com/mohammed-shakir/geocached/internal/core/observability"
	"github.com/mohammed-shakir/geocached/internal/geo"
	"github.com/mohammed-shakir/geocached/internal/hotness"
	"github.com/mohammed-shakir/geocached/internal/index/geotree"
)

const DefaultPrecision uint = 8

// Entry describes where an object is indexed.
type Entry struct {
	Location geo.Location
	GeoHash  string
}

// Match is one object returned by Query.
type Match[T any] struct {
	ID       string
	Payload  T
	Location geo.Location
}

type entry[T any] struct {
	payload T
	loc     geo.Location
	hash    string
}

type cachedResult struct {
	ids   []string
	cells []string
}

// Store is safe for concurrent use. Mutations and Traverse hold the write
// lock; reads share the read lock. Cell membership and the index tree are
// only ever changed together under the write lock.
type Store[T any] struct {
	mu sync.RWMutex

	precision uint
	entries   map[string]*entry[T]
	cells     map[string]map[string]struct{}
	tree      *geotree.Tree

	log     zerolog.Logger
	results *lru.Cache[string, cachedResult]
	hot     hotness.Interface
}

type options struct {
	precision   uint
	logger      zerolog.Logger
	resultCache int
	hot         hotness.Interface
}

type Option func(*options)

// WithPrecision sets the geohash length entries are indexed at. Queries run
// at the same length.
func WithPrecision(p uint) Option {
	return func(o *options) { o.precision = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithResultCache keeps the id lists of the last size distinct queries. Any
// mutation drops them all. size <= 0 disables the cache.
func WithResultCache(size int) Option {
	return func(o *options) { o.resultCache = size }
}

func WithHotness(h hotness.Interface) Option {
	return func(o *options) { o.hot = h }
}

func New[T any](opts ...Option) (*Store[T], error) {
	o := options{precision: DefaultPrecision, logger: zerolog.Nop()}
	for _, f := range opts {
		f(&o)
	}
	if err := geo.ValidatePrecision(int(o.precision)); err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}

	s := &Store[T]{
		precision: o.precision,
		entries:   make(map[string]*entry[T]),
		cells:     make(map[string]map[string]struct{}),
		tree:      geotree.New(),
		log:       o.logger,
		hot:       o.hot,
	}
	if o.resultCache > 0 {
		c, err := lru.New[string, cachedResult](o.resultCache)
		if err != nil {
			return nil, fmt.Errorf("cache store result cache: %w", err)
		}
		s.results = c
	}
	return s, nil
}

// MustNew is New for callers with static, known-good options.
func MustNew[T any](opts ...Option) *Store[T] {
	s, err := New[T](opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Store[T]) Precision() uint { return s.precision }

// Insert stores payload under id at loc. It returns false if id is taken.
func (s *Store[T]) Insert(id string, payload T, loc geo.Location) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		observability.ObserveStoreOp("insert", false)
		return false
	}
	h := geo.EncodeGeoHash(loc, s.precision)
	s.link(id, h)
	s.entries[id] = &entry[T]{payload: payload, loc: loc, hash: h}
	s.changed()

	observability.ObserveStoreOp("insert", true)
	s.log.Debug().Str("op", "insert").Str("id", id).Str("cell", h).Msg("entry stored")
	return true
}

func (s *Store[T]) Retrieve(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.payload, true
}

// Locate reports the location and cell id is indexed under.
func (s *Store[T]) Locate(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{Location: e.loc, GeoHash: e.hash}, true
}

// Remove drops id. Its cell leaves the index only when no other entry
// shares it.
func (s *Store[T]) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		observability.ObserveStoreOp("remove", false)
		return false
	}
	s.unlink(id, e.hash)
	delete(s.entries, id)
	s.changed()

	observability.ObserveStoreOp("remove", true)
	s.log.Debug().Str("op", "remove").Str("id", id).Str("cell", e.hash).Msg("entry removed")
	return true
}

func (s *Store[T]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Cells is the number of distinct geohash cells currently indexed.
func (s *Store[T]) Cells() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// UpdateLocation moves id to loc and reindexes it. Moving within the same
// cell keeps the index untouched.
func (s *Store[T]) UpdateLocation(id string, loc geo.Location) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		observability.ObserveStoreOp("update_location", false)
		return false
	}
	old := e.hash
	h := geo.EncodeGeoHash(loc, s.precision)
	if h != old {
		s.unlink(id, old)
		s.link(id, h)
		e.hash = h
	}
	e.loc = loc
	s.changed()

	observability.ObserveStoreOp("update_location", true)
	s.log.Debug().Str("op", "update_location").Str("id", id).
		Str("from", old).Str("to", h).Msg("entry moved")
	return true
}

// Traverse calls visit for every entry in ascending id order until visit
// returns false. visit may modify the payload in place. It runs under the
// write lock, so it must not call back into the store.
func (s *Store[T]) Traverse(visit func(id string, payload *T) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(s.entries)) {
		if !visit(id, &s.entries[id].payload) {
			return
		}
	}
}

// ObjsInCircle returns the payloads of every entry within c.
func (s *Store[T]) ObjsInCircle(c geo.Circle) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.inCircle(c)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entries[id].payload)
	}
	return out
}

// Query is ObjsInCircle with ids and locations, ordered by id.
func (s *Store[T]) Query(c geo.Circle) []Match[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.inCircle(c)
	out := make([]Match[T], 0, len(ids))
	for _, id := range ids {
		e := s.entries[id]
		out = append(out, Match[T]{ID: id, Payload: e.payload, Location: e.loc})
	}
	return out
}

// inCircle runs the range query with at least the read lock held. Cells are
// enumerated at the indexing precision: the overlap test over-approximates,
// and grouping entries into coarser cells than they were indexed at could
// prune a cell that holds a true match.
func (s *Store[T]) inCircle(c geo.Circle) []string {
	var key string
	if s.results != nil {
		key = keys.CircleKey(c, s.precision)
		if r, ok := s.results.Get(key); ok {
			observability.IncResultCache(true)
			s.touch(r.cells)
			return r.ids
		}
		observability.IncResultCache(false)
	}

	start := time.Now()
	var (
		ids        []string
		hitCells   []string
		candidates int
	)
	for cell := range s.tree.Traverse(int(s.precision)) {
		if !geo.CircleRectOverlap(c, geo.GeoHashRect(cell)) {
			continue
		}
		candidates++
		matched := false
		for id := range s.cells[cell] {
			if geo.PointInCircle(s.entries[id].loc, c) {
				ids = append(ids, id)
				matched = true
			}
		}
		if matched {
			hitCells = append(hitCells, cell)
		}
	}
	slices.Sort(ids)
	s.touch(hitCells)

	if s.results != nil {
		s.results.Add(key, cachedResult{ids: ids, cells: hitCells})
	}

	observability.ObserveQuery(time.Since(start).Seconds(), candidates, len(ids))
	s.log.Debug().
		Str("op", "query").
		Str("center", c.Center.String()).
		Float64("radius_m", c.Radius).
		Int("candidates", candidates).
		Int("results", len(ids)).
		Msg("circle query")
	return ids
}

func (s *Store[T]) touch(cells []string) {
	if s.hot == nil {
		return
	}
	for _, cell := range cells {
		s.hot.Inc(cell)
	}
}

// link adds id to cell h, inserting h into the tree when it is the first
// member.
func (s *Store[T]) link(id, h string) {
	members := s.cells[h]
	if members == nil {
		if !s.tree.Insert(h) {
			s.diverged("link", id, h)
		}
		members = make(map[string]struct{}, 1)
		s.cells[h] = members
	} else if !s.tree.Exists(h) {
		s.diverged("link", id, h)
	}
	members[id] = struct{}{}
}

// unlink removes id from cell h, dropping h from the tree when it empties.
func (s *Store[T]) unlink(id, h string) {
	members := s.cells[h]
	if _, ok := members[id]; !ok {
		s.diverged("unlink", id, h)
	}
	delete(members, id)
	if len(members) > 0 {
		return
	}
	delete(s.cells, h)
	if !s.tree.Remove(h) {
		s.diverged("unlink", id, h)
	}
	if s.hot != nil {
		s.hot.Reset(h)
	}
}

func (s *Store[T]) changed() {
	if s.results != nil {
		s.results.Purge()
	}
	observability.SetStoreSize(len(s.entries), s.tree.Len())
}

// ErrDiverged is the panic value raised when cell membership and the index
// tree disagree. It signals a bug, never bad input.
var ErrDiverged = errors.New("cache: entries and index diverged")

func (s *Store[T]) diverged(op, id, cell string) {
	s.log.Error().Str("op", op).Str("id", id).Str("cell", cell).
		Int("entries", len(s.entries)).Int("cells", s.tree.Len()).
		Msg("index diverged from entries")
	panic(fmt.Errorf("%w: %s id=%q cell=%q", ErrDiverged, op, id, cell))
}
