package feed

import (
	"encoding/json"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/geocached/internal/core/observability"
	"github.com/mohammed-shakir/geocached/internal/geo"
)

// Store is the subset of the object store the feed mutates.
type Store interface {
	Insert(id string, payload json.RawMessage, loc geo.Location) bool
	UpdateLocation(id string, loc geo.Location) bool
	Remove(id string) bool
}

type Result string

const (
	Applied  Result = "applied"
	Rejected Result = "rejected" // duplicate insert, or move/delete of an absent id
	Stale    Result = "stale"
	Invalid  Result = "invalid"
)

const defaultSeenSize = 8192

// Applier applies events to a store, skipping any event whose ts is not newer
// than the last one seen for the same id.
type Applier struct {
	store Store
	seen  *tsDedupe
}

func NewApplier(s Store, seenSize int) *Applier {
	return &Applier{store: s, seen: newTSDedupe(seenSize)}
}

func (a *Applier) Apply(ev Event) (Result, error) {
	if err := ev.Validate(); err != nil {
		observability.IncFeedEvent(string(ev.Op), string(Invalid))
		return Invalid, err
	}
	if !a.seen.shouldApply(ev.ID, ev.TS.UnixNano()) {
		observability.IncFeedEvent(string(ev.Op), string(Stale))
		return Stale, nil
	}

	var ok bool
	switch ev.Op {
	case OpInsert:
		payload := ev.Payload
		if len(payload) == 0 {
			payload = json.RawMessage("null")
		}
		ok = a.store.Insert(ev.ID, payload, ev.Location())
	case OpMove:
		ok = a.store.UpdateLocation(ev.ID, ev.Location())
	case OpDelete:
		ok = a.store.Remove(ev.ID)
	}

	res := Applied
	if !ok {
		res = Rejected
	}
	observability.IncFeedEvent(string(ev.Op), string(res))
	return res, nil
}

type tsDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newTSDedupe(size int) *tsDedupe {
	if size <= 0 {
		size = defaultSeenSize
	}
	c, _ := lru.New[string, int64](size)
	return &tsDedupe{lru: c}
}

// shouldApply returns true if ts is newer than the last seen for id
func (d *tsDedupe) shouldApply(id string, ts int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(id); ok && ts <= last {
		return false
	}
	d.lru.Add(id, ts)
	return true
}
