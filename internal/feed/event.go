// Package feed applies location update events to the object store.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/geocached/internal/geo"
	"github.com/mohammed-shakir/geocached/internal/objectid"
)

type Op string

const (
	OpInsert Op = "insert"
	OpMove   Op = "move"
	OpDelete Op = "delete"
)

var (
	ErrInvalidEvent = errors.New("invalid feed event")
	ErrUnknownOp    = fmt.Errorf("%w: op must be insert|move|delete", ErrInvalidEvent)
)

type Event struct {
	Version int             `json:"version"`
	Op      Op              `json:"op"`
	ID      string          `json:"id"`
	Lat     *float64        `json:"lat,omitempty"`
	Lon     *float64        `json:"lon,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TS      time.Time       `json:"ts"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("%w: version must be 1", ErrInvalidEvent)
	}
	switch e.Op {
	case OpInsert, OpMove, OpDelete:
	default:
		return ErrUnknownOp
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if err := objectid.Validate(e.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("%w: ts is required", ErrInvalidEvent)
	}
	if e.Op == OpDelete {
		return nil
	}
	if e.Lat == nil || e.Lon == nil {
		return fmt.Errorf("%w: lat and lon are required for %s", ErrInvalidEvent, e.Op)
	}
	if err := e.Location().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if e.Op == OpInsert && len(e.Payload) > 0 && !json.Valid(e.Payload) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidEvent)
	}
	return nil
}

// Location is the zero location when lat or lon is missing.
func (e Event) Location() geo.Location {
	var l geo.Location
	if e.Lat != nil {
		l.Lat = *e.Lat
	}
	if e.Lon != nil {
		l.Lon = *e.Lon
	}
	return l
}

func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: decode: %w", ErrInvalidEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}
