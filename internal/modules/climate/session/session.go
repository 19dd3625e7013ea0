// Package session keeps per-browser state between interactions: the chosen
// coordinates and the last successfully fetched table. State lives only as
// long as the session; nothing here outlives the configured TTL.
package session

import (
	"context"
	"time"

	"app-clima/internal/modules/climate/types"
)

// State is everything one browser session remembers.
type State struct {
	Coordinates *types.Coordinates `json:"coordinates,omitempty"`

	// Table is set only after a successful fetch and cleared by a failed one.
	Table     *types.Table `json:"table,omitempty"`
	Start     string       `json:"start,omitempty"`
	End       string       `json:"end,omitempty"`
	FetchedAt time.Time    `json:"fetchedAt,omitempty"`
}

// HasTable reports whether an export can be offered.
func (s State) HasTable() bool {
	return s.Table != nil
}

// ClearTable drops the last fetch result.
func (s *State) ClearTable() {
	s.Table = nil
	s.Start = ""
	s.End = ""
	s.FetchedAt = time.Time{}
}

type Store interface {
	Get(ctx context.Context, id string) (State, bool, error)
	Put(ctx context.Context, id string, st State) error
	Delete(ctx context.Context, id string) error
	// Sweep removes sessions idle since before now minus the TTL.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
