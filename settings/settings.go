// Package settings holds the runtime flags the interceptor consults on
// every call. The shell embedding the page writes them through the API.
package settings

import (
	"log/slog"
	"sync/atomic"

	"github.com/use-agent/tubeshim/models"
)

// Store is a concurrency-safe holder for the eligibility flags.
type Store struct {
	hideShorts atomic.Bool
}

// NewStore returns a Store seeded with the given hideShorts value.
func NewStore(hideShorts bool) *Store {
	s := &Store{}
	s.hideShorts.Store(hideShorts)
	return s
}

// HideShorts reports whether search results should lose short-form entries.
func (s *Store) HideShorts() bool {
	return s.hideShorts.Load()
}

// SetHideShorts updates the flag. Calls already past their eligibility
// check are not affected.
func (s *Store) SetHideShorts(v bool) {
	if old := s.hideShorts.Swap(v); old != v {
		slog.Info("settings changed", "hideShorts", v)
	}
}

// Apply merges a partial update and returns the resulting snapshot.
func (s *Store) Apply(u models.SettingsUpdate) models.Settings {
	if u.HideShorts != nil {
		s.SetHideShorts(*u.HideShorts)
	}
	return s.Snapshot()
}

// Snapshot returns the current flag values.
func (s *Store) Snapshot() models.Settings {
	return models.Settings{HideShorts: s.HideShorts()}
}
