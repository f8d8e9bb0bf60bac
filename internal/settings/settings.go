// Package settings persists the user's preferences and reports changes to
// them.
package settings

import (
	"context"
	"slices"
	"sync"
)

// Key is the persisted name of the enable flag.
const Key = "isFindCloseEnabled"

// Settings are the persisted preferences.
type Settings struct {
	IsFindCloseEnabled bool `yaml:"isFindCloseEnabled" json:"isFindCloseEnabled"`
}

// Defaults returns the preferences used when nothing is stored or the store
// cannot be read.
func Defaults() Settings {
	return Settings{IsFindCloseEnabled: false}
}

// Change describes one observed update.
type Change struct {
	Old Settings
	New Settings
}

// EnabledChanged reports whether the enable flag flipped.
func (c Change) EnabledChanged() bool {
	return c.Old.IsFindCloseEnabled != c.New.IsFindCloseEnabled
}

// Store loads, saves and watches preferences. Watch callbacks may run on any
// goroutine.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
	Watch(fn func(Change)) (cancel func())
}

// watchers is a set of change callbacks shared by the store implementations.
type watchers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Change)
}

func (w *watchers) add(fn func(Change)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = map[int]func(Change){}
	}
	w.next++
	id := w.next
	w.fns[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
	}
}

func (w *watchers) notify(c Change) {
	w.mu.Lock()
	ids := make([]int, 0, len(w.fns))
	for id := range w.fns {
		ids = append(ids, id)
	}
	fns := make([]func(Change), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, w.fns[id])
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (w *watchers) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.fns)
}

// MemoryStore keeps preferences in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	current  Settings
	watchers watchers
}

// NewMemoryStore returns a store holding initial.
func NewMemoryStore(initial Settings) *MemoryStore {
	return &MemoryStore{current: initial}
}

// Load implements Store.
func (m *MemoryStore) Load(context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

// Save implements Store. Watchers are notified only when the value changes.
func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	m.mu.Lock()
	old := m.current
	m.current = s
	m.mu.Unlock()
	if old != s {
		m.watchers.notify(Change{Old: old, New: s})
	}
	return nil
}

// Watch implements Store.
func (m *MemoryStore) Watch(fn func(Change)) func() {
	return m.watchers.add(fn)
}

// Watchers returns the number of registered watchers.
func (m *MemoryStore) Watchers() int { return m.watchers.len() }
