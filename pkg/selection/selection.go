// Package selection tracks which discovered images are selected for
// export. Selection is a set of record ids and survives filtering:
// items hidden by an active filter stay selected.
package selection

import "sync"

// Set is a concurrency-safe selection over record ids.
type Set struct {
	mu  sync.RWMutex
	ids map[int]bool
}

// NewSet creates an empty selection.
func NewSet() *Set {
	return &Set{ids: make(map[int]bool)}
}

// Toggle flips membership of one id.
func (s *Set) Toggle(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[id] {
		delete(s.ids, id)
	} else {
		s.ids[id] = true
	}
}

// Contains reports whether an id is selected.
func (s *Set) Contains(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids[id]
}

// Count returns the number of selected ids.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Clear removes every selected id.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[int]bool)
}

// Replace resets the selection to exactly the given ids.
func (s *Set) Replace(ids []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[int]bool, len(ids))
	for _, id := range ids {
		s.ids[id] = true
	}
}

// ToggleAll operates over the currently visible (filtered) ids only.
// When every visible id is selected it deselects exactly those, leaving
// hidden selected ids untouched; otherwise it adds all visible ids.
func (s *Set) ToggleAll(visible []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	allSelected := len(visible) > 0
	for _, id := range visible {
		if !s.ids[id] {
			allSelected = false
			break
		}
	}

	if allSelected {
		for _, id := range visible {
			delete(s.ids, id)
		}
		return
	}
	for _, id := range visible {
		s.ids[id] = true
	}
}

// IDs returns the selected ids in unspecified order.
func (s *Set) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	return ids
}
