package agent

import (
	"sort"
	"sync"
	"time"

	"wearlog/internal/models"
)

// State is the agent's in-memory mirror of the server-side wardrobe.
// It is rebuilt from the canonical SyncResults the server returns, so it
// converges even when the agent spent time offline.
type State struct {
	mu        sync.RWMutex
	items     map[string]models.Item
	updatedAt time.Time
}

func NewState() *State {
	return &State{items: make(map[string]models.Item)}
}

// SetCatalog replaces the whole mirror, typically at startup from a
// full item listing.
func (s *State) SetCatalog(items []models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]models.Item, len(items))
	for _, it := range items {
		s.items[it.ID] = it
	}
	s.updatedAt = time.Now()
}

// Apply merges the canonical items from a sync result into the mirror.
// Items the result does not mention keep their previous view.
func (s *State) Apply(res *models.SyncResult) {
	if res == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range res.Items {
		s.items[it.ID] = it
	}
	s.updatedAt = time.Now()
}

// Items returns a sorted snapshot of the mirror.
func (s *State) Items() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// UpdatedAt returns when the mirror last changed, zero when never.
func (s *State) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
