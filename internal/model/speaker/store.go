package speaker

// Store exposes speaker retrieval for handlers and the debate orchestrator.
type Store interface {
	List() []Speaker
	FindByName(name string) (Speaker, bool)
}

// MemoryStore implements Store with an immutable in-memory slice.
type MemoryStore struct {
	items []Speaker
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied speakers.
func NewMemoryStore(items []Speaker) *MemoryStore {
	return &MemoryStore{items: append([]Speaker(nil), items...)}
}

// List returns a copy of the catalog.
func (s *MemoryStore) List() []Speaker {
	return append([]Speaker(nil), s.items...)
}

// FindByName looks up a speaker by its catalog name.
func (s *MemoryStore) FindByName(name string) (Speaker, bool) {
	for _, item := range s.items {
		if item.Name == name {
			return item, true
		}
	}
	return Speaker{}, false
}
