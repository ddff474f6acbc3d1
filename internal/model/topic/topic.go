package topic

// Topic is a debate subject label.
type Topic string

// Seed 返回默认的辩论话题列表。
func Seed() []Topic {
	return []Topic{
		"The Ethics of Artificial Intelligence",
		"The Future of Renewable Energy",
		"Universal Basic Income: Solution or Problem?",
		"Space Exploration vs. Earth Conservation",
		"The Role of Government in Technology",
		"Privacy vs. Security in the Digital Age",
		"The Future of Work and Automation",
		"Climate Change: Individual vs. Systemic Action",
		"The Impact of Social Media on Democracy",
		"Genetic Engineering: Progress or Peril?",
		"The Future of Education in the AI Era",
		"Free Speech in the Age of Social Media",
		"The Ethics of Human Enhancement",
		"Centralized vs. Decentralized Systems",
		"The Future of Transportation and Mobility",
		"Digital Currency vs. Traditional Banking",
		"The Role of Art in Society",
		"Scientific Progress vs. Ethical Boundaries",
		"The Future of Healthcare Technology",
		"Urban Development vs. Environmental Protection",
	}
}

// Store exposes read-only access to the topic catalog.
type Store interface {
	List() []Topic
	Contains(label string) bool
}

// MemoryStore implements Store with an immutable slice.
type MemoryStore struct {
	items []Topic
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied topics.
func NewMemoryStore(items []Topic) *MemoryStore {
	return &MemoryStore{items: append([]Topic(nil), items...)}
}

// List returns a copy of the catalog.
func (s *MemoryStore) List() []Topic {
	return append([]Topic(nil), s.items...)
}

// Contains reports whether label is a catalog topic.
func (s *MemoryStore) Contains(label string) bool {
	for _, item := range s.items {
		if string(item) == label {
			return true
		}
	}
	return false
}
