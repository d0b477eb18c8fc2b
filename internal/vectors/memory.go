package vectors

import (
	"context"
	"maps"
	"slices"
	"sync"
)

type collection struct {
	dim     int
	metric  Metric
	records map[string]Record
	order   []string
}

// Memory is a process-local Store.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*collection)}
}

func (m *Memory) CreateCollection(ctx context.Context, id string, dim int, metric Metric) error {
	if err := checkCollection(id, dim, metric); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[id]; ok {
		return ErrCollectionExists
	}
	m.collections[id] = &collection{
		dim:     dim,
		metric:  metric,
		records: make(map[string]Record),
	}
	return nil
}

func (m *Memory) Upsert(ctx context.Context, id string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[id]
	if !ok {
		return ErrCollectionNotFound
	}

	for _, r := range records {
		if err := checkDimension(c.dim, r.Embedding); err != nil {
			return err
		}
	}

	for _, r := range records {
		if _, exists := c.records[r.ID]; !exists {
			c.order = append(c.order, r.ID)
		}
		r.Embedding = slices.Clone(r.Embedding)
		r.Metadata = maps.Clone(r.Metadata)
		c.records[r.ID] = r
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, id string, embedding []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[id]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if err := checkDimension(c.dim, embedding); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(c.order))
	for _, rid := range c.order {
		r := c.records[rid]
		matches = append(matches, Match{Record: r, Score: Cosine(embedding, r.Embedding)})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *Memory) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[id]
	return ok, nil
}
