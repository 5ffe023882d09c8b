package metadata

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps articles in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	articles map[string]Article
	listens  map[string][]time.Time
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		articles: make(map[string]Article),
		listens:  make(map[string][]time.Time),
		now:      time.Now,
	}
}

func clone(a Article) Article {
	a.Authors = slices.Clone(a.Authors)
	a.Hashtags = slices.Clone(a.Hashtags)
	if a.AudioLength != nil {
		v := *a.AudioLength
		a.AudioLength = &v
	}
	return a
}

func (m *MemoryStore) Save(_ context.Context, a *Article) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prepare(a, m.now())
	m.articles[a.ID] = clone(*a)
	return a.ID, nil
}

func (m *MemoryStore) FindByURL(_ context.Context, url string) (*Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *Article
	for _, a := range m.articles {
		if a.URL != url {
			continue
		}
		if found == nil || a.CreatedAt.After(found.CreatedAt) {
			c := clone(a)
			found = &c
		}
	}
	return found, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := clone(a)
	return &c, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return ErrNotFound
	}
	p.apply(&a)
	m.articles[id] = a
	return nil
}

func (m *MemoryStore) sorted(keep func(Article) bool) []Article {
	out := make([]Article, 0, len(m.articles))
	for _, a := range m.articles {
		if keep(a) {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProcessedDate != out[j].ProcessedDate {
			return out[i].ProcessedDate > out[j].ProcessedDate
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.sorted(func(Article) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListByHashtag(_ context.Context, tag string) ([]Article, error) {
	norm := NormalizeHashtags([]string{tag})
	if len(norm) == 0 {
		return []Article{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(func(a Article) bool { return slices.Contains(a.Hashtags, norm[0]) }), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[id]; !ok {
		return ErrNotFound
	}
	delete(m.articles, id)
	delete(m.listens, id)
	return nil
}

func (m *MemoryStore) LogListen(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[id]; !ok {
		return ErrNotFound
	}
	m.listens[id] = append(m.listens[id], m.now())
	return nil
}

func (m *MemoryStore) ListenCount(_ context.Context, id string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.articles[id]; !ok {
		return 0, ErrNotFound
	}
	return len(m.listens[id]), nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
