package cache

import (
	"context"
	"sync"
)

// NewMemoryStorage 返回进程内缓存存储，重启后内容丢失。
func NewMemoryStorage() Storage {
	return &memoryStorage{caches: make(map[string]*memoryCache)}
}

type memoryStorage struct {
	mu     sync.Mutex
	caches map[string]*memoryCache
	order  []string
}

func (s *memoryStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.caches[name]; ok {
		return c, nil
	}
	c := &memoryCache{name: name, entries: make(map[string]record)}
	s.caches[name] = c
	s.order = append(s.order, name)
	return c, nil
}

func (s *memoryStorage) Keys(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...), nil
}

func (s *memoryStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.caches[name]; !ok {
		return false, nil
	}
	delete(s.caches, name)
	for i, existing := range s.order {
		if existing == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *memoryStorage) Close() error {
	return nil
}

type memoryCache struct {
	name string

	mu      sync.RWMutex
	entries map[string]record
	order   []string
}

func (c *memoryCache) Name() string {
	return c.name
}

func (c *memoryCache) Match(ctx context.Context, req Request) (*Response, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if !req.IsGet() {
		return nil, ErrNotFound
	}
	c.mu.RLock()
	rec, ok := c.entries[req.Key()]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return rec.response().Clone(), nil
}

func (c *memoryCache) Put(ctx context.Context, req Request, resp *Response) error {
	return c.PutAll(ctx, []Entry{{Request: req, Response: resp}})
}

func (c *memoryCache) PutAll(ctx context.Context, entries []Entry) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	records := make([]record, 0, len(entries))
	for _, e := range entries {
		if err := validateEntry(e.Request, e.Response); err != nil {
			return err
		}
		records = append(records, newRecord(e.Request, e.Response.Clone()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range records {
		if _, exists := c.entries[rec.URL]; !exists {
			c.order = append(c.order, rec.URL)
		}
		c.entries[rec.URL] = rec
	}
	return nil
}

func (c *memoryCache) Keys(ctx context.Context) ([]Request, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Request, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key].request())
	}
	return out, nil
}
