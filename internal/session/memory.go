package session

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore implementa Store sobre go-cache. Útil para desarrollo y
// testing; no comparte estado entre instancias.
type memoryStore struct {
	c *gocache.Cache
}

// NewMemory crea un Store en memoria.
func NewMemory(defaultTTL time.Duration) Store {
	return &memoryStore{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *memoryStore) Get(ctx context.Context, sid string) (*Data, error) {
	v, ok := m.c.Get(sid)
	if !ok {
		return nil, ErrNotFound
	}
	b, _ := v.([]byte)
	var d Data
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *memoryStore) Save(ctx context.Context, sid string, d *Data, ttl time.Duration) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	m.c.Set(sid, b, ttl)
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, sid string) error {
	m.c.Delete(sid)
	return nil
}
