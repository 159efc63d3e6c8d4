package actionstore

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type memItem struct {
	action  string
	expires time.Time // нулевое — без срока
}

// MemStore хранит память о наказаниях в процессе. Теряется при перезапуске.
type MemStore struct {
	data *xsync.MapOf[string, memItem]
	now  func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{data: xsync.NewMapOf[string, memItem](), now: time.Now}
}

func (i memItem) expired(now time.Time) bool {
	return !i.expires.IsZero() && !now.Before(i.expires)
}

func (s *MemStore) Get(ctx context.Context, key string) (string, error) {
	now := s.now()
	// Проверка и удаление под одной блокировкой: параллельный Set не потеряется
	item, ok := s.data.Compute(key, func(old memItem, loaded bool) (memItem, bool) {
		return old, !loaded || old.expired(now)
	})
	if !ok {
		return "", nil
	}
	return item.action, nil
}

func (s *MemStore) Set(ctx context.Context, key, action string, ttl time.Duration) error {
	item := memItem{action: action}
	if ttl > 0 {
		item.expires = s.now().Add(ttl)
	}
	s.data.Store(key, item)
	return nil
}

func (s *MemStore) Clear(ctx context.Context, key string) error {
	s.data.Delete(key)
	return nil
}
