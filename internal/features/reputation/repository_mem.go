package reputation

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemRepository хранит журнал в памяти процесса.
// Изменения одного ключа сериализуются мьютексом записи, разные ключи не блокируют друг друга.
type MemRepository struct {
	entries *xsync.MapOf[Key, *memEntry]
	nextID  atomic.Int64
}

type memEntry struct {
	mu     sync.Mutex
	rec    Record
	events []Event
}

var _ Repository = (*MemRepository)(nil)

// NewMemRepository создаёт пустое хранилище.
func NewMemRepository() *MemRepository {
	return &MemRepository{entries: xsync.NewMapOf[Key, *memEntry]()}
}

func (r *MemRepository) entry(key Key, start int, now time.Time) *memEntry {
	e, _ := r.entries.LoadOrCompute(key, func() *memEntry {
		return &memEntry{rec: Record{
			UserID:      key.UserID,
			CommunityID: key.CommunityID,
			Score:       start,
			LastActive:  now,
			CreatedAt:   now,
		}}
	})
	return e
}

func (r *MemRepository) GetOrCreate(ctx context.Context, key Key, start int, now time.Time) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := r.entry(key, start, now)
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.rec
	return &rec, nil
}

func (r *MemRepository) Apply(ctx context.Context, key Key, start int, now time.Time, mutate Mutation) (*Record, error) {
	e := r.entry(key, start, now)
	e.mu.Lock()
	defer e.mu.Unlock()

	// Отмена до фиксации: ничего не меняем
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := e.rec
	ev := mutate(&rec)
	if ev != nil {
		ev.ID = r.nextID.Add(1)
		e.events = append(e.events, *ev)
	}
	e.rec = rec
	return &rec, nil
}

func (r *MemRepository) Touch(ctx context.Context, key Key, start int, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := r.entry(key, start, now)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.MessageCount++
	e.rec.LastActive = now
	return nil
}

func (r *MemRepository) Leaderboard(ctx context.Context, communityID int64, limit int) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*Record
	r.entries.Range(func(key Key, e *memEntry) bool {
		if key.CommunityID != communityID {
			return true
		}
		e.mu.Lock()
		rec := e.rec
		e.mu.Unlock()
		out = append(out, &rec)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemRepository) History(ctx context.Context, key Key, limit int) ([]*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := r.entries.Load(key)
	if !ok {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Event, 0, len(e.events))
	for i := range e.events {
		ev := e.events[i]
		out = append(out, &ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemRepository) RecoveryCandidates(ctx context.Context, since time.Time, below int) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Key
	r.entries.Range(func(key Key, e *memEntry) bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.rec.LastActive.Before(since) || e.rec.Score >= below {
			return true
		}
		for _, ev := range e.events {
			if ev.Delta < 0 && !ev.CreatedAt.Before(since) {
				return true
			}
		}
		out = append(out, key)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CommunityID != out[j].CommunityID {
			return out[i].CommunityID < out[j].CommunityID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
