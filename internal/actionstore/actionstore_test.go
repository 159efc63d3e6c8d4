package actionstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "-100500/42", Key(-100500, 42))
}

func TestMemStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemStore()
	s.now = func() time.Time { return clock }

	v, err := s.Get(ctx, "a")
	assert.NoError(err)
	assert.Empty(v)

	assert.NoError(s.Set(ctx, "a", "mute", 10*time.Minute))
	assert.NoError(s.Set(ctx, "b", "ban", 0))

	v, _ = s.Get(ctx, "a")
	assert.Equal("mute", v)

	clock = clock.Add(10 * time.Minute)
	v, _ = s.Get(ctx, "a")
	assert.Empty(v)

	clock = clock.Add(365 * 24 * time.Hour)
	v, _ = s.Get(ctx, "b")
	assert.Equal("ban", v)

	assert.NoError(s.Clear(ctx, "b"))
	v, _ = s.Get(ctx, "b")
	assert.Empty(v)
}

func TestRedisStore(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	s, err := NewRedisStore(ctx, "redis://localhost:6379/0")
	if err != nil {
		t.Fail()
	}
	defer s.Close()

	assert.NoError(s.Clear(ctx, "test1"))
	v, err := s.Get(ctx, "test1")
	assert.NoError(err)
	assert.Empty(v)

	assert.NoError(s.Set(ctx, "test1", "mute", time.Minute))
	v, err = s.Get(ctx, "test1")
	assert.NoError(err)
	assert.Equal("mute", v)

	assert.NoError(s.Clear(ctx, "test1"))
	v, err = s.Get(ctx, "test1")
	assert.NoError(err)
	assert.Empty(v)
}

func TestMemStoreExpiryKeepsConcurrentSet(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemStore()
	s.now = func() time.Time { return clock }

	assert.NoError(t, s.Set(ctx, "a", "mute", time.Minute))
	clock = clock.Add(time.Hour)

	// Свежий бан записывается, пока Get разбирается с истёкшим мутом
	written := false
	s.now = func() time.Time {
		if !written {
			written = true
			assert.NoError(t, s.Set(ctx, "a", "ban", 0))
		}
		return clock
	}

	_, err := s.Get(ctx, "a")
	assert.NoError(t, err)

	s.now = func() time.Time { return clock }
	v, err := s.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, "ban", v)
}
