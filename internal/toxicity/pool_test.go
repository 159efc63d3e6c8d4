package toxicity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClassifier struct {
	calls atomic.Int32
	fn    func(ctx context.Context, text string) (Verdict, error)
}

func (f *fakeClassifier) CheckToxicity(ctx context.Context, text string) (Verdict, error) {
	f.calls.Add(1)
	return f.fn(ctx, text)
}

func toxic(severity int) func(context.Context, string) (Verdict, error) {
	return func(context.Context, string) (Verdict, error) {
		return Verdict{Status: StatusOK, IsToxic: true, Severity: severity, Category: CategoryInsult}, nil
	}
}

func TestPoolTimeoutFailsOpen(t *testing.T) {
	fake := &fakeClassifier{fn: func(ctx context.Context, _ string) (Verdict, error) {
		<-ctx.Done()
		return Verdict{}, ctx.Err()
	}}
	pool := NewPool(fake, PoolConfig{Timeout: 20 * time.Millisecond, MaxConcurrency: 1})

	start := time.Now()
	v := pool.Check(context.Background(), "медленно")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusFailed, v.Status)
	assert.False(t, v.Toxic())
	assert.ErrorIs(t, v.Err, context.DeadlineExceeded)
}

func TestPoolErrorFailsOpenAndIsNotCached(t *testing.T) {
	fake := &fakeClassifier{fn: func(context.Context, string) (Verdict, error) {
		return Verdict{}, errors.New("boom")
	}}
	pool := NewPool(fake, PoolConfig{Timeout: time.Second, MaxConcurrency: 1, CacheSize: 10, CacheTTL: time.Minute})

	for i := 0; i < 2; i++ {
		v := pool.Check(context.Background(), "текст")
		assert.Equal(t, StatusFailed, v.Status)
		assert.False(t, v.Toxic())
	}
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestPoolCachesVerdicts(t *testing.T) {
	fake := &fakeClassifier{fn: toxic(7)}
	pool := NewPool(fake, PoolConfig{Timeout: time.Second, MaxConcurrency: 1, CacheSize: 10, CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		v := pool.Check(context.Background(), "одно и то же")
		assert.True(t, v.Toxic())
		assert.Equal(t, 7, v.Severity)
	}
	assert.Equal(t, int32(1), fake.calls.Load())

	pool.Check(context.Background(), "другое")
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	fake := &fakeClassifier{fn: func(ctx context.Context, _ string) (Verdict, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return Verdict{Status: StatusOK}, nil
	}}
	pool := NewPool(fake, PoolConfig{Timeout: 5 * time.Second, MaxConcurrency: 2})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := pool.Check(context.Background(), "текст")
			assert.Equal(t, StatusOK, v.Status)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(10), fake.calls.Load())
}

func TestPoolCancelledContext(t *testing.T) {
	fake := &fakeClassifier{fn: toxic(9)}
	pool := NewPool(fake, PoolConfig{Timeout: time.Second, MaxConcurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := pool.Check(ctx, "текст")
	assert.Equal(t, StatusFailed, v.Status)
	assert.False(t, v.Toxic())
}
