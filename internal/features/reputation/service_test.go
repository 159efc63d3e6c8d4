package reputation

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/guardian-bot/internal/common"
	"serotonyl.ru/guardian-bot/internal/config"
	"serotonyl.ru/guardian-bot/internal/db/postgres"
)

func testConfig() *config.Config {
	return &config.Config{
		ReputationStart:  100,
		ReputationMin:    0,
		ReputationMax:    1000,
		LedgerMaxRetries: 5,
		RecoveryPoints:   2,
	}
}

type repoFactory func(t *testing.T) Repository

// Каждое хранилище проходит одни и те же проверки.
func repositories() map[string]repoFactory {
	return map[string]repoFactory{
		"memory": func(t *testing.T) Repository {
			return NewMemRepository()
		},
		"sqlite": func(t *testing.T) Repository {
			repo, err := OpenSQLite(filepath.Join(t.TempDir(), "guardian.db"))
			require.NoError(t, err)
			t.Cleanup(func() { repo.Close() })
			return repo
		},
		"postgres": func(t *testing.T) Repository {
			// живой тест, нужен отдельный Postgres
			dsn := os.Getenv("GUARDIAN_TEST_DATABASE_URL")
			if dsn == "" {
				t.Skip("GUARDIAN_TEST_DATABASE_URL не задан")
			}
			ctx := context.Background()
			pool, err := pgxpool.New(ctx, dsn)
			require.NoError(t, err)
			t.Cleanup(pool.Close)
			require.NoError(t, postgres.RunMigrations(ctx, pool))
			_, err = pool.Exec(ctx, "TRUNCATE users, reputation_history")
			require.NoError(t, err)
			return NewPostgresRepository(pool)
		},
	}
}

func forEachRepository(t *testing.T, fn func(t *testing.T, svc *Service)) {
	for name, factory := range repositories() {
		t.Run(name, func(t *testing.T) {
			fn(t, NewService(factory(t), testConfig()))
		})
	}
}

func TestGetOrCreateKeepsScore(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		assert := assert.New(t)
		ctx := context.Background()

		rec, err := svc.GetOrCreate(ctx, 1, -100)
		require.NoError(t, err)
		assert.Equal(100, rec.Score)
		assert.Equal(0, rec.WarningCount)

		score, err := svc.ApplyDelta(ctx, 1, -100, -10, "test", "")
		require.NoError(t, err)
		assert.Equal(90, score)

		rec, err = svc.GetOrCreate(ctx, 1, -100)
		require.NoError(t, err)
		assert.Equal(90, rec.Score)

		// другой чат — другая запись
		rec, err = svc.GetProfile(ctx, 1, -200)
		require.NoError(t, err)
		assert.Equal(100, rec.Score)
	})
}

func TestApplyDeltaStaysInBounds(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		rng := rand.New(rand.NewSource(42))

		var deltas []int
		for i := 0; i < 60; i++ {
			delta := rng.Intn(801) - 400
			if delta == 0 {
				delta = 1
			}
			deltas = append(deltas, delta)

			score, err := svc.ApplyDelta(ctx, 7, -1, delta, "random", "")
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score, 0)
			assert.LessOrEqual(t, score, 1000)
		}

		// История, переигранная с тем же ограничением, даёт текущий счёт
		events, err := svc.GetHistory(ctx, 7, -1, len(deltas))
		require.NoError(t, err)
		require.Len(t, events, len(deltas))

		replayed := 100
		for i := len(events) - 1; i >= 0; i-- {
			replayed = svc.Clamp(replayed + events[i].Delta)
		}
		rec, err := svc.GetProfile(ctx, 7, -1)
		require.NoError(t, err)
		assert.Equal(t, rec.Score, replayed)
		assert.Equal(t, deltas[len(deltas)-1], events[0].Delta)
	})
}

func TestConcurrentApplyDeltaNoLostUpdates(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		const n = 50

		var g errgroup.Group
		for i := 0; i < n; i++ {
			g.Go(func() error {
				_, err := svc.ApplyDelta(ctx, 3, -5, 3, "concurrent", "")
				return err
			})
		}
		require.NoError(t, g.Wait())

		rec, err := svc.GetProfile(ctx, 3, -5)
		require.NoError(t, err)
		assert.Equal(t, 100+n*3, rec.Score)

		events, err := svc.GetHistory(ctx, 3, -5, 1000)
		require.NoError(t, err)
		assert.Len(t, events, n)
	})
}

func TestWarningCountOnlyOnPenalty(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()

		for _, delta := range []int{-10, 5, -15, 20} {
			_, err := svc.ApplyDelta(ctx, 9, -1, delta, "mixed", "")
			require.NoError(t, err)
		}
		rec, err := svc.GetProfile(ctx, 9, -1)
		require.NoError(t, err)
		assert.Equal(t, 2, rec.WarningCount)
		assert.Equal(t, 100, rec.Score)
	})
}

func TestSnippetTruncated(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		long := strings.Repeat("ж", common.MaxSnippetLength+100)

		_, err := svc.ApplyDelta(ctx, 4, -1, -10, "long", long)
		require.NoError(t, err)

		events, err := svc.GetHistory(ctx, 4, -1, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, strings.Repeat("ж", common.MaxSnippetLength), events[0].MessageSnippet)
		assert.Equal(t, -10, events[0].Delta)
		assert.Equal(t, "long", events[0].Reason)
		assert.NotZero(t, events[0].ID)
	})
}

func TestClampedDeltaIsRecordedAsApplied(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()

		score, err := svc.ApplyDelta(ctx, 5, -1, -250, "big", "")
		require.NoError(t, err)
		assert.Equal(t, 0, score)

		events, err := svc.GetHistory(ctx, 5, -1, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, -250, events[0].Delta)
	})
}

func TestApplyDeltaHugeDeltaSaturates(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()

		score, err := svc.ApplyDelta(ctx, 6, -1, math.MaxInt, "Reward: x", "")
		require.NoError(t, err)
		assert.Equal(t, 1000, score)

		score, err = svc.ApplyDelta(ctx, 6, -1, math.MinInt, "Mod: x", "")
		require.NoError(t, err)
		assert.Equal(t, 0, score)

		events, err := svc.GetHistory(ctx, 6, -1, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, -1000, events[0].Delta)
		assert.Equal(t, 1000, events[1].Delta)
	})
}

func TestLeaderboardDeterministic(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()

		for _, fix := range []struct {
			user  int64
			delta int
		}{
			{30, 50}, {10, 0}, {20, 0}, {40, 50}, {50, -20},
		} {
			if fix.delta == 0 {
				_, err := svc.GetOrCreate(ctx, fix.user, -1)
				require.NoError(t, err)
				continue
			}
			_, err := svc.ApplyDelta(ctx, fix.user, -1, fix.delta, "seed", "")
			require.NoError(t, err)
		}
		// Запись из другого чата не должна попасть в рейтинг
		_, err := svc.ApplyDelta(ctx, 99, -2, 500, "other chat", "")
		require.NoError(t, err)

		want := []int64{30, 40, 10, 20, 50}
		for i := 0; i < 3; i++ {
			top, err := svc.GetLeaderboard(ctx, -1, 10)
			require.NoError(t, err)
			var got []int64
			for _, rec := range top {
				got = append(got, rec.UserID)
			}
			assert.Equal(t, want, got)
		}

		top, err := svc.GetLeaderboard(ctx, -1, 2)
		require.NoError(t, err)
		assert.Len(t, top, 2)

		_, err = svc.GetLeaderboard(ctx, -1, 0)
		assert.ErrorIs(t, err, common.ErrInvalidLimit)
	})
}

func TestHistoryNewestFirst(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()

		for _, delta := range []int{-1, -2, -3, -4} {
			_, err := svc.ApplyDelta(ctx, 6, -1, delta, "step", "")
			require.NoError(t, err)
		}

		events, err := svc.GetHistory(ctx, 6, -1, 3)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, -4, events[0].Delta)
		assert.Equal(t, -3, events[1].Delta)
		assert.Equal(t, -2, events[2].Delta)

		_, err = svc.GetHistory(ctx, 6, -1, -1)
		assert.ErrorIs(t, err, common.ErrInvalidLimit)

		events, err = svc.GetHistory(ctx, 12345, -1, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestRecordMessage(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			require.NoError(t, svc.RecordMessage(ctx, 8, -1))
		}
		rec, err := svc.GetProfile(ctx, 8, -1)
		require.NoError(t, err)
		assert.Equal(t, 3, rec.MessageCount)
		assert.Equal(t, 100, rec.Score)
		assert.Equal(t, 0, rec.WarningCount)
	})
}

func TestCancelledContextAppliesNothing(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		_, err := svc.GetOrCreate(context.Background(), 11, -1)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = svc.ApplyDelta(ctx, 11, -1, -10, "cancelled", "")
		assert.Error(t, err)

		rec, err := svc.GetProfile(context.Background(), 11, -1)
		require.NoError(t, err)
		assert.Equal(t, 100, rec.Score)
		events, err := svc.GetHistory(context.Background(), 11, -1, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestRecover(t *testing.T) {
	forEachRepository(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return clock }

		// 1: старый штраф, активен сегодня — восстанавливается
		_, err := svc.ApplyDelta(ctx, 1, -1, -5, "old penalty", "")
		require.NoError(t, err)
		// 3: давно не писал
		_, err = svc.ApplyDelta(ctx, 3, -1, -20, "old penalty", "")
		require.NoError(t, err)

		clock = clock.Add(30 * time.Hour)
		require.NoError(t, svc.RecordMessage(ctx, 1, -1))
		// 4: уже на потолке
		require.NoError(t, svc.RecordMessage(ctx, 4, -1))
		// 5: на единицу ниже потолка — получает только 1
		_, err = svc.ApplyDelta(ctx, 5, -1, -41, "old", "")
		require.NoError(t, err)
		clock = clock.Add(25 * time.Hour)
		_, err = svc.ApplyDelta(ctx, 5, -1, 40, "reward", "")
		require.NoError(t, err)
		require.NoError(t, svc.RecordMessage(ctx, 1, -1))
		// 2: свежий штраф — пропускается
		_, err = svc.ApplyDelta(ctx, 2, -1, -10, "fresh penalty", "")
		require.NoError(t, err)

		clock = clock.Add(time.Hour)
		n, err := svc.Recover(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		scores := map[int64]int{1: 97, 2: 90, 3: 80, 4: 100, 5: 100}
		for user, want := range scores {
			rec, err := svc.GetProfile(ctx, user, -1)
			require.NoError(t, err)
			assert.Equal(t, want, rec.Score, "user %d", user)
		}

		events, err := svc.GetHistory(ctx, 5, -1, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, RecoveryReason, events[0].Reason)
		assert.Equal(t, 1, events[0].Delta)
	})
}
