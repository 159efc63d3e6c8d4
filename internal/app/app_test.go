package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/guardian-bot/internal/actionstore"
	"serotonyl.ru/guardian-bot/internal/config"
	"serotonyl.ru/guardian-bot/internal/features/admin"
	"serotonyl.ru/guardian-bot/internal/features/reputation"
	"serotonyl.ru/guardian-bot/internal/toxicity"
)

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStorage(ctx, &config.Config{StoreDriver: config.StoreDriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &reputation.MemRepository{}, s.Ledger)
	assert.IsType(t, &admin.MemRepository{}, s.Admin)

	s, err = OpenStorage(ctx, &config.Config{
		StoreDriver: config.StoreDriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "guardian.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &reputation.SQLiteRepository{}, s.Ledger)
	(&App{closers: s.closers}).Close()

	_, err = OpenStorage(ctx, &config.Config{StoreDriver: "mongo"})
	assert.Error(t, err)
}

func TestOpenActionStoreDefaultsToMemory(t *testing.T) {
	store, closeFn, err := OpenActionStore(context.Background(), &config.Config{})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &actionstore.MemStore{}, store)
}

func TestNewExternalChecker(t *testing.T) {
	assert.Nil(t, NewExternalChecker(&config.Config{}))

	checker := NewExternalChecker(&config.Config{
		ExternalEnabled:        true,
		GeminiAPIKey:           "key",
		GeminiModel:            "gemini-1.5-flash",
		GeminiBaseURL:          "http://127.0.0.1:1",
		ExternalMaxConcurrency: 2,
	})
	assert.IsType(t, &toxicity.Pool{}, checker)
}

func TestNewAssistant(t *testing.T) {
	assert.Nil(t, NewAssistant(&config.Config{}))

	svc := NewAssistant(&config.Config{
		AssistantEnabled:     true,
		GeminiAPIKey:         "key",
		GeminiModel:          "gemini-1.5-flash",
		GeminiBaseURL:        "http://127.0.0.1:1",
		AssistantMaxSessions: 10,
		AssistantSessionTTL:  time.Hour,
	})
	assert.NotNil(t, svc)
}
