// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: выбирает хранилище, создаёт сервисы, обработчики,
// фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/actionstore"
	"serotonyl.ru/guardian-bot/internal/bot"
	"serotonyl.ru/guardian-bot/internal/bot/filters"
	"serotonyl.ru/guardian-bot/internal/common"
	"serotonyl.ru/guardian-bot/internal/config"
	"serotonyl.ru/guardian-bot/internal/db/postgres"
	"serotonyl.ru/guardian-bot/internal/features/admin"
	"serotonyl.ru/guardian-bot/internal/features/assistant"
	"serotonyl.ru/guardian-bot/internal/features/moderation"
	"serotonyl.ru/guardian-bot/internal/features/reputation"
	"serotonyl.ru/guardian-bot/internal/jobs"
	"serotonyl.ru/guardian-bot/internal/toxicity"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	BotAPI    *tgbotapi.BotAPI

	closers []func()
}

// Storage — хранилища, выбранные по STORE_DRIVER.
type Storage struct {
	Ledger  reputation.Repository
	Admin   admin.Repository
	closers []func()
}

// OpenStorage открывает хранилище журнала и сессий модераторов.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return &Storage{
			Ledger:  reputation.NewPostgresRepository(pool),
			Admin:   admin.NewPostgresRepository(pool),
			closers: []func(){pool.Close},
		}, nil

	case config.StoreDriverSQLite:
		repo, err := reputation.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("Журнал репутации в SQLite, сессии модераторов в памяти")
		return &Storage{
			Ledger: repo,
			Admin:  admin.NewMemRepository(),
			closers: []func(){func() {
				if err := repo.Close(); err != nil {
					log.WithError(err).Warn("Ошибка закрытия SQLite")
				}
			}},
		}, nil

	case config.StoreDriverMemory:
		log.Warn("STORE_DRIVER=memory: репутация не переживёт перезапуск")
		return &Storage{
			Ledger: reputation.NewMemRepository(),
			Admin:  admin.NewMemRepository(),
		}, nil

	default:
		return nil, fmt.Errorf("неизвестный STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// OpenActionStore — Redis, если задан REDIS_URL, иначе память процесса.
func OpenActionStore(ctx context.Context, cfg *config.Config) (actionstore.Store, func(), error) {
	if cfg.RedisURL == "" {
		return actionstore.NewMemStore(), func() {}, nil
	}
	store, err := actionstore.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}, nil
}

// NewExternalChecker собирает внешний классификатор. nil — выключен.
func NewExternalChecker(cfg *config.Config) moderation.ExternalChecker {
	if !cfg.ExternalEnabled {
		return nil
	}
	client := toxicity.NewGeminiClient(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiAPIKey, cfg.ExternalRetries)
	log.WithFields(log.Fields{
		"model":   cfg.GeminiModel,
		"timeout": cfg.ExternalTimeout.String(),
	}).Info("Внешний классификатор включён")
	return toxicity.NewPool(client, toxicity.PoolConfig{
		Timeout:        cfg.ExternalTimeout,
		MaxConcurrency: cfg.ExternalMaxConcurrency,
		CacheSize:      cfg.ExternalCacheSize,
		CacheTTL:       cfg.ExternalCacheTTL,
	})
}

// NewAssistant собирает ассистента /ask. nil — выключен.
func NewAssistant(cfg *config.Config) *assistant.Service {
	if !cfg.AssistantEnabled {
		return nil
	}
	client := toxicity.NewGeminiClient(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiAPIKey, cfg.ExternalRetries)
	log.WithField("model", cfg.GeminiModel).Info("Ассистент /ask включён")
	return assistant.NewService(client, assistant.Config{
		Timeout:        cfg.AssistantTimeout,
		MaxConcurrency: cfg.AssistantMaxConcurrency,
		MaxSessions:    cfg.AssistantMaxSessions,
		SessionTTL:     cfg.AssistantSessionTTL,
		MaxExchanges:   cfg.AssistantMaxExchanges,
	})
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	// === 1. Хранилища ===
	storage, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, storage.closers...)

	memory, closeMemory, err := OpenActionStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeMemory)

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)
	a.BotAPI = botAPI

	// === 3. Сервисы ===
	ledger := reputation.NewService(storage.Ledger, cfg)
	enforcer := moderation.NewEnforcer(bot.NewTelegramSink(botAPI), memory, cfg.MuteDuration)
	moderationService := moderation.NewService(cfg, ledger, NewExternalChecker(cfg), enforcer)
	adminService := admin.NewService(storage.Admin, cfg)
	if cfg.AdminPasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH не задан, консоль модератора отключена")
	}

	// === 4. Обработчики ===
	loc := common.LoadLocation(cfg.AppTimezone)
	moderationHandler := moderation.NewHandler(moderationService, botAPI)
	reputationHandler := reputation.NewHandler(ledger, botAPI, loc)
	adminHandler := admin.NewHandler(adminService, moderationService, ledger, botAPI)
	assistantHandler := assistant.NewHandler(NewAssistant(cfg), botAPI)

	// === 5. Фильтры ===
	chatFilter := filters.NewChatFilter(cfg)
	privileges := filters.NewPrivilegeResolver(botAPI, cfg)

	// === 6. Собираем бота ===
	a.Bot = bot.New(botAPI, cfg, moderationHandler, reputationHandler, adminHandler, assistantHandler, chatFilter, privileges)

	// === 7. Планировщик задач ===
	var recovery jobs.Recoverer
	if cfg.RecoveryPoints > 0 {
		recovery = ledger
	}
	a.Scheduler = jobs.NewScheduler(recovery, loc)

	return a, nil
}

// Close освобождает хранилища в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
