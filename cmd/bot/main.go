// Package main — точка входа бота-модератора.
// Загружает конфигурацию, инициализирует приложение и запускает.
// Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/app"
	"serotonyl.ru/guardian-bot/internal/config"
	"serotonyl.ru/guardian-bot/internal/metrics"
)

func main() {
	// Настраиваем логирование
	setupLogging()

	log.WithField("version", versioninfo.Short()).Info("=== Бот запускается ===")

	// Загружаем конфигурацию из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	// Устанавливаем уровень логирования из конфига
	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}
	cfg.WarnUnused()

	// Контекст отменяется по Ctrl+C и docker stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем приложение (хранилища, бот, сервисы, обработчики)
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.Close()

	// Запускаем планировщик задач (cron)
	if err := application.Scheduler.Start(ctx); err != nil {
		log.WithError(err).Fatal("Не удалось запустить планировщик")
	}
	defer application.Scheduler.Stop()

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			log.WithError(err).Error("Сервер метрик остановлен с ошибкой")
		}
	}()

	log.Info("=== Бот готов к работе ===")

	// Блокируемся до сигнала остановки
	application.Bot.Start(ctx)

	log.Info("=== Бот остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
