// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежедневное восстановление репутации.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// RecoverySpec — каждый день в 00:00 по APP_TIMEZONE.
const RecoverySpec = "0 0 * * *"

// Recoverer начисляет ежедневное восстановление (reputation.Service).
type Recoverer interface {
	Recover(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	recovery Recoverer
	loc      *time.Location
}

// NewScheduler создаёт планировщик в часовом поясе loc.
// recovery == nil — восстановление выключено (RECOVERY_POINTS=0).
func NewScheduler(recovery Recoverer, loc *time.Location) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		recovery: recovery,
		loc:      loc,
	}
}

// Start регистрирует задачи и запускает cron.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.recovery != nil {
		if _, err := s.cron.AddFunc(RecoverySpec, func() { s.RunRecovery(ctx) }); err != nil {
			return err
		}
	}
	s.cron.Start()
	log.WithFields(log.Fields{
		"timezone": s.loc.String(),
		"jobs":     len(s.cron.Entries()),
	}).Info("Планировщик задач запущен")
	return nil
}

// RunRecovery — один проход восстановления репутации.
func (s *Scheduler) RunRecovery(ctx context.Context) {
	start := time.Now()
	log.Info("[CRON] Ежедневное восстановление репутации")
	n, err := s.recovery.Recover(ctx)
	if err != nil {
		log.WithError(err).WithField("recovered", n).Error("[CRON] Ошибка восстановления")
		return
	}
	log.WithFields(log.Fields{
		"recovered": n,
		"took":      time.Since(start).String(),
	}).Info("[CRON] Восстановление завершено")
}

// Stop останавливает планировщик и ждёт запущенные задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
