package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
	"github.com/region23/salonbot/pkg/logger"
	"github.com/region23/salonbot/pkg/metrics"
)

// LastSweepKey ключ настройки со временем последнего прогона
const LastSweepKey = "last_sweep_at"

// defaultSendTimeout ограничивает одну отправку напоминания
const defaultSendTimeout = 15 * time.Second

// Store нужные прогону операции хранилища
type Store interface {
	ListPendingReminders(ctx context.Context, flag models.ReminderFlag, from, to time.Time) ([]*models.BookingDetails, error)
	MarkReminded(ctx context.Context, bookingID int64, flag models.ReminderFlag) error
	SetSetting(ctx context.Context, key, value string) error
}

// Sender доставляет напоминание клиенту
type Sender interface {
	Send(ctx context.Context, chatID int64, r Reminder) error
}

// StageReport итоги одной стадии
type StageReport struct {
	Candidates int
	Sent       int
	Failed     int
}

// DeliveryReport итоги прогона
type DeliveryReport struct {
	RunID  string
	Now    time.Time
	Stages map[Stage]StageReport
	Errors []error
}

// Sent возвращает общее число отправленных напоминаний
func (r DeliveryReport) Sent() int {
	total := 0
	for _, s := range r.Stages {
		total += s.Sent
	}
	return total
}

// Failed возвращает общее число неудачных отправок
func (r DeliveryReport) Failed() int {
	total := 0
	for _, s := range r.Stages {
		total += s.Failed
	}
	return total
}

// Sweeper выполняет прогоны напоминаний
type Sweeper struct {
	store    Store
	sender   Sender
	window   time.Duration
	location *time.Location
	log      *logger.Logger
	now      func() time.Time

	sendTimeout time.Duration

	// ручной прогон и прогон по расписанию не выполняются одновременно
	mu sync.Mutex
}

// NewSweeper создает Sweeper
func NewSweeper(store Store, sender Sender, window time.Duration, location *time.Location, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		sender:   sender,
		window:   window,
		location: location,
		log:      log,
		now:      time.Now,

		sendTimeout: defaultSendTimeout,
	}
}

// RunSweep выполняет один прогон. Нулевой now означает текущее время.
// Ошибка отправки одной записи не прерывает прогон: стадия остается
// неотправленной, ошибка попадает в отчет. Отмена ctx не обрывает прогон,
// каждая отправка ограничена только своим таймаутом.
func (s *Sweeper) RunSweep(ctx context.Context, now time.Time) DeliveryReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	if now.IsZero() {
		now = s.now()
	}
	started := time.Now()

	report := DeliveryReport{
		RunID:  uuid.NewString(),
		Now:    now,
		Stages: make(map[Stage]StageReport, len(Stages)),
	}
	log := s.log.WithFields(logger.String("run_id", report.RunID))

	for _, stage := range Stages {
		report.Stages[stage] = s.sweepStage(ctx, log, stage, now, &report)
	}

	if err := s.store.SetSetting(ctx, LastSweepKey, now.UTC().Format(time.RFC3339)); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("failed to store last sweep time: %w", err))
	}

	metrics.RecordSweep(time.Since(started).Seconds(), now.Unix())
	log.Info("Reminder sweep finished",
		logger.Int("sent", report.Sent()),
		logger.Int("failed", report.Failed()),
		logger.Int("errors", len(report.Errors)))

	return report
}

func (s *Sweeper) sweepStage(ctx context.Context, log *logger.Logger, stage Stage, now time.Time, report *DeliveryReport) StageReport {
	var sr StageReport
	from, to := stage.Window(now, s.window)

	candidates, err := s.store.ListPendingReminders(ctx, stage.Flag, from, to)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("stage %s: %w", stage.Name, err))
		log.Error("Failed to select reminder candidates",
			logger.String("stage", stage.Name),
			logger.Error(err))
		return sr
	}
	sr.Candidates = len(candidates)

	for _, d := range candidates {
		if err := s.send(ctx, d.UserChatID, Build(stage, d, s.location)); err != nil {
			sr.Failed++
			metrics.RecordReminder(stage.Name, "failed")
			report.Errors = append(report.Errors,
				apperrors.ErrDelivery.WithContext(d.ID).WithError(fmt.Errorf("stage %s booking %d: %w", stage.Name, d.ID, err)))
			log.Warn("Failed to send reminder",
				logger.String("stage", stage.Name),
				logger.Int64("booking_id", d.ID),
				logger.Int64("chat_id", d.UserChatID),
				logger.Error(err))
			continue
		}

		if err := s.store.MarkReminded(ctx, d.ID, stage.Flag); err != nil {
			// Сообщение ушло, но флаг не записан: в пределах окна возможен повтор
			report.Errors = append(report.Errors, fmt.Errorf("stage %s booking %d: %w", stage.Name, d.ID, err))
			log.Error("Failed to mark reminder as sent",
				logger.String("stage", stage.Name),
				logger.Int64("booking_id", d.ID),
				logger.Error(err))
		}

		sr.Sent++
		metrics.RecordReminder(stage.Name, "sent")
		log.Info("Reminder sent",
			logger.String("stage", stage.Name),
			logger.Int64("booking_id", d.ID))
	}

	return sr
}

func (s *Sweeper) send(ctx context.Context, chatID int64, msg Reminder) error {
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	return s.sender.Send(ctx, chatID, msg)
}

// Preview возвращает кандидатов каждой стадии без отправки
func (s *Sweeper) Preview(ctx context.Context, now time.Time) (map[Stage][]*models.BookingDetails, error) {
	if now.IsZero() {
		now = s.now()
	}

	result := make(map[Stage][]*models.BookingDetails, len(Stages))
	for _, stage := range Stages {
		from, to := stage.Window(now, s.window)
		candidates, err := s.store.ListPendingReminders(ctx, stage.Flag, from, to)
		if err != nil {
			return nil, err
		}
		result[stage] = candidates
	}
	return result, nil
}
