package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/region23/salonbot/pkg/logger"
	"github.com/region23/salonbot/pkg/metrics"
)

var _ Runner = (*Scheduler)(nil)

// Scheduler запускает задачи через cron. Одна и та же задача не выполняется
// параллельно сама с собой: очередной запуск пропускается, пока идет предыдущий.
type Scheduler struct {
	cron   *cron.Cron
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New создает планировщик в часовом поясе loc
func New(loc *time.Location, log *logger.Logger) *Scheduler {
	cl := log.ForCron()
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// ScheduleInterval регистрирует задачу с фиксированным интервалом
func (s *Scheduler) ScheduleInterval(name string, every, timeout time.Duration, job Job) error {
	if every < time.Second {
		return fmt.Errorf("interval for %s must be at least 1s, got %s", name, every)
	}
	return s.add(name, fmt.Sprintf("@every %s", every), timeout, job)
}

// ScheduleCron регистрирует задачу по cron-выражению (секунды минуты часы день месяц день_недели)
func (s *Scheduler) ScheduleCron(name, spec string, timeout time.Duration, job Job) error {
	return s.add(name, spec, timeout, job)
}

func (s *Scheduler) add(name, spec string, timeout time.Duration, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s is already scheduled", name)
	}

	id, err := s.cron.AddFunc(spec, s.wrap(name, timeout, job))
	if err != nil {
		return fmt.Errorf("failed to schedule %s with %q: %w", name, spec, err)
	}
	s.entries[name] = id

	s.log.Info("Job scheduled",
		logger.String("job", name),
		logger.String("spec", spec))

	return nil
}

func (s *Scheduler) wrap(name string, timeout time.Duration, job Job) func() {
	return func() {
		ctx := s.ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		started := time.Now()
		if err := job(ctx); err != nil {
			metrics.RecordError("scheduler", name)
			s.log.Error("Job failed",
				logger.String("job", name),
				logger.Duration("elapsed", time.Since(started)),
				logger.Error(err))
			return
		}

		s.log.Debug("Job finished",
			logger.String("job", name),
			logger.Duration("elapsed", time.Since(started)))
	}
}

// Next возвращает время следующего запуска задачи
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}

// Start запускает планировщик
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop останавливает планировщик. Если ctx истекает раньше, чем завершатся
// задачи, их контекст отменяется.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.cancel()
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
