package scheduler

import (
	"context"
	"time"
)

// Job периодическая задача. Контекст отменяется при остановке планировщика
// или по истечении таймаута задачи.
type Job func(ctx context.Context) error

// Runner управляет жизненным циклом периодических задач
type Runner interface {
	// ScheduleInterval запускает задачу каждые every
	ScheduleInterval(name string, every, timeout time.Duration, job Job) error

	// ScheduleCron запускает задачу по cron-выражению с секундами
	ScheduleCron(name, spec string, timeout time.Duration, job Job) error

	// Start запускает планировщик
	Start()

	// Stop останавливает планировщик и ждет завершения выполняющихся задач
	Stop(ctx context.Context) error
}
