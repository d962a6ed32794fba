package booking

import (
	"context"
	"time"

	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
	"github.com/region23/salonbot/pkg/logger"
	"github.com/region23/salonbot/pkg/metrics"
)

// SlotStore операции со слотами, нужные планировщику расписания
type SlotStore interface {
	CreateSlot(ctx context.Context, startAt time.Time) (*models.TimeSlot, error)
	CreateSlots(ctx context.Context, starts []time.Time) (int, error)
	DeleteSlotsBefore(ctx context.Context, cutoff time.Time, step time.Duration, includeBooked bool) (int64, int64, error)
}

// Planner создает и чистит слоты расписания
type Planner struct {
	store       SlotStore
	granularity time.Duration
	location    *time.Location
	log         *logger.Logger
}

// NewPlanner создает Planner
func NewPlanner(store SlotStore, granularity time.Duration, location *time.Location, log *logger.Logger) *Planner {
	return &Planner{store: store, granularity: granularity, location: location, log: log}
}

// AddSlot добавляет один слот по локальному времени салона
func (p *Planner) AddSlot(ctx context.Context, date string, clock string) (*models.TimeSlot, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, p.location)
	if err != nil {
		return nil, apperrors.Validation("неверная дата или время, нужен формат YYYY-MM-DD HH:MM")
	}

	slot, err := p.store.CreateSlot(ctx, start)
	if err != nil {
		return nil, err
	}
	metrics.RecordSlotsCreated(1)
	return slot, nil
}

// Generate создает слоты с шагом расписания на days дней начиная с firstDay,
// с fromHour включительно до toHour исключительно. Существующие слоты пропускаются.
func (p *Planner) Generate(ctx context.Context, firstDay time.Time, days, fromHour, toHour int) (int, error) {
	if days <= 0 || days > 60 {
		return 0, apperrors.Validation("число дней должно быть от 1 до 60")
	}
	if fromHour < 0 || toHour > 24 || fromHour >= toHour {
		return 0, apperrors.Validation("часы работы должны быть в пределах 0-24, начало раньше конца")
	}

	d := firstDay.In(p.location)
	var starts []time.Time
	for i := 0; i < days; i++ {
		day := time.Date(d.Year(), d.Month(), d.Day()+i, 0, 0, 0, 0, p.location)
		from := day.Add(time.Duration(fromHour) * time.Hour)
		to := day.Add(time.Duration(toHour) * time.Hour)
		for at := from; at.Add(p.granularity).Compare(to) <= 0; at = at.Add(p.granularity) {
			starts = append(starts, at)
		}
	}

	created, err := p.store.CreateSlots(ctx, starts)
	if err != nil {
		return 0, err
	}

	metrics.RecordSlotsCreated(created)
	p.log.Info("Slots generated",
		logger.Int("requested", len(starts)),
		logger.Int("created", created))

	return created, nil
}

// GenerateWorkHours создает слоты по рабочим часам в формате HH:MM
func (p *Planner) GenerateWorkHours(ctx context.Context, firstDay time.Time, days int, workStart, workEnd string) (int, error) {
	from, err := parseHour(workStart)
	if err != nil {
		return 0, err
	}
	to, err := parseHour(workEnd)
	if err != nil {
		return 0, err
	}
	return p.Generate(ctx, firstDay, days, from, to)
}

// Cleanup удаляет слоты, начавшиеся раньше now-olderThan. С includeBooked
// старые записи отменяются вместе со всей серией слотов.
func (p *Planner) Cleanup(ctx context.Context, now time.Time, olderThan time.Duration, includeBooked bool) (int64, int64, error) {
	cutoff := now.Add(-olderThan)

	slots, bookings, err := p.store.DeleteSlotsBefore(ctx, cutoff, p.granularity, includeBooked)
	if err != nil {
		return 0, 0, err
	}

	metrics.RecordSlotsCleaned(slots)
	p.log.Info("Old slots cleaned",
		logger.Time("cutoff", cutoff),
		logger.Int64("slots", slots),
		logger.Int64("bookings", bookings),
		logger.Bool("include_booked", includeBooked))

	return slots, bookings, nil
}

func parseHour(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, apperrors.Validation("неверное время %q, нужен формат HH:MM", clock)
	}
	if t.Minute() != 0 {
		return 0, apperrors.Validation("время %s должно начинаться с целого часа", clock)
	}
	return t.Hour(), nil
}
