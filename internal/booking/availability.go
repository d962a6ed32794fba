// Package booking реализует поиск свободного времени, запись и отмену.
package booking

import (
	"context"
	"time"

	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

// SlotsNeeded возвращает число слотов для длительности, округляя вверх
func SlotsNeeded(durationMins int, granularity time.Duration) int {
	dur := time.Duration(durationMins) * time.Minute
	n := int(dur / granularity)
	if dur%granularity != 0 {
		n++
	}
	return n
}

// FindRuns ищет все серии подряд идущих свободных слотов нужной длины.
// slots должны быть отсортированы по времени начала. Серии могут пересекаться:
// для каждого подходящего начала возвращается своя серия.
func FindRuns(slots []*models.TimeSlot, durationMins int, granularity time.Duration) ([]models.RunCandidate, error) {
	if durationMins <= 0 {
		return nil, apperrors.Validation("длительность должна быть больше нуля")
	}
	if granularity <= 0 {
		return nil, apperrors.Validation("шаг расписания должен быть больше нуля")
	}

	needed := SlotsNeeded(durationMins, granularity)
	var runs []models.RunCandidate

	for i, start := range slots {
		if start.Occupied {
			continue
		}

		ids := []int64{start.ID}
		prev := start
		for j := i + 1; j < len(slots) && len(ids) < needed; j++ {
			next := slots[j]
			if next.Occupied || !next.StartAt.Equal(prev.StartAt.Add(granularity)) {
				break
			}
			ids = append(ids, next.ID)
			prev = next
		}

		if len(ids) == needed {
			runs = append(runs, models.RunCandidate{
				StartSlotID: start.ID,
				StartAt:     start.StartAt,
				SlotIDs:     ids,
			})
		}
	}

	return runs, nil
}

// SlotLister отдает слоты за интервал
type SlotLister interface {
	ListSlots(ctx context.Context, from, to time.Time, onlyFree bool) ([]*models.TimeSlot, error)
}

// Finder ищет серии на конкретный день в часовом поясе салона
type Finder struct {
	slots       SlotLister
	granularity time.Duration
	location    *time.Location
	now         func() time.Time
}

// NewFinder создает Finder
func NewFinder(slots SlotLister, granularity time.Duration, location *time.Location) *Finder {
	return &Finder{
		slots:       slots,
		granularity: granularity,
		location:    location,
		now:         time.Now,
	}
}

// FindRuns возвращает все серии на день date
func (f *Finder) FindRuns(ctx context.Context, date time.Time, durationMins int) ([]models.RunCandidate, error) {
	from, to := f.dayBounds(date)

	// Занятые слоты нужны, чтобы серия не перепрыгнула через них
	slots, err := f.slots.ListSlots(ctx, from, to, false)
	if err != nil {
		return nil, err
	}

	return FindRuns(slots, durationMins, f.granularity)
}

// FindUpcomingRuns возвращает только серии, которые еще не начались
func (f *Finder) FindUpcomingRuns(ctx context.Context, date time.Time, durationMins int) ([]models.RunCandidate, error) {
	runs, err := f.FindRuns(ctx, date, durationMins)
	if err != nil {
		return nil, err
	}

	now := f.now()
	upcoming := runs[:0]
	for _, run := range runs {
		if run.StartAt.After(now) {
			upcoming = append(upcoming, run)
		}
	}
	return upcoming, nil
}

// AvailableDates возвращает дни в ближайшие days дней, где есть хотя бы одна подходящая серия
func (f *Finder) AvailableDates(ctx context.Context, days, durationMins int) ([]time.Time, error) {
	today, _ := f.dayBounds(f.now())

	var dates []time.Time
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i)
		runs, err := f.FindUpcomingRuns(ctx, day, durationMins)
		if err != nil {
			return nil, err
		}
		if len(runs) > 0 {
			dates = append(dates, day)
		}
	}
	return dates, nil
}

func (f *Finder) dayBounds(date time.Time) (time.Time, time.Time) {
	d := date.In(f.location)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, f.location)
	return from, from.AddDate(0, 0, 1)
}
