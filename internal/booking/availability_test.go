package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/region23/salonbot/internal/storage/models"
	"github.com/region23/salonbot/internal/testutil"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

var day = time.Date(2030, 3, 10, 0, 0, 0, 0, time.UTC)

func slotAt(id int64, hour int, occupied bool) *models.TimeSlot {
	return &models.TimeSlot{ID: id, StartAt: day.Add(time.Duration(hour) * time.Hour), Occupied: occupied}
}

func TestSlotsNeeded(t *testing.T) {
	tests := []struct {
		mins     int
		expected int
	}{
		{30, 1},
		{60, 1},
		{61, 2},
		{90, 2},
		{120, 2},
		{150, 3},
	}

	for _, tt := range tests {
		if got := SlotsNeeded(tt.mins, time.Hour); got != tt.expected {
			t.Errorf("SlotsNeeded(%d) = %d, expected %d", tt.mins, got, tt.expected)
		}
	}
}

func TestFindRuns(t *testing.T) {
	tests := []struct {
		name     string
		slots    []*models.TimeSlot
		duration int
		expected [][]int64
	}{
		{
			name:     "90 minutes around an occupied slot",
			slots:    []*models.TimeSlot{slotAt(1, 9, false), slotAt(2, 10, false), slotAt(3, 11, true), slotAt(4, 12, false)},
			duration: 90,
			expected: [][]int64{{1, 2}},
		},
		{
			name:     "overlapping candidates",
			slots:    []*models.TimeSlot{slotAt(1, 9, false), slotAt(2, 10, false), slotAt(3, 11, false)},
			duration: 120,
			expected: [][]int64{{1, 2}, {2, 3}},
		},
		{
			name:     "gap breaks the run",
			slots:    []*models.TimeSlot{slotAt(1, 9, false), slotAt(2, 11, false)},
			duration: 120,
			expected: nil,
		},
		{
			name:     "short service takes one slot",
			slots:    []*models.TimeSlot{slotAt(1, 9, true), slotAt(2, 10, false)},
			duration: 30,
			expected: [][]int64{{2}},
		},
		{
			name:     "no slots",
			slots:    nil,
			duration: 60,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := FindRuns(tt.slots, tt.duration, time.Hour)
			testutil.AssertNoError(t, err, "FindRuns")

			var got [][]int64
			for _, run := range runs {
				got = append(got, run.SlotIDs)
				if run.StartSlotID != run.SlotIDs[0] {
					t.Errorf("Run start %d does not match first slot %d", run.StartSlotID, run.SlotIDs[0])
				}
			}
			testutil.AssertEqual(t, tt.expected, got, "Runs should match")
		})
	}
}

func TestFindRuns_InvalidDuration(t *testing.T) {
	_, err := FindRuns([]*models.TimeSlot{slotAt(1, 9, false)}, 0, time.Hour)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestFinder_DayInLocation(t *testing.T) {
	s := testutil.SetupTestDB(t)
	ctx := context.Background()
	msk := time.FixedZone("MSK", 3*3600)

	// 23:00 UTC 9 марта это 02:00 10 марта по Москве
	testutil.MustCreateSlots(t, s, day.Add(-time.Hour), 3, time.Hour)

	f := NewFinder(s, time.Hour, msk)
	f.now = testutil.FixedClock(day.Add(-10 * time.Hour))

	runs, err := f.FindRuns(ctx, time.Date(2030, 3, 10, 12, 0, 0, 0, msk), 60)
	testutil.AssertNoError(t, err, "FindRuns")
	testutil.AssertEqual(t, 3, len(runs), "All three slots belong to the Moscow day")

	f.now = testutil.FixedClock(day)
	upcoming, err := f.FindUpcomingRuns(ctx, time.Date(2030, 3, 10, 12, 0, 0, 0, msk), 60)
	testutil.AssertNoError(t, err, "FindUpcomingRuns")
	testutil.AssertEqual(t, 1, len(upcoming), "Only the slot after now is upcoming")

	dates, err := f.AvailableDates(ctx, 3, 60)
	testutil.AssertNoError(t, err, "AvailableDates")
	testutil.AssertEqual(t, 1, len(dates), "One day has free runs")
}

func TestNewQuote(t *testing.T) {
	q, err := NewQuote([]*models.Service{
		{Name: "Покрытие", Price: 1000, DurationMins: 60},
		{Name: "Дизайн", Price: 500, DurationMins: 30},
	})
	testutil.AssertNoError(t, err, "NewQuote")
	testutil.AssertEqual(t, 90, q.DurationMins, "Duration should be summed")
	testutil.AssertEqual(t, int64(1500), q.TotalPrice, "Price should be summed")

	if _, err := NewQuote(nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error for empty selection, got %v", err)
	}
}
