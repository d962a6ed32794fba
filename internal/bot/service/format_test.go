package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/region23/salonbot/internal/reminder"
	"github.com/region23/salonbot/internal/storage/models"
	"github.com/region23/salonbot/internal/testutil"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

func TestFormatWhen(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	testutil.AssertNoError(t, err, "load location")

	at := time.Date(2025, 3, 5, 11, 0, 0, 0, time.UTC)
	testutil.AssertEqual(t, "5 марта, 14:00", FormatWhen(at, moscow), "moscow time")
	testutil.AssertEqual(t, "5 марта, 11:00", FormatWhen(at, time.UTC), "utc time")
}

func TestFormatDuration(t *testing.T) {
	tests := map[int]string{
		30:  "30 мин",
		60:  "1 ч",
		90:  "1 ч 30 мин",
		180: "3 ч",
	}
	for mins, want := range tests {
		testutil.AssertEqual(t, want, FormatDuration(mins), "duration")
	}
}

func TestFormatBookingForAdminFallbacks(t *testing.T) {
	d := &models.BookingDetails{
		Booking: models.Booking{ID: 7, TotalPrice: 1500},
		StartAt: time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC),
	}

	text := FormatBookingForAdmin(d, time.UTC)
	for _, part := range []string{"#7", "без имени", "нет телефона", "1500 ₽"} {
		if !strings.Contains(text, part) {
			t.Errorf("Expected %q in %q", part, text)
		}
	}
}

func TestFormatReport(t *testing.T) {
	r := reminder.DeliveryReport{
		Stages: map[reminder.Stage]reminder.StageReport{
			reminder.Stage24h: {Candidates: 2, Sent: 1, Failed: 1},
		},
		Errors: []error{apperrors.ErrDelivery},
	}

	text := FormatReport(r)
	if !strings.Contains(text, "Отправлено: 1, ошибок: 1") {
		t.Errorf("Unexpected totals in %q", text)
	}
	if !strings.Contains(text, "24h: кандидатов 2") {
		t.Errorf("Missing stage line in %q", text)
	}
	if strings.Contains(text, "12h") {
		t.Errorf("Stages without candidates should be skipped: %q", text)
	}
}

func TestFormatPreviewEmpty(t *testing.T) {
	text := FormatPreview(map[reminder.Stage][]*models.BookingDetails{}, time.UTC)
	if !strings.Contains(text, "сейчас никого") {
		t.Errorf("Unexpected preview %q", text)
	}
}

func TestFormatStatsBreakdowns(t *testing.T) {
	st := &models.Stats{TotalBookings: 3, Revenue: 4500}
	st.Weekdays[time.Sunday] = models.WeekdayStat{Bookings: 1, Revenue: 1500}
	st.Weekdays[time.Monday] = models.WeekdayStat{Bookings: 2, Revenue: 3000}
	st.TopClients = []models.ClientStat{{Name: "Анна", Visits: 2, Spent: 3000}, {Visits: 1, Spent: 1500}}

	text := FormatStats(st)
	monday := strings.Index(text, "Понедельник: 2, 3000 ₽")
	sunday := strings.Index(text, "Воскресенье: 1, 1500 ₽")
	if monday < 0 || sunday < monday {
		t.Errorf("Expected week to start on Monday: %q", text)
	}
	if strings.Contains(text, "Вторник") {
		t.Errorf("Days without bookings should be skipped: %q", text)
	}
	if !strings.Contains(text, "1. Анна: 2 визитов, 3000 ₽") || !strings.Contains(text, "2. без имени") {
		t.Errorf("Unexpected top clients: %q", text)
	}

	empty := FormatStats(&models.Stats{})
	if strings.Contains(empty, "По дням недели") {
		t.Errorf("Empty stats should not have breakdowns: %q", empty)
	}
}

func TestFormatSlots(t *testing.T) {
	owner := int64(1)
	slots := []*models.TimeSlot{
		{ID: 7, StartAt: time.Date(2030, 3, 5, 10, 0, 0, 0, time.UTC)},
		{ID: 8, StartAt: time.Date(2030, 3, 5, 11, 0, 0, 0, time.UTC), Occupied: true, OwnerID: &owner},
	}

	text := FormatSlots(slots, true, time.UTC)
	testutil.AssertEqual(t, true, strings.Contains(text, "#7 5 марта, 10:00 · 🟢 свободен"), "free slot line")
	testutil.AssertEqual(t, true, strings.Contains(text, "#8 5 марта, 11:00 · 🔴 занят"), "booked slot line")
	testutil.AssertEqual(t, true, strings.Contains(text, "Показаны первые 2"), "truncation hint")
	testutil.AssertEqual(t, "Слотов нет.", FormatSlots(nil, false, time.UTC), "empty list")
}

func TestUserMessage(t *testing.T) {
	testutil.AssertEqual(t, "слот уже занят", UserMessage(apperrors.ErrSlotOccupied), "conflict message")
	testutil.AssertEqual(t, "Произошла ошибка, попробуйте позже",
		UserMessage(apperrors.ErrInternal.WithMessage("db is down")), "internal details hidden")
	testutil.AssertEqual(t, "Произошла ошибка, попробуйте позже",
		UserMessage(errors.New("connection reset")), "plain error")
}
