package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	botservice "github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/internal/config"
	"github.com/region23/salonbot/internal/storage"
	"github.com/region23/salonbot/internal/storage/models"
	"github.com/region23/salonbot/internal/storage/sqlite"
	"github.com/region23/salonbot/internal/testutil"
	apperrors "github.com/region23/salonbot/pkg/errors"
	"github.com/region23/salonbot/pkg/logger"
)

const adminTestChat = 900

func newAdminHandler(t *testing.T) (*AdminHandler, *sqlite.SQLiteStorage) {
	t.Helper()
	store := testutil.SetupTestDB(t)
	cfg := &config.Config{
		Schedule: config.ScheduleConfig{Timezone: "UTC", GranularityMins: 60, ScheduleDays: 7},
	}
	svc := botservice.NewService(botservice.Deps{
		Storage: store,
		Config:  cfg,
		Log:     logger.NewNop(),
	})
	return NewAdminHandler(svc), store
}

func TestParseServiceArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		want  string
		price int64
		mins  int
	}{
		{"default duration", []string{"Покрытие", "1000"}, "Покрытие", 1000, defaultServiceMins},
		{"explicit duration", []string{"Покрытие", "1000", "90"}, "Покрытие", 1000, 90},
		{"multi word name", []string{"Снятие", "гель", "лака", "300", "30"}, "Снятие гель лака", 300, 30},
		{"name with price only", []string{"Френч", "дизайн", "700"}, "Френч дизайн", 700, defaultServiceMins},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, price, mins, err := parseServiceArgs(tt.args)
			testutil.AssertNoError(t, err, "parse args")
			testutil.AssertEqual(t, tt.want, name, "name")
			testutil.AssertEqual(t, tt.price, price, "price")
			testutil.AssertEqual(t, tt.mins, mins, "duration")
		})
	}
}

func TestParseServiceArgsRejectsBadInput(t *testing.T) {
	for _, args := range [][]string{
		{"1000"},
		{"Покрытие", "дорого"},
	} {
		_, _, _, err := parseServiceArgs(args)
		testutil.AssertErrorIs(t, err, apperrors.ErrValidation, "invalid args")
	}
}

func TestSplitNameValue(t *testing.T) {
	name, value, err := splitNameValue([]string{"Снятие", "гель", "400"})
	testutil.AssertNoError(t, err, "split")
	testutil.AssertEqual(t, "Снятие гель", name, "name")
	testutil.AssertEqual(t, "400", value, "value")

	_, _, err = splitNameValue([]string{"400"})
	testutil.AssertErrorIs(t, err, apperrors.ErrValidation, "single word")
}

func TestSlotsListsIDsAndState(t *testing.T) {
	h, store := newAdminHandler(t)
	ctx := context.Background()

	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day()+1, 10, 0, 0, 0, time.UTC)
	slots := testutil.MustCreateSlots(t, store, day, 2, time.Hour)
	testutil.MustCreateSlots(t, store, day.AddDate(0, 0, 1), 1, time.Hour)

	user := testutil.MustCreateUser(t, store, 100, "+79001234567")
	err := store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.OccupySlots(ctx, []int64{slots[1].ID}, user.ID); err != nil {
			return err
		}
		return tx.InsertBooking(ctx, &models.Booking{UserID: user.ID, FirstSlotID: slots[1].ID, TotalPrice: 1000})
	})
	testutil.AssertNoError(t, err, "book slot")

	reply, err := h.slots(ctx, adminTestChat, []string{day.Format("2006-01-02")})
	testutil.AssertNoError(t, err, "list slots for date")

	lines := strings.Split(reply, "\n")
	var listed []string
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			listed = append(listed, line)
		}
	}
	testutil.AssertEqual(t, 2, len(listed), "only slots of that day")
	testutil.AssertEqual(t, true, strings.HasPrefix(listed[0], fmt.Sprintf("#%d ", slots[0].ID)), "first slot id")
	testutil.AssertEqual(t, true, strings.Contains(listed[0], "свободен"), "first slot is free")
	testutil.AssertEqual(t, true, strings.Contains(listed[1], "занят"), "second slot is booked")

	reply, err = h.slots(ctx, adminTestChat, nil)
	testutil.AssertNoError(t, err, "list upcoming slots")
	testutil.AssertEqual(t, 3, strings.Count(reply, "\n#"), "all upcoming slots")
}

func TestSlotsRejectsBadInput(t *testing.T) {
	h, _ := newAdminHandler(t)
	ctx := context.Background()

	_, err := h.slots(ctx, adminTestChat, []string{"05.03.2030"})
	testutil.AssertErrorIs(t, err, apperrors.ErrValidation, "bad date")

	_, err = h.slots(ctx, adminTestChat, []string{"2030-03-05", "extra"})
	testutil.AssertErrorIs(t, err, apperrors.ErrValidation, "extra args")

	reply, err := h.slots(ctx, adminTestChat, []string{"2030-03-05"})
	testutil.AssertNoError(t, err, "empty day")
	testutil.AssertEqual(t, "Слотов нет.", reply, "empty day reply")
}
