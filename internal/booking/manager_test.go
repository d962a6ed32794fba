package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/region23/salonbot/internal/events"
	"github.com/region23/salonbot/internal/storage/models"
	"github.com/region23/salonbot/internal/storage/sqlite"
	"github.com/region23/salonbot/internal/testutil"
	apperrors "github.com/region23/salonbot/pkg/errors"
	"github.com/region23/salonbot/pkg/logger"
)

const adminChatID = 900

var morning = time.Date(2030, 3, 10, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []events.Type
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func setup(t *testing.T) (*Manager, *sqlite.SQLiteStorage, *recordingPublisher) {
	t.Helper()
	s := testutil.SetupTestDB(t)
	pub := &recordingPublisher{}
	m := NewManager(s, AdminList{adminChatID}, pub, time.Hour, logger.NewNop())
	return m, s, pub
}

func occupiedIDs(t *testing.T, s *sqlite.SQLiteStorage) []int64 {
	t.Helper()
	slots, err := s.ListSlots(context.Background(), morning.Add(-24*time.Hour), morning.Add(48*time.Hour), false)
	testutil.AssertNoError(t, err, "ListSlots")
	var ids []int64
	for _, slot := range slots {
		if slot.Occupied {
			if slot.OwnerID == nil {
				t.Fatalf("Slot %d is occupied without owner", slot.ID)
			}
			ids = append(ids, slot.ID)
		}
	}
	return ids
}

func TestReserveAndRelease_RoundTrip(t *testing.T) {
	m, s, pub := setup(t)
	ctx := context.Background()

	user := testutil.MustCreateUser(t, s, 1, "+79990000001")
	slots := testutil.MustCreateSlots(t, s, morning, 3, time.Hour)
	ids := testutil.SlotIDs(slots[:2])

	b, err := m.Reserve(ctx, ids, user.ID, 1500)
	testutil.AssertNoError(t, err, "Reserve")
	testutil.AssertEqual(t, slots[0].ID, b.FirstSlotID, "First slot should match")
	testutil.AssertEqual(t, ids, occupiedIDs(t, s), "Run should be occupied")

	run, err := m.RunSlots(ctx, b.ID)
	testutil.AssertNoError(t, err, "RunSlots")
	testutil.AssertEqual(t, ids, run, "Run should be reconstructed")

	testutil.AssertNoError(t, m.Release(ctx, b.ID, 1), "Release")
	testutil.AssertEqual(t, []int64(nil), occupiedIDs(t, s), "All slots should be free")

	err = m.Release(ctx, b.ID, 1)
	testutil.AssertErrorIs(t, err, apperrors.ErrNotFound, "Second release")

	testutil.AssertEqual(t, []events.Type{events.BookingCreated, events.BookingCancelled}, pub.types(), "Events")
}

func TestReserve_Validation(t *testing.T) {
	m, s, _ := setup(t)
	ctx := context.Background()

	withPhone := testutil.MustCreateUser(t, s, 1, "+79990000001")
	noPhone := testutil.MustCreateUser(t, s, 2, "")
	slots := testutil.MustCreateSlots(t, s, morning, 3, time.Hour)

	tests := []struct {
		name   string
		ids    []int64
		userID int64
		price  int64
		target error
	}{
		{"empty selection", nil, withPhone.ID, 0, apperrors.ErrValidation},
		{"duplicate slot", []int64{slots[0].ID, slots[0].ID}, withPhone.ID, 0, apperrors.ErrValidation},
		{"negative price", []int64{slots[0].ID}, withPhone.ID, -1, apperrors.ErrValidation},
		{"unknown user", []int64{slots[0].ID}, 999, 0, apperrors.ErrNotFound},
		{"no phone", []int64{slots[0].ID}, noPhone.ID, 0, apperrors.ErrValidation},
		{"missing slot", []int64{slots[0].ID, 999}, withPhone.ID, 0, apperrors.ErrNotFound},
		{"gap in run", []int64{slots[0].ID, slots[2].ID}, withPhone.ID, 0, apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Reserve(ctx, tt.ids, tt.userID, tt.price)
			testutil.AssertErrorIs(t, err, tt.target, "Reserve")
			testutil.AssertEqual(t, []int64(nil), occupiedIDs(t, s), "Nothing should be occupied")
		})
	}
}

func TestReserve_OccupiedIsConflict(t *testing.T) {
	m, s, _ := setup(t)
	ctx := context.Background()

	first := testutil.MustCreateUser(t, s, 1, "+79990000001")
	second := testutil.MustCreateUser(t, s, 2, "+79990000002")
	slots := testutil.MustCreateSlots(t, s, morning, 3, time.Hour)

	_, err := m.Reserve(ctx, []int64{slots[1].ID}, first.ID, 500)
	testutil.AssertNoError(t, err, "Reserve")

	_, err = m.Reserve(ctx, testutil.SlotIDs(slots[:2]), second.ID, 1500)
	testutil.AssertErrorIs(t, err, apperrors.ErrConflict, "Overlapping reserve")
	testutil.AssertEqual(t, []int64{slots[1].ID}, occupiedIDs(t, s), "Only the first booking holds slots")
}

func TestReserve_ConcurrentSingleWinner(t *testing.T) {
	m, s, _ := setup(t)
	ctx := context.Background()

	const clients = 8
	var users []*models.User
	for i := 0; i < clients; i++ {
		users = append(users, testutil.MustCreateUser(t, s, int64(100+i), fmt.Sprintf("+79990000%03d", i)))
	}
	slots := testutil.MustCreateSlots(t, s, morning, 3, time.Hour)

	// Половина клиентов претендует на 9-10, половина на 10-11: серии пересекаются
	runs := [][]int64{testutil.SlotIDs(slots[0:2]), testutil.SlotIDs(slots[1:3])}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []int64
		conflicts int
	)
	start := make(chan struct{})

	for i, u := range users {
		wg.Add(1)
		go func(run []int64, userID int64) {
			defer wg.Done()
			<-start
			b, err := m.Reserve(ctx, run, userID, 1000)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, b.FirstSlotID)
			case errors.Is(err, apperrors.ErrConflict):
				conflicts++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(runs[i%2], u.ID)
	}
	close(start)
	wg.Wait()

	testutil.AssertEqual(t, 1, len(winners), "Exactly one reservation should win")
	testutil.AssertEqual(t, clients-1, conflicts, "Everyone else should get a conflict")

	var expected []int64
	if winners[0] == slots[0].ID {
		expected = runs[0]
	} else {
		expected = runs[1]
	}
	testutil.AssertEqual(t, expected, occupiedIDs(t, s), "Occupied set should equal the winning run")
}

func TestRelease_AdjacentBookingsOfSameUser(t *testing.T) {
	m, s, _ := setup(t)
	ctx := context.Background()

	user := testutil.MustCreateUser(t, s, 1, "+79990000001")
	slots := testutil.MustCreateSlots(t, s, morning, 4, time.Hour)

	first, err := m.Reserve(ctx, testutil.SlotIDs(slots[0:2]), user.ID, 1000)
	testutil.AssertNoError(t, err, "Reserve first")
	_, err = m.Reserve(ctx, testutil.SlotIDs(slots[2:4]), user.ID, 1000)
	testutil.AssertNoError(t, err, "Reserve second")

	testutil.AssertNoError(t, m.Release(ctx, first.ID, 1), "Release first")
	testutil.AssertEqual(t, testutil.SlotIDs(slots[2:4]), occupiedIDs(t, s), "Second booking keeps its slots")
}

func TestRelease_Authorization(t *testing.T) {
	m, s, _ := setup(t)
	ctx := context.Background()

	user := testutil.MustCreateUser(t, s, 1, "+79990000001")
	slots := testutil.MustCreateSlots(t, s, morning, 1, time.Hour)
	b, err := m.Reserve(ctx, testutil.SlotIDs(slots), user.ID, 1000)
	testutil.AssertNoError(t, err, "Reserve")

	err = m.Release(ctx, b.ID, 2)
	testutil.AssertErrorIs(t, err, apperrors.ErrForbidden, "Stranger release")

	testutil.AssertNoError(t, m.Release(ctx, b.ID, adminChatID), "Admin release")
}

func TestReschedule(t *testing.T) {
	m, s, pub := setup(t)
	ctx := context.Background()

	user := testutil.MustCreateUser(t, s, 1, "+79990000001")
	slots := testutil.MustCreateSlots(t, s, morning, 4, time.Hour)

	b, err := m.Reserve(ctx, testutil.SlotIDs(slots[0:2]), user.ID, 1500)
	testutil.AssertNoError(t, err, "Reserve")
	testutil.AssertNoError(t, s.MarkReminded(ctx, b.ID, models.Reminded24h), "MarkReminded")

	// Сдвиг на час: новая серия пересекается со старой
	moved, err := m.Reschedule(ctx, b.ID, 1, testutil.SlotIDs(slots[1:3]))
	testutil.AssertNoError(t, err, "Reschedule")
	testutil.AssertEqual(t, slots[1].ID, moved.FirstSlotID, "Booking should start at the new slot")
	testutil.AssertEqual(t, testutil.SlotIDs(slots[1:3]), occupiedIDs(t, s), "New run should be occupied")

	details, err := s.GetBookingDetails(ctx, b.ID)
	testutil.AssertNoError(t, err, "GetBookingDetails")
	testutil.AssertEqual(t, false, details.Reminded24h, "Reminder flags should be reset")
	testutil.AssertEqual(t, int64(1500), details.TotalPrice, "Price should be kept")

	_, err = m.Reschedule(ctx, b.ID, 1, testutil.SlotIDs(slots[3:4]))
	testutil.AssertErrorIs(t, err, apperrors.ErrValidation, "Run length mismatch")
	testutil.AssertEqual(t, testutil.SlotIDs(slots[1:3]), occupiedIDs(t, s), "Failed reschedule changes nothing")

	testutil.AssertEqual(t, events.BookingRescheduled, pub.types()[1], "Reschedule event")
}

func TestReschedule_TargetOccupied(t *testing.T) {
	m, s, _ := setup(t)
	ctx := context.Background()

	first := testutil.MustCreateUser(t, s, 1, "+79990000001")
	second := testutil.MustCreateUser(t, s, 2, "+79990000002")
	slots := testutil.MustCreateSlots(t, s, morning, 2, time.Hour)

	b, err := m.Reserve(ctx, []int64{slots[0].ID}, first.ID, 500)
	testutil.AssertNoError(t, err, "Reserve first")
	_, err = m.Reserve(ctx, []int64{slots[1].ID}, second.ID, 500)
	testutil.AssertNoError(t, err, "Reserve second")

	_, err = m.Reschedule(ctx, b.ID, 1, []int64{slots[1].ID})
	testutil.AssertErrorIs(t, err, apperrors.ErrConflict, "Reschedule into occupied slot")

	slot, err := s.GetSlotByID(ctx, slots[0].ID)
	testutil.AssertNoError(t, err, "GetSlotByID")
	testutil.AssertEqual(t, true, slot.Occupied, "Original slot stays occupied after rollback")
}

func TestConfirmAttendance(t *testing.T) {
	m, s, pub := setup(t)
	ctx := context.Background()

	user := testutil.MustCreateUser(t, s, 1, "+79990000001")
	slots := testutil.MustCreateSlots(t, s, morning, 1, time.Hour)
	b, err := m.Reserve(ctx, testutil.SlotIDs(slots), user.ID, 1000)
	testutil.AssertNoError(t, err, "Reserve")

	_, err = m.ConfirmAttendance(ctx, b.ID, adminChatID)
	testutil.AssertErrorIs(t, err, apperrors.ErrForbidden, "Admin cannot confirm for client")

	d, err := m.ConfirmAttendance(ctx, b.ID, 1)
	testutil.AssertNoError(t, err, "ConfirmAttendance")
	testutil.AssertEqual(t, true, d.Confirmed, "Booking should be confirmed")

	_, err = m.ConfirmAttendance(ctx, b.ID, 1)
	testutil.AssertNoError(t, err, "Repeated ConfirmAttendance")

	testutil.AssertEqual(t, []events.Type{events.BookingCreated, events.BookingConfirmed}, pub.types(), "Confirm event is emitted once")
}
