package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/region23/salonbot/internal/storage/models"
	"github.com/region23/salonbot/internal/testutil"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

func TestBookingFlowTransitions(t *testing.T) {
	s := Start().Toggle(3).Toggle(1).Toggle(2).Toggle(3)
	testutil.AssertEqual(t, []int64{1, 2}, s.Selected, "Toggle keeps a sorted set")
	testutil.AssertEqual(t, true, s.Has(2), "Service 2 selected")

	date, err := s.Proceed(90, 1500)
	testutil.AssertNoError(t, err, "Proceed")
	testutil.AssertEqual(t, 90, date.DurationMins, "Duration carried")

	slot := date.PickDate("2030-05-01")
	run := models.RunCandidate{StartSlotID: 10, SlotIDs: []int64{10, 11}}
	confirming, err := slot.PickRun(run)
	testutil.AssertNoError(t, err, "PickRun")
	testutil.AssertEqual(t, "2030-05-01", confirming.Date, "Date carried")
	testutil.AssertEqual(t, run.SlotIDs, confirming.Run.SlotIDs, "Run carried")

	back := confirming.Back()
	testutil.AssertEqual(t, KindChoosingSlot, back.Kind(), "Back to slots")
	testutil.AssertEqual(t, KindChoosingDate, back.Back().Kind(), "Back to dates")
}

func TestProceed_EmptySelection(t *testing.T) {
	_, err := Start().Proceed(60, 1000)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}

	_, err = ChoosingSlot{}.PickRun(models.RunCandidate{})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error for empty run, got %v", err)
	}
}

func TestDecode_RestoresVariant(t *testing.T) {
	states := []State{
		Start().Toggle(1),
		Rescheduling{BookingID: 5, Slots: 2}.PickDate("2030-05-02"),
		Confirming{Order: Order{Services: []int64{1}, DurationMins: 60, TotalPrice: 1000}, Date: "2030-05-01",
			Run: models.RunCandidate{StartSlotID: 7, SlotIDs: []int64{7}}},
	}

	for _, state := range states {
		data, err := Encode(state)
		testutil.AssertNoError(t, err, "Encode")
		got, err := Decode(data)
		testutil.AssertNoError(t, err, "Decode")
		testutil.AssertEqual(t, state, got, string(state.Kind()))
	}

	if _, err := Decode([]byte(`{"kind":"unknown","state":{}}`)); err == nil {
		t.Error("Expected unknown kind to fail")
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)
	store.now = func() time.Time { return now }

	testutil.AssertNoError(t, store.Put(ctx, 1, Start().Toggle(1)), "Put")

	state, err := store.Get(ctx, 1)
	testutil.AssertNoError(t, err, "Get")
	if _, ok := state.(ChoosingServices); !ok {
		t.Fatalf("Expected ChoosingServices, got %T", state)
	}

	now = now.Add(time.Minute)
	state, err = store.Get(ctx, 1)
	testutil.AssertNoError(t, err, "Get after TTL")
	if state != nil {
		t.Errorf("Expected expired state to be dropped, got %v", state)
	}

	testutil.AssertNoError(t, store.Put(ctx, 2, Rescheduling{BookingID: 1}), "Put")
	testutil.AssertNoError(t, store.Clear(ctx, 2), "Clear")
	state, _ = store.Get(ctx, 2)
	if state != nil {
		t.Errorf("Expected cleared state, got %v", state)
	}
}

func TestMemoryStore_CleanupDropsAbandoned(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)
	store.now = func() time.Time { return now }

	testutil.AssertNoError(t, store.Put(ctx, 1, Start()), "Put")
	testutil.AssertNoError(t, store.Put(ctx, 2, Start()), "Put")
	now = now.Add(30 * time.Second)
	testutil.AssertNoError(t, store.Put(ctx, 3, Start()), "Put")

	now = now.Add(30 * time.Second)
	testutil.AssertEqual(t, 2, store.cleanup(), "Expired states removed")
	testutil.AssertEqual(t, 1, store.Len(), "Fresh state kept")

	state, err := store.Get(ctx, 3)
	testutil.AssertNoError(t, err, "Get")
	if state == nil {
		t.Error("Expected fresh state to survive cleanup")
	}
}

func TestMemoryStore_BackgroundCleanup(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	t.Cleanup(store.Close)

	testutil.AssertNoError(t, store.Put(context.Background(), 1, Start()), "Put")

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("Abandoned state was not removed in background")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRedisKey(t *testing.T) {
	testutil.AssertEqual(t, "salonbot:session:42", key(42), "Key format")
}
