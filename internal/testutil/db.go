package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/region23/salonbot/internal/storage/models"
	"github.com/region23/salonbot/internal/storage/sqlite"
)

// SetupTestDB создает in-memory базу с примененными миграциями
func SetupTestDB(t *testing.T, opts ...sqlite.Option) *sqlite.SQLiteStorage {
	t.Helper()
	s, err := sqlite.New(":memory:", opts...)
	if err != nil {
		t.Fatalf("Failed to create test storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// MustCreateUser регистрирует клиента; с пустым phone пользователь не сможет записаться
func MustCreateUser(t *testing.T, s *sqlite.SQLiteStorage, chatID int64, phone string) *models.User {
	t.Helper()
	var p *string
	if phone != "" {
		p = &phone
	}
	u, err := s.SaveUser(context.Background(), chatID, "Клиент", p)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

// MustCreateSlots создает n слотов подряд с шагом step
func MustCreateSlots(t *testing.T, s *sqlite.SQLiteStorage, start time.Time, n int, step time.Duration) []*models.TimeSlot {
	t.Helper()
	slots := make([]*models.TimeSlot, 0, n)
	for i := 0; i < n; i++ {
		slot, err := s.CreateSlot(context.Background(), start.Add(time.Duration(i)*step))
		if err != nil {
			t.Fatalf("Failed to create slot: %v", err)
		}
		slots = append(slots, slot)
	}
	return slots
}

// SlotIDs собирает ID слотов
func SlotIDs(slots []*models.TimeSlot) []int64 {
	ids := make([]int64, len(slots))
	for i, slot := range slots {
		ids[i] = slot.ID
	}
	return ids
}
