package models

import "time"

// User представляет клиента бота
type User struct {
	ID        int64     `json:"id" db:"id"`
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	Name      string    `json:"name" db:"name"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CanBook проверяет, может ли пользователь записываться
func (u *User) CanBook() bool {
	return u.Phone != nil && *u.Phone != ""
}

// Service представляет услугу из прайса
type Service struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Price        int64  `json:"price" db:"price"` // в минимальных единицах валюты
	DurationMins int    `json:"duration_mins" db:"duration_minutes"`
}

// TimeSlot представляет один слот расписания фиксированной длины
type TimeSlot struct {
	ID       int64     `json:"id" db:"id"`
	StartAt  time.Time `json:"start_at" db:"start_at"`
	Occupied bool      `json:"occupied" db:"occupied"`
	OwnerID  *int64    `json:"owner_id,omitempty" db:"owner_id"`
}

// IsAvailable проверяет, свободен ли слот
func (s *TimeSlot) IsAvailable() bool {
	return !s.Occupied
}

// Booking представляет запись клиента. Серия слотов начинается с FirstSlotID.
type Booking struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	FirstSlotID int64     `json:"first_slot_id" db:"first_slot_id"`
	TotalPrice  int64     `json:"total_price" db:"total_price"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Reminded24h bool      `json:"reminded_24h" db:"reminded_24h"`
	Reminded12h bool      `json:"reminded_12h" db:"reminded_12h"`
	Reminded1h  bool      `json:"reminded_1h" db:"reminded_1h"`
	Confirmed   bool      `json:"confirmed" db:"confirmed"`
}

// ReminderFlag называет один из флагов отправленного напоминания
type ReminderFlag string

const (
	Reminded24h ReminderFlag = "reminded_24h"
	Reminded12h ReminderFlag = "reminded_12h"
	Reminded1h  ReminderFlag = "reminded_1h"
)

// Valid проверяет, что флаг входит в известный набор
func (f ReminderFlag) Valid() bool {
	switch f {
	case Reminded24h, Reminded12h, Reminded1h:
		return true
	}
	return false
}

// Sent возвращает значение флага в записи
func (b *Booking) Sent(f ReminderFlag) bool {
	switch f {
	case Reminded24h:
		return b.Reminded24h
	case Reminded12h:
		return b.Reminded12h
	case Reminded1h:
		return b.Reminded1h
	}
	return false
}

// BookingDetails объединяет запись с владельцем и временем начала
type BookingDetails struct {
	Booking
	UserChatID int64     `json:"user_chat_id"`
	UserName   string    `json:"user_name"`
	UserPhone  string    `json:"user_phone,omitempty"`
	StartAt    time.Time `json:"start_at"`
}

// BookingRun восстанавливает серию слотов записи bookingID по слотам владельца
// owned, отсортированным по времени и начинающимся не раньше start. Серия идет
// с шагом step и обрывается на пропуске или на первом слоте другой записи
// (heads сопоставляет первые слоты с ID записей).
func BookingRun(owned []*TimeSlot, heads map[int64]int64, bookingID int64, start time.Time, step time.Duration) []int64 {
	var run []int64
	for k, slot := range owned {
		if !slot.StartAt.Equal(start.Add(time.Duration(k) * step)) {
			break
		}
		if other, ok := heads[slot.ID]; ok && other != bookingID {
			break
		}
		run = append(run, slot.ID)
	}
	return run
}

// RunCandidate описывает непрерывную серию свободных слотов
type RunCandidate struct {
	StartSlotID int64     `json:"start_slot_id"`
	StartAt     time.Time `json:"start_at"`
	SlotIDs     []int64   `json:"slot_ids"`
}

// Stats содержит сводные показатели для администратора
type Stats struct {
	TotalBookings    int64 `json:"total_bookings"`
	UpcomingBookings int64 `json:"upcoming_bookings"`
	Bookings30d      int64 `json:"bookings_30d"`
	Clients          int64 `json:"clients"`
	FreeSlots        int64 `json:"free_slots"`
	Revenue          int64 `json:"revenue"`
	Revenue30d       int64 `json:"revenue_30d"`

	// Weekdays индексируется time.Weekday в часовом поясе салона
	Weekdays   [7]WeekdayStat `json:"weekdays"`
	TopClients []ClientStat   `json:"top_clients"`
}

// WeekdayStat записи и выручка за один день недели
type WeekdayStat struct {
	Bookings int64 `json:"bookings"`
	Revenue  int64 `json:"revenue"`
}

// ClientStat визиты и траты одного клиента
type ClientStat struct {
	Name   string `json:"name"`
	Visits int64  `json:"visits"`
	Spent  int64  `json:"spent"`
}

// DefaultServices прайс, которым заполняется пустая база при первом запуске
func DefaultServices() []Service {
	return []Service{
		{Name: "Покрытие", Price: 1000, DurationMins: 60},
		{Name: "Дизайн", Price: 500, DurationMins: 30},
		{Name: "Снятие", Price: 300, DurationMins: 30},
	}
}
