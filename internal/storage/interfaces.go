package storage

import (
	"context"
	"time"

	"github.com/region23/salonbot/internal/storage/models"
)

// UserRepository определяет интерфейс для работы с пользователями
type UserRepository interface {
	SaveUser(ctx context.Context, chatID int64, name string, phone *string) (*models.User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error)
}

// ServiceRepository определяет интерфейс для работы с прайсом
type ServiceRepository interface {
	CreateService(ctx context.Context, svc *models.Service) error
	ListServices(ctx context.Context) ([]*models.Service, error)
	GetServicesByIDs(ctx context.Context, ids []int64) ([]*models.Service, error)
	UpdateServicePrice(ctx context.Context, name string, price int64) error
	UpdateServiceDuration(ctx context.Context, name string, mins int) error
	DeleteService(ctx context.Context, name string) error
	SeedServices(ctx context.Context, defaults []models.Service) error
}

// SlotRepository определяет интерфейс для работы со слотами вне транзакций записи
type SlotRepository interface {
	CreateSlot(ctx context.Context, startAt time.Time) (*models.TimeSlot, error)
	CreateSlots(ctx context.Context, starts []time.Time) (int, error)
	ListSlots(ctx context.Context, from, to time.Time, onlyFree bool) ([]*models.TimeSlot, error)
	GetSlotByID(ctx context.Context, id int64) (*models.TimeSlot, error)
	DeleteSlot(ctx context.Context, id int64) error
	DeleteSlotsBefore(ctx context.Context, cutoff time.Time, step time.Duration, includeBooked bool) (slots int64, bookings int64, err error)
}

// BookingRepository определяет чтение записей и флаги напоминаний
type BookingRepository interface {
	GetBookingDetails(ctx context.Context, id int64) (*models.BookingDetails, error)
	ListUserBookings(ctx context.Context, chatID int64, from time.Time) ([]*models.BookingDetails, error)
	ListBookings(ctx context.Context, from time.Time, limit int) ([]*models.BookingDetails, error)
	ListPendingReminders(ctx context.Context, flag models.ReminderFlag, from, to time.Time) ([]*models.BookingDetails, error)
	MarkReminded(ctx context.Context, bookingID int64, flag models.ReminderFlag) error
	Stats(ctx context.Context, now time.Time) (*models.Stats, error)
}

// SettingsRepository хранит произвольные пары ключ-значение
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Tx описывает операции, доступные внутри эксклюзивной транзакции записи.
// Все методы работают только через транзакцию.
type Tx interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetSlotsByIDs(ctx context.Context, ids []int64) ([]*models.TimeSlot, error)
	OccupySlots(ctx context.Context, ids []int64, ownerID int64) error
	InsertBooking(ctx context.Context, b *models.Booking) error
	GetBookingForUpdate(ctx context.Context, id int64) (*models.BookingDetails, error)
	ListOwnedSlotsFrom(ctx context.Context, ownerID int64, from time.Time) ([]*models.TimeSlot, error)
	BookingFirstSlots(ctx context.Context, slotIDs []int64) (map[int64]int64, error)
	ReleaseSlots(ctx context.Context, ids []int64) error
	DeleteBooking(ctx context.Context, id int64) error
	MoveBooking(ctx context.Context, id, firstSlotID int64) error
	SetConfirmed(ctx context.Context, id int64) error
}

// TxRunner выполняет функцию в эксклюзивной транзакции
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Storage объединяет все репозитории в единый интерфейс
type Storage interface {
	UserRepository
	ServiceRepository
	SlotRepository
	BookingRepository
	SettingsRepository
	TxRunner
	Close() error
	Ping(ctx context.Context) error
}
