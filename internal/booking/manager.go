package booking

import (
	"context"
	"strings"
	"time"

	"github.com/region23/salonbot/internal/events"
	"github.com/region23/salonbot/internal/storage"
	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
	"github.com/region23/salonbot/pkg/logger"
	"github.com/region23/salonbot/pkg/metrics"
)

// Manager выполняет операции записи, отмены и переноса в эксклюзивных транзакциях
type Manager struct {
	store       storage.TxRunner
	auth        Authorizer
	publisher   events.Publisher
	log         *logger.Logger
	granularity time.Duration
}

// NewManager создает менеджер записей
func NewManager(store storage.TxRunner, auth Authorizer, publisher events.Publisher, granularity time.Duration, log *logger.Logger) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Manager{
		store:       store,
		auth:        auth,
		publisher:   publisher,
		log:         log,
		granularity: granularity,
	}
}

// Reserve занимает серию слотов и создает запись. Если хотя бы один слот
// исчез или занят, ничего не меняется.
func (m *Manager) Reserve(ctx context.Context, slotIDs []int64, userID int64, totalPrice int64) (*models.Booking, error) {
	start := time.Now()

	if err := validateSlotIDs(slotIDs); err != nil {
		m.record("reserve", err, start)
		return nil, err
	}
	if totalPrice < 0 {
		err := apperrors.Validation("стоимость не может быть отрицательной")
		m.record("reserve", err, start)
		return nil, err
	}

	var (
		booking *models.Booking
		user    *models.User
		startAt time.Time
	)

	err := m.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		user, err = tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.CanBook() {
			return apperrors.ErrPhoneRequired
		}

		slots, err := m.loadFreeRun(ctx, tx, slotIDs)
		if err != nil {
			return err
		}

		if err := tx.OccupySlots(ctx, slotIDs, user.ID); err != nil {
			return err
		}

		booking = &models.Booking{
			UserID:      user.ID,
			FirstSlotID: slots[0].ID,
			TotalPrice:  totalPrice,
		}
		startAt = slots[0].StartAt
		return tx.InsertBooking(ctx, booking)
	})

	m.record("reserve", err, start)
	if err != nil {
		m.log.Info("Reservation rejected",
			logger.Int64("user_id", userID),
			logger.String("kind", apperrors.KindOf(err)),
			logger.Error(err))
		return nil, err
	}

	m.log.Info("Booking created",
		logger.Int64("booking_id", booking.ID),
		logger.Int64("user_id", userID),
		logger.Int("slots", len(slotIDs)),
		logger.Time("start_at", startAt))

	events.Emit(ctx, m.publisher, m.log,
		events.New(events.BookingCreated, booking.ID, user.ChatID, startAt, totalPrice))

	return booking, nil
}

// Release отменяет запись и освобождает все ее слоты
func (m *Manager) Release(ctx context.Context, bookingID, requesterChatID int64) error {
	start := time.Now()
	var details *models.BookingDetails

	err := m.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		details, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeManage(m.auth, requesterChatID, details.UserChatID); err != nil {
			return err
		}

		run, err := m.collectRun(ctx, tx, details)
		if err != nil {
			return err
		}

		if err := tx.ReleaseSlots(ctx, run); err != nil {
			return err
		}
		return tx.DeleteBooking(ctx, details.ID)
	})

	m.record("release", err, start)
	if err != nil {
		return err
	}

	m.log.Info("Booking cancelled",
		logger.Int64("booking_id", bookingID),
		logger.Int64("requested_by", requesterChatID))

	events.Emit(ctx, m.publisher, m.log,
		events.New(events.BookingCancelled, details.ID, details.UserChatID, details.StartAt, details.TotalPrice))

	return nil
}

// Reschedule переносит запись на новую серию слотов в одной транзакции.
// Новая серия должна быть той же длины; флаги напоминаний и подтверждения сбрасываются.
func (m *Manager) Reschedule(ctx context.Context, bookingID, requesterChatID int64, newSlotIDs []int64) (*models.BookingDetails, error) {
	start := time.Now()

	if err := validateSlotIDs(newSlotIDs); err != nil {
		m.record("reschedule", err, start)
		return nil, err
	}

	var details *models.BookingDetails
	err := m.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		details, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeManage(m.auth, requesterChatID, details.UserChatID); err != nil {
			return err
		}

		run, err := m.collectRun(ctx, tx, details)
		if err != nil {
			return err
		}
		if len(run) != len(newSlotIDs) {
			return apperrors.Validation("новое время должно занимать %d слот(ов)", len(run))
		}

		if err := tx.ReleaseSlots(ctx, run); err != nil {
			return err
		}

		slots, err := m.loadFreeRun(ctx, tx, newSlotIDs)
		if err != nil {
			return err
		}
		if err := tx.OccupySlots(ctx, newSlotIDs, details.UserID); err != nil {
			return err
		}
		if err := tx.MoveBooking(ctx, details.ID, slots[0].ID); err != nil {
			return err
		}

		details.FirstSlotID = slots[0].ID
		details.StartAt = slots[0].StartAt
		details.Reminded24h, details.Reminded12h, details.Reminded1h = false, false, false
		details.Confirmed = false
		return nil
	})

	m.record("reschedule", err, start)
	if err != nil {
		return nil, err
	}

	m.log.Info("Booking rescheduled",
		logger.Int64("booking_id", bookingID),
		logger.Time("start_at", details.StartAt))

	events.Emit(ctx, m.publisher, m.log,
		events.New(events.BookingRescheduled, details.ID, details.UserChatID, details.StartAt, details.TotalPrice))

	return details, nil
}

// ConfirmAttendance отмечает, что клиент подтвердил визит. Повторный вызов ничего не меняет.
func (m *Manager) ConfirmAttendance(ctx context.Context, bookingID, requesterChatID int64) (*models.BookingDetails, error) {
	start := time.Now()
	var details *models.BookingDetails
	alreadyConfirmed := false

	err := m.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		details, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(requesterChatID, details.UserChatID); err != nil {
			return err
		}
		if details.Confirmed {
			alreadyConfirmed = true
			return nil
		}
		if err := tx.SetConfirmed(ctx, details.ID); err != nil {
			return err
		}
		details.Confirmed = true
		return nil
	})

	m.record("confirm", err, start)
	if err != nil {
		return nil, err
	}

	if !alreadyConfirmed {
		events.Emit(ctx, m.publisher, m.log,
			events.New(events.BookingConfirmed, details.ID, details.UserChatID, details.StartAt, details.TotalPrice))
	}

	return details, nil
}

// RunSlots возвращает слоты, занятые записью
func (m *Manager) RunSlots(ctx context.Context, bookingID int64) ([]int64, error) {
	var run []int64
	err := m.store.InTx(ctx, func(tx storage.Tx) error {
		details, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		run, err = m.collectRun(ctx, tx, details)
		return err
	})
	return run, err
}

// Granularity возвращает шаг расписания
func (m *Manager) Granularity() time.Duration {
	return m.granularity
}

// loadFreeRun перечитывает слоты внутри транзакции и проверяет, что они
// существуют, свободны и идут подряд
func (m *Manager) loadFreeRun(ctx context.Context, tx storage.Tx, slotIDs []int64) ([]*models.TimeSlot, error) {
	slots, err := tx.GetSlotsByIDs(ctx, slotIDs)
	if err != nil {
		return nil, err
	}
	if len(slots) != len(slotIDs) {
		return nil, apperrors.ErrSlotsGone
	}

	for i, slot := range slots {
		if slot.Occupied {
			return nil, apperrors.ErrSlotOccupied
		}
		if i > 0 && !slot.StartAt.Equal(slots[i-1].StartAt.Add(m.granularity)) {
			return nil, apperrors.Validation("слоты должны идти подряд")
		}
	}

	return slots, nil
}

// collectRun восстанавливает серию записи: слоты владельца начиная с первого,
// каждый ровно на шаг позже предыдущего. Серия обрывается на первом слоте
// другой записи того же клиента.
func (m *Manager) collectRun(ctx context.Context, tx storage.Tx, details *models.BookingDetails) ([]int64, error) {
	owned, err := tx.ListOwnedSlotsFrom(ctx, details.UserID, details.StartAt)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(owned))
	for i, slot := range owned {
		ids[i] = slot.ID
	}
	heads, err := tx.BookingFirstSlots(ctx, ids)
	if err != nil {
		return nil, err
	}

	run := models.BookingRun(owned, heads, details.ID, details.StartAt, m.granularity)
	if len(run) == 0 || run[0] != details.FirstSlotID {
		return nil, apperrors.ErrInternal.WithMessage("первый слот записи не принадлежит клиенту")
	}

	return run, nil
}

func (m *Manager) record(op string, err error, start time.Time) {
	result := "ok"
	if err != nil {
		result = strings.ToLower(apperrors.KindOf(err))
	}
	metrics.RecordBookingOperation(op, result, time.Since(start).Seconds())
}

func validateSlotIDs(ids []int64) error {
	if len(ids) == 0 {
		return apperrors.Validation("не выбрано время")
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return apperrors.Validation("слот %d выбран дважды", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
