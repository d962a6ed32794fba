// Package events публикует доменные события о записях во внешнюю очередь.
// Публикация выполняется после коммита и не влияет на результат операции.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/region23/salonbot/pkg/logger"
	"github.com/region23/salonbot/pkg/metrics"
)

// Type определяет вид события и имя очереди
type Type string

const (
	BookingCreated     Type = "booking.created"
	BookingCancelled   Type = "booking.cancelled"
	BookingRescheduled Type = "booking.rescheduled"
	BookingConfirmed   Type = "booking.confirmed"
)

// Event описывает изменение записи
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	BookingID  int64     `json:"booking_id"`
	UserChatID int64     `json:"user_chat_id"`
	StartAt    time.Time `json:"start_at"`
	TotalPrice int64     `json:"total_price"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New создает событие с уникальным ID
func New(t Type, bookingID, userChatID int64, startAt time.Time, totalPrice int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		BookingID:  bookingID,
		UserChatID: userChatID,
		StartAt:    startAt.UTC(),
		TotalPrice: totalPrice,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher отправляет события
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher ничего не отправляет; используется, когда брокер не настроен
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// publishTimeout ограничивает ожидание брокера
const publishTimeout = 3 * time.Second

// Emit публикует событие, логирует и считает ошибки, но не возвращает их
func Emit(ctx context.Context, p Publisher, log *logger.Logger, e Event) {
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.Publish(ctx, e); err != nil {
		metrics.RecordEvent(string(e.Type), "error")
		log.Warn("Failed to publish event",
			logger.String("event_id", e.ID),
			logger.String("type", string(e.Type)),
			logger.Int64("booking_id", e.BookingID),
			logger.Error(err))
		return
	}
	metrics.RecordEvent(string(e.Type), "ok")
}
