package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/region23/salonbot/internal/bot/keyboard"
	botservice "github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/internal/session"
	"github.com/region23/salonbot/pkg/logger"
)

// CallbackHandler обрабатывает callback query от inline кнопок
type CallbackHandler struct {
	service  *botservice.Service
	booking  *BookingHandler
	bookings *MyBookingsHandler
}

// NewCallbackHandler создает новый обработчик callback query
func NewCallbackHandler(service *botservice.Service, booking *BookingHandler, bookings *MyBookingsHandler) *CallbackHandler {
	return &CallbackHandler{service: service, booking: booking, bookings: bookings}
}

// Handle направляет нажатие в диалог записи или управления записью
func (h *CallbackHandler) Handle(ctx context.Context, update *models.Update) {
	cb, ok := ParseCallback(update)
	if !ok {
		if update.CallbackQuery != nil {
			h.service.AnswerCallbackQuery(ctx, update.CallbackQuery.ID, "Неверный выбор")
		}
		return
	}

	state, err := h.service.Sessions().Get(ctx, cb.ChatID)
	if err != nil {
		h.service.Logger().Warn("Failed to load session", logger.Int64("chat_id", cb.ChatID), logger.Error(err))
		state = nil
	}

	var answer string
	switch {
	case isManageAction(cb.Action):
		answer = h.bookings.HandleCallback(ctx, cb, state)
	case isRescheduling(state):
		answer = h.bookings.HandleCallback(ctx, cb, state)
	default:
		answer = h.booking.HandleCallback(ctx, cb, state)
	}

	h.service.AnswerCallbackQuery(ctx, cb.ID, answer)
}

func isManageAction(action string) bool {
	switch action {
	case keyboard.ActionCancelBooking, keyboard.ActionReschedule, keyboard.ActionConfirmVisit:
		return true
	}
	return false
}

func isRescheduling(state session.State) bool {
	_, ok := state.(session.Rescheduling)
	return ok
}
