package handlers

import (
	"context"
	"strings"

	"github.com/region23/salonbot/internal/bot/keyboard"
	botservice "github.com/region23/salonbot/internal/bot/service"
)

// DefaultHandler обрабатывает кнопки меню и неопознанные сообщения
type DefaultHandler struct {
	service  *botservice.Service
	start    *StartHandler
	booking  *BookingHandler
	bookings *MyBookingsHandler
}

// NewDefaultHandler создает новый обработчик по умолчанию
func NewDefaultHandler(service *botservice.Service, start *StartHandler, booking *BookingHandler, bookings *MyBookingsHandler) *DefaultHandler {
	return &DefaultHandler{service: service, start: start, booking: booking, bookings: bookings}
}

// Handle сопоставляет текст с кнопкой меню, иначе подсказывает /start
func (h *DefaultHandler) Handle(ctx context.Context, chatID int64, text string) {
	switch strings.TrimSpace(text) {
	case keyboard.MenuBook:
		h.booking.Start(ctx, chatID)
	case keyboard.MenuBookings:
		h.bookings.List(ctx, chatID)
	case keyboard.MenuServices:
		h.start.HandleServices(ctx, chatID)
	default:
		h.service.SendText(ctx, chatID, "Пожалуйста, нажмите /start, чтобы начать.")
	}
}
