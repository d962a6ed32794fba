package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/region23/salonbot/internal/bot/keyboard"
	botservice "github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/pkg/logger"
)

// ContactHandler обрабатывает получение контактной информации от пользователя
type ContactHandler struct {
	service *botservice.Service
	booking *BookingHandler
}

// NewContactHandler создает новый обработчик контактов
func NewContactHandler(service *botservice.Service, booking *BookingHandler) *ContactHandler {
	return &ContactHandler{service: service, booking: booking}
}

// Handle сохраняет телефон и сразу переходит к записи
func (h *ContactHandler) Handle(ctx context.Context, chatID int64, contact *models.Contact) {
	if contact == nil {
		return
	}

	// Контакт другого человека не принимаем
	if contact.UserID != 0 && contact.UserID != chatID {
		h.service.SendText(ctx, chatID, "Пожалуйста, отправьте свой номер кнопкой ниже.")
		return
	}

	name := strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	if _, err := h.service.RegisterContact(ctx, chatID, name, contact.PhoneNumber); err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}

	if err := h.service.SendMessage(ctx, chatID, "📱 Телефон сохранен. Давайте запишемся!", keyboard.CreateMainMenu()); err != nil {
		h.service.Logger().Warn("Failed to send confirmation message", logger.Int64("chat_id", chatID), logger.Error(err))
	}

	h.booking.Start(ctx, chatID)
}
