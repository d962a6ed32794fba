package handlers

import (
	"context"

	"github.com/region23/salonbot/internal/bot/keyboard"
	botservice "github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/pkg/logger"
)

const clientHelpText = "Я помогу записаться на маникюр.\n\n" +
	keyboard.MenuBook + " · выбрать услуги и время\n" +
	keyboard.MenuBookings + " · посмотреть, перенести или отменить запись\n" +
	keyboard.MenuServices + " · прайс\n\n" +
	"Напоминания о визите придут за сутки, за 12 часов и за час."

// StartHandler обрабатывает команды /start и /help
type StartHandler struct {
	service *botservice.Service
}

// NewStartHandler создает новый обработчик команды /start
func NewStartHandler(service *botservice.Service) *StartHandler {
	return &StartHandler{service: service}
}

// Handle приветствует клиента. Без телефона просит поделиться контактом.
func (h *StartHandler) Handle(ctx context.Context, chatID int64) {
	user, err := h.service.GetUser(ctx, chatID)
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}

	if user == nil || !user.CanBook() {
		text := "👋 Здравствуйте!\n\n" + askContactText
		if err := h.service.SendMessage(ctx, chatID, text, keyboard.CreateContactKeyboard()); err != nil {
			h.service.Logger().Warn("Failed to send contact request", logger.Int64("chat_id", chatID), logger.Error(err))
		}
		return
	}

	greeting := "👋 С возвращением"
	if user.Name != "" {
		greeting += ", " + user.Name
	}
	h.sendMenu(ctx, chatID, greeting+"!\n\n"+clientHelpText)
}

// HandleHelp показывает справку, администратору вместе с его командами
func (h *StartHandler) HandleHelp(ctx context.Context, chatID int64) {
	text := clientHelpText
	if h.service.IsAdmin(chatID) {
		text += "\n\n" + HelpText()
	}
	h.sendMenu(ctx, chatID, text)
}

// HandleServices отправляет прайс
func (h *StartHandler) HandleServices(ctx context.Context, chatID int64) {
	services, err := h.service.ListServices(ctx)
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}
	h.service.SendText(ctx, chatID, botservice.FormatServices(services))
}

func (h *StartHandler) sendMenu(ctx context.Context, chatID int64, text string) {
	if err := h.service.SendMessage(ctx, chatID, text, keyboard.CreateMainMenu()); err != nil {
		h.service.Logger().Warn("Failed to send menu", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}
