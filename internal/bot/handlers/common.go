package handlers

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot/models"

	"github.com/region23/salonbot/internal/bot/keyboard"
	botservice "github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/pkg/logger"
)

const (
	askContactText = "Чтобы записаться, поделитесь номером телефона кнопкой ниже 👇"
	expiredText    = "Сессия устарела, начните запись заново."
)

// Callback нажатие inline кнопки
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	Action    string
	Arg       string
}

// ParseCallback извлекает из обновления данные нажатия
func ParseCallback(update *models.Update) (Callback, bool) {
	cq := update.CallbackQuery
	if cq == nil {
		return Callback{}, false
	}

	cb := Callback{ID: cq.ID, ChatID: cq.From.ID}
	if msg := cq.Message.Message; msg != nil {
		cb.ChatID = msg.Chat.ID
		cb.MessageID = msg.ID
	}
	cb.Action, cb.Arg = keyboard.Parse(cq.Data)
	return cb, cb.ChatID != 0
}

// IntArg разбирает числовой аргумент callback
func (c Callback) IntArg() (int64, bool) {
	id, err := strconv.ParseInt(c.Arg, 10, 64)
	return id, err == nil && id > 0
}

// expire сбрасывает диалог и сообщает, что кнопка устарела
func expire(ctx context.Context, svc *botservice.Service, cb Callback) string {
	if err := svc.Sessions().Clear(ctx, cb.ChatID); err != nil {
		svc.Logger().Warn("Failed to clear session", logger.Int64("chat_id", cb.ChatID), logger.Error(err))
	}
	edit(ctx, svc, cb.ChatID, cb.MessageID, expiredText, nil)
	return expiredText
}

// edit обновляет сообщение и логирует ошибку
func edit(ctx context.Context, svc *botservice.Service, chatID int64, messageID int, text string, markup models.ReplyMarkup) {
	if err := svc.EditMessage(ctx, chatID, messageID, text, markup); err != nil {
		svc.Logger().Warn("Failed to update message",
			logger.Int64("chat_id", chatID),
			logger.Int("message_id", messageID),
			logger.Error(err))
	}
}
