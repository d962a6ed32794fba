package service

import (
	"context"

	"github.com/go-telegram/bot"

	"github.com/region23/salonbot/internal/bot/keyboard"
	"github.com/region23/salonbot/internal/reminder"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

var _ reminder.Sender = (*Notifier)(nil)

// Notifier доставляет напоминания через Telegram
type Notifier struct {
	bot *bot.Bot
}

// NewNotifier создает Notifier
func NewNotifier(b *bot.Bot) *Notifier {
	return &Notifier{bot: b}
}

// Send отправляет напоминание с кнопками действий
func (n *Notifier) Send(ctx context.Context, chatID int64, r reminder.Reminder) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   r.Text,
	}
	if markup := keyboard.CreateReminderKeyboard(r); markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := n.bot.SendMessage(ctx, params); err != nil {
		return apperrors.ErrDelivery.WithError(err).WithContext(map[string]interface{}{
			"chat_id":    chatID,
			"booking_id": r.BookingID,
			"stage":      r.Stage.Name,
		})
	}
	return nil
}
