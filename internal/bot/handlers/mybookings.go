package handlers

import (
	"context"
	"errors"

	"github.com/region23/salonbot/internal/bot/keyboard"
	botservice "github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/internal/session"
	apperrors "github.com/region23/salonbot/pkg/errors"
	"github.com/region23/salonbot/pkg/logger"
)

// MyBookingsHandler показывает записи клиента и выполняет отмену, перенос и подтверждение
type MyBookingsHandler struct {
	service *botservice.Service
}

// NewMyBookingsHandler создает обработчик записей клиента
func NewMyBookingsHandler(service *botservice.Service) *MyBookingsHandler {
	return &MyBookingsHandler{service: service}
}

// List отправляет каждую предстоящую запись отдельным сообщением с кнопками
func (h *MyBookingsHandler) List(ctx context.Context, chatID int64) {
	bookings, err := h.service.UserBookings(ctx, chatID)
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}
	if len(bookings) == 0 {
		h.service.SendText(ctx, chatID, "У вас нет предстоящих записей.")
		return
	}

	for _, b := range bookings {
		text := botservice.FormatBooking(b, h.service.Location())
		if err := h.service.SendMessage(ctx, chatID, text, keyboard.CreateBookingKeyboard(b)); err != nil {
			h.service.Logger().Warn("Failed to send booking", logger.Int64("booking_id", b.ID), logger.Error(err))
		}
	}
}

// HandleCallback обрабатывает кнопки управления записью и шаги переноса
func (h *MyBookingsHandler) HandleCallback(ctx context.Context, cb Callback, state session.State) string {
	loc := h.service.Location()

	switch cb.Action {
	case keyboard.ActionCancelBooking:
		id, ok := cb.IntArg()
		if !ok {
			return "Неизвестная запись"
		}
		details, err := h.service.Cancel(ctx, id, cb.ChatID)
		if err != nil {
			return h.service.Failure(cb.ChatID, err)
		}
		if r, ok := state.(session.Rescheduling); ok && r.BookingID == id {
			h.clear(ctx, cb.ChatID)
		}
		edit(ctx, h.service, cb.ChatID, cb.MessageID, "❌ Запись на "+botservice.FormatWhen(details.StartAt, loc)+" отменена.", nil)
		return "Запись отменена"

	case keyboard.ActionConfirmVisit:
		id, ok := cb.IntArg()
		if !ok {
			return "Неизвестная запись"
		}
		details, err := h.service.ConfirmAttendance(ctx, id, cb.ChatID)
		if err != nil {
			return h.service.Failure(cb.ChatID, err)
		}
		edit(ctx, h.service, cb.ChatID, cb.MessageID,
			"👍 Спасибо! Ждем вас "+botservice.FormatWhen(details.StartAt, loc)+".", nil)
		return "Визит подтвержден"

	case keyboard.ActionReschedule:
		id, ok := cb.IntArg()
		if !ok {
			return "Неизвестная запись"
		}
		r, err := h.service.StartReschedule(ctx, id, cb.ChatID)
		if err != nil {
			return h.service.Failure(cb.ChatID, err)
		}
		if !h.put(ctx, cb.ChatID, r) {
			return ""
		}
		// Сообщение с напоминанием остается, выбор дня приходит отдельным сообщением
		h.showDates(ctx, cb.ChatID, 0, r)
		return ""
	}

	r, ok := state.(session.Rescheduling)
	if !ok {
		return expire(ctx, h.service, cb)
	}

	switch cb.Action {
	case keyboard.ActionDate:
		r = r.PickDate(cb.Arg)
		if !h.put(ctx, cb.ChatID, r) {
			return ""
		}
		h.showRuns(ctx, cb.ChatID, cb.MessageID, r, "")
		return ""

	case keyboard.ActionRun:
		id, valid := cb.IntArg()
		if !valid || r.Date == "" {
			return expire(ctx, h.service, cb)
		}
		details, err := h.service.Reschedule(ctx, cb.ChatID, r, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrNotFound) {
				h.showRuns(ctx, cb.ChatID, cb.MessageID, r, "😔 Это время уже заняли.\n\n")
				return "Время уже занято"
			}
			return h.service.Failure(cb.ChatID, err)
		}
		h.clear(ctx, cb.ChatID)
		edit(ctx, h.service, cb.ChatID, cb.MessageID,
			"🔄 Запись перенесена.\n\n"+botservice.FormatBooking(details, loc), nil)
		return "Запись перенесена"

	case keyboard.ActionBack:
		if r.Date == "" {
			return h.abort(ctx, cb)
		}
		r.Date = ""
		if h.put(ctx, cb.ChatID, r) {
			h.showDates(ctx, cb.ChatID, cb.MessageID, r)
		}
		return ""

	case keyboard.ActionAbort:
		return h.abort(ctx, cb)
	}

	return expire(ctx, h.service, cb)
}

func (h *MyBookingsHandler) abort(ctx context.Context, cb Callback) string {
	h.clear(ctx, cb.ChatID)
	edit(ctx, h.service, cb.ChatID, cb.MessageID, "Перенос отменен, запись осталась без изменений.", nil)
	return ""
}

func (h *MyBookingsHandler) showDates(ctx context.Context, chatID int64, messageID int, r session.Rescheduling) {
	dates, err := h.service.AvailableDates(ctx, h.service.RescheduleDuration(r))
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}

	text := "🔄 Перенос записи\n\n📅 Выберите новый день:"
	if len(dates) == 0 {
		text = "😔 В ближайшие дни нет свободного времени такой длины."
	}
	edit(ctx, h.service, chatID, messageID, text, keyboard.CreateDateSelectionKeyboard(dates))
}

func (h *MyBookingsHandler) showRuns(ctx context.Context, chatID int64, messageID int, r session.Rescheduling, prefix string) {
	runs, err := h.service.RunsFor(ctx, r.Date, h.service.RescheduleDuration(r))
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}

	text := prefix + "🕐 Выберите новое время:"
	if len(runs) == 0 {
		text = prefix + "На этот день свободного времени не осталось, выберите другой день."
	}
	edit(ctx, h.service, chatID, messageID, text,
		keyboard.CreateRunSelectionKeyboard(runs, h.service.Granularity(), h.service.Location()))
}

func (h *MyBookingsHandler) put(ctx context.Context, chatID int64, state session.State) bool {
	if err := h.service.Sessions().Put(ctx, chatID, state); err != nil {
		h.service.SendError(ctx, chatID, apperrors.ErrInternal.WithError(err))
		return false
	}
	return true
}

func (h *MyBookingsHandler) clear(ctx context.Context, chatID int64) {
	if err := h.service.Sessions().Clear(ctx, chatID); err != nil {
		h.service.Logger().Warn("Failed to clear session", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}
