package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/region23/salonbot/internal/bot/keyboard"
	botservice "github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/internal/session"
	apperrors "github.com/region23/salonbot/pkg/errors"
	"github.com/region23/salonbot/pkg/logger"
)

// BookingHandler ведет клиента по шагам записи: услуги, день, время, подтверждение
type BookingHandler struct {
	service *botservice.Service
}

// NewBookingHandler создает обработчик записи
func NewBookingHandler(service *botservice.Service) *BookingHandler {
	return &BookingHandler{service: service}
}

// Start начинает новую запись. Без телефона сначала просит контакт.
func (h *BookingHandler) Start(ctx context.Context, chatID int64) {
	user, err := h.service.GetUser(ctx, chatID)
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}
	if user == nil || !user.CanBook() {
		if err := h.service.SendMessage(ctx, chatID, askContactText, keyboard.CreateContactKeyboard()); err != nil {
			h.service.Logger().Warn("Failed to send contact request", logger.Int64("chat_id", chatID), logger.Error(err))
		}
		return
	}

	state := session.Start()
	if !h.put(ctx, chatID, state) {
		return
	}
	h.showServices(ctx, chatID, 0, state)
}

// HandleCallback обрабатывает кнопки записи и возвращает текст ответа на нажатие
func (h *BookingHandler) HandleCallback(ctx context.Context, cb Callback, state session.State) string {
	switch cb.Action {
	case keyboard.ActionAbort:
		h.clear(ctx, cb.ChatID)
		edit(ctx, h.service, cb.ChatID, cb.MessageID, "Запись отменена. Чтобы начать заново, нажмите «"+keyboard.MenuBook+"».", nil)
		return ""

	case keyboard.ActionService:
		s, ok := state.(session.ChoosingServices)
		id, valid := cb.IntArg()
		if !ok || !valid {
			return expire(ctx, h.service, cb)
		}
		s = s.Toggle(id)
		if !h.put(ctx, cb.ChatID, s) {
			return ""
		}
		h.showServices(ctx, cb.ChatID, cb.MessageID, s)
		return ""

	case keyboard.ActionServicesDone:
		s, ok := state.(session.ChoosingServices)
		if !ok {
			return expire(ctx, h.service, cb)
		}
		if len(s.Selected) == 0 {
			return "Выберите хотя бы одну услугу"
		}
		quote, err := h.service.QuoteFor(ctx, s.Selected)
		if err != nil {
			return h.service.Failure(cb.ChatID, err)
		}
		next, err := s.Proceed(quote.DurationMins, quote.TotalPrice)
		if err != nil {
			return h.service.Failure(cb.ChatID, err)
		}
		if !h.put(ctx, cb.ChatID, next) {
			return ""
		}
		h.showDates(ctx, cb.ChatID, cb.MessageID, next.Order)
		return ""

	case keyboard.ActionDate:
		var next session.ChoosingSlot
		switch s := state.(type) {
		case session.ChoosingDate:
			next = s.PickDate(cb.Arg)
		case session.ChoosingSlot:
			next = s.Back().PickDate(cb.Arg)
		default:
			return expire(ctx, h.service, cb)
		}
		if !h.put(ctx, cb.ChatID, next) {
			return ""
		}
		h.showRuns(ctx, cb.ChatID, cb.MessageID, next, "")
		return ""

	case keyboard.ActionRun:
		s, ok := state.(session.ChoosingSlot)
		id, valid := cb.IntArg()
		if !ok || !valid {
			return expire(ctx, h.service, cb)
		}
		run, err := h.service.FindRun(ctx, s.Date, s.DurationMins, id)
		if err != nil {
			h.showRuns(ctx, cb.ChatID, cb.MessageID, s, "")
			return h.service.Failure(cb.ChatID, err)
		}
		next, err := s.PickRun(run)
		if err != nil {
			return h.service.Failure(cb.ChatID, err)
		}
		if !h.put(ctx, cb.ChatID, next) {
			return ""
		}
		h.showConfirm(ctx, cb.ChatID, cb.MessageID, next)
		return ""

	case keyboard.ActionConfirm:
		s, ok := state.(session.Confirming)
		if !ok {
			return expire(ctx, h.service, cb)
		}
		details, err := h.service.Book(ctx, cb.ChatID, s)
		if err != nil {
			if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrNotFound) {
				back := s.Back()
				if h.put(ctx, cb.ChatID, back) {
					h.showRuns(ctx, cb.ChatID, cb.MessageID, back, "😔 Это время только что заняли.\n\n")
				}
				return "Время уже занято"
			}
			return h.service.Failure(cb.ChatID, err)
		}
		h.clear(ctx, cb.ChatID)
		edit(ctx, h.service, cb.ChatID, cb.MessageID,
			"✅ Вы записаны!\n\n"+botservice.FormatBooking(details, h.service.Location())+
				"\n\nМы напомним о визите за сутки, за 12 часов и за час.", nil)
		return "Готово"

	case keyboard.ActionBack:
		switch s := state.(type) {
		case session.Confirming:
			back := s.Back()
			if h.put(ctx, cb.ChatID, back) {
				h.showRuns(ctx, cb.ChatID, cb.MessageID, back, "")
			}
		case session.ChoosingSlot:
			back := s.Back()
			if h.put(ctx, cb.ChatID, back) {
				h.showDates(ctx, cb.ChatID, cb.MessageID, back.Order)
			}
		case session.ChoosingDate:
			back := session.ChoosingServices{Selected: s.Services}
			if h.put(ctx, cb.ChatID, back) {
				h.showServices(ctx, cb.ChatID, cb.MessageID, back)
			}
		default:
			return expire(ctx, h.service, cb)
		}
		return ""
	}

	return "Неизвестная кнопка"
}

func (h *BookingHandler) showServices(ctx context.Context, chatID int64, messageID int, state session.ChoosingServices) {
	services, err := h.service.ListServices(ctx)
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}
	if len(services) == 0 {
		h.clear(ctx, chatID)
		edit(ctx, h.service, chatID, messageID, "Прайс пока пуст, запись временно недоступна.", nil)
		return
	}

	edit(ctx, h.service, chatID, messageID, "💅 Выберите одну или несколько услуг:",
		keyboard.CreateServicesKeyboard(services, state.Has))
}

func (h *BookingHandler) showDates(ctx context.Context, chatID int64, messageID int, order session.Order) {
	dates, err := h.service.AvailableDates(ctx, order.DurationMins)
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}

	text := fmt.Sprintf("⏱ %s · 💰 %d ₽\n\n📅 Выберите день:", botservice.FormatDuration(order.DurationMins), order.TotalPrice)
	if len(dates) == 0 {
		text = "😔 В ближайшие дни нет свободного времени такой длины. Попробуйте выбрать меньше услуг."
	}
	edit(ctx, h.service, chatID, messageID, text, keyboard.CreateDateSelectionKeyboard(dates))
}

func (h *BookingHandler) showRuns(ctx context.Context, chatID int64, messageID int, state session.ChoosingSlot, prefix string) {
	runs, err := h.service.RunsFor(ctx, state.Date, state.DurationMins)
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}

	text := prefix + "🕐 Выберите время:"
	if len(runs) == 0 {
		text = prefix + "На этот день свободного времени не осталось, выберите другой день."
	}
	edit(ctx, h.service, chatID, messageID, text,
		keyboard.CreateRunSelectionKeyboard(runs, h.service.Granularity(), h.service.Location()))
}

func (h *BookingHandler) showConfirm(ctx context.Context, chatID int64, messageID int, state session.Confirming) {
	text := fmt.Sprintf("Проверьте запись:\n\n📅 %s\n⏱ %s\n💰 %d ₽",
		botservice.FormatWhen(state.Run.StartAt, h.service.Location()),
		botservice.FormatDuration(state.DurationMins),
		state.TotalPrice)
	edit(ctx, h.service, chatID, messageID, text, keyboard.CreateConfirmKeyboard())
}

func (h *BookingHandler) put(ctx context.Context, chatID int64, state session.State) bool {
	if err := h.service.Sessions().Put(ctx, chatID, state); err != nil {
		h.service.SendError(ctx, chatID, apperrors.ErrInternal.WithError(err))
		return false
	}
	return true
}

func (h *BookingHandler) clear(ctx context.Context, chatID int64) {
	if err := h.service.Sessions().Clear(ctx, chatID); err != nil {
		h.service.Logger().Warn("Failed to clear session", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}
