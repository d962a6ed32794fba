package keyboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/region23/salonbot/internal/reminder"
	storagemodels "github.com/region23/salonbot/internal/storage/models"
)

// Действия в callback data. Аргумент отделяется двоеточием.
const (
	ActionService       = "svc" // svc:<service id>
	ActionServicesDone  = "svc_done"
	ActionDate          = "date" // date:YYYY-MM-DD
	ActionRun           = "run"  // run:<id первого слота>
	ActionConfirm       = "confirm"
	ActionBack          = "back"
	ActionAbort         = "abort"
	ActionCancelBooking = "cancel_booking"     // cancel_booking:<booking id>
	ActionReschedule    = "reschedule"         // reschedule:<booking id>
	ActionConfirmVisit  = "confirm_attendance" // confirm_attendance:<booking id>
)

// Тексты кнопок главного меню
const (
	MenuBook     = "📅 Записаться"
	MenuBookings = "📋 Мои записи"
	MenuServices = "💅 Услуги"
)

var weekdays = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

// Data собирает callback data
func Data(action string, arg interface{}) string {
	return fmt.Sprintf("%s:%v", action, arg)
}

// Parse разбирает callback data на действие и аргумент
func Parse(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return action, arg
}

// CreateContactKeyboard создает клавиатуру для запроса контакта
func CreateContactKeyboard() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{
				{
					Text:           "📱 Поделиться телефоном",
					RequestContact: true,
				},
			},
		},
		OneTimeKeyboard: true,
		ResizeKeyboard:  true,
	}
}

// CreateMainMenu создает постоянное меню клиента
func CreateMainMenu() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: MenuBook}},
			{{Text: MenuBookings}, {Text: MenuServices}},
		},
		ResizeKeyboard: true,
	}
}

// CreateServicesKeyboard создает выбор услуг с отметками выбранных
func CreateServicesKeyboard(services []*storagemodels.Service, selected func(id int64) bool) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(services)+1)
	for _, svc := range services {
		mark := "▫️"
		if selected(svc.ID) {
			mark = "✅"
		}
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         fmt.Sprintf("%s %s · %d ₽ · %d мин", mark, svc.Name, svc.Price, svc.DurationMins),
			CallbackData: Data(ActionService, svc.ID),
		}})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "Готово ➡️", CallbackData: ActionServicesDone},
		{Text: "✖️ Отмена", CallbackData: ActionAbort},
	})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateDateSelectionKeyboard создает inline клавиатуру для выбора даты
func CreateDateSelectionKeyboard(dates []time.Time) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton

	for _, d := range dates {
		row = append(row, models.InlineKeyboardButton{
			Text:         fmt.Sprintf("%s %s", weekdays[d.Weekday()], d.Format("02.01")),
			CallbackData: Data(ActionDate, d.Format("2006-01-02")),
		})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, navigationRow())

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateRunSelectionKeyboard создает выбор времени; кнопка показывает начало и конец серии
func CreateRunSelectionKeyboard(runs []storagemodels.RunCandidate, granularity time.Duration, loc *time.Location) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton

	for _, run := range runs {
		start := run.StartAt.In(loc)
		end := start.Add(time.Duration(len(run.SlotIDs)) * granularity)
		row = append(row, models.InlineKeyboardButton{
			Text:         start.Format("15:04") + "-" + end.Format("15:04"),
			CallbackData: Data(ActionRun, run.StartSlotID),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, navigationRow())

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateConfirmKeyboard создает подтверждение записи
func CreateConfirmKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: "✅ Подтвердить", CallbackData: ActionConfirm}},
		navigationRow(),
	}}
}

// CreateBookingKeyboard создает кнопки управления записью
func CreateBookingKeyboard(b *storagemodels.BookingDetails) *models.InlineKeyboardMarkup {
	row := []models.InlineKeyboardButton{
		{Text: "🔄 Перенести", CallbackData: Data(ActionReschedule, b.ID)},
		{Text: "❌ Отменить", CallbackData: Data(ActionCancelBooking, b.ID)},
	}
	rows := [][]models.InlineKeyboardButton{row}
	if !b.Confirmed {
		rows = append([][]models.InlineKeyboardButton{{
			{Text: "👍 Приду", CallbackData: Data(ActionConfirmVisit, b.ID)},
		}}, rows...)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateReminderKeyboard переводит действия напоминания в кнопки. Без действий клавиатура не нужна.
func CreateReminderKeyboard(r reminder.Reminder) models.ReplyMarkup {
	if len(r.Actions) == 0 {
		return nil
	}

	var row []models.InlineKeyboardButton
	for _, a := range r.Actions {
		switch a {
		case reminder.ActionConfirm:
			row = append(row, models.InlineKeyboardButton{Text: "👍 Приду", CallbackData: Data(ActionConfirmVisit, r.BookingID)})
		case reminder.ActionReschedule:
			row = append(row, models.InlineKeyboardButton{Text: "🔄 Перенести", CallbackData: Data(ActionReschedule, r.BookingID)})
		case reminder.ActionCancel:
			row = append(row, models.InlineKeyboardButton{Text: "❌ Отменить", CallbackData: Data(ActionCancelBooking, r.BookingID)})
		}
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{row}}
}

func navigationRow() []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{
		{Text: "⬅️ Назад", CallbackData: ActionBack},
		{Text: "✖️ Отмена", CallbackData: ActionAbort},
	}
}
