package reminder

import (
	"fmt"
	"time"

	"github.com/region23/salonbot/internal/storage/models"
)

// Action кнопка под напоминанием
type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionReschedule Action = "reschedule"
	ActionCancel     Action = "cancel"
)

// Reminder готовое к отправке сообщение
type Reminder struct {
	BookingID int64
	Stage     Stage
	Text      string
	Actions   []Action
}

// Build формирует текст и кнопки для стадии. Время показывается в часовом поясе салона.
func Build(stage Stage, d *models.BookingDetails, loc *time.Location) Reminder {
	name := d.UserName
	if name == "" {
		name = "клиент"
	}
	when := d.StartAt.In(loc)

	r := Reminder{BookingID: d.ID, Stage: stage}

	switch stage {
	case Stage24h:
		r.Text = fmt.Sprintf("💅 Привет, %s!\n\n📅 Напоминаем: завтра у тебя запись на %s\n\n"+
			"Если планы изменились, можно перенести или отменить запись 👇",
			name, when.Format("02.01 15:04"))
		r.Actions = []Action{ActionReschedule, ActionCancel}
	case Stage12h:
		r.Text = fmt.Sprintf("💅 %s, это важно!\n\n⏰ Через 12 часов у тебя запись на %s\n\n"+
			"❗️ Пожалуйста, подтверди, что придешь, или перенеси запись",
			name, when.Format("02.01 15:04"))
		r.Actions = []Action{ActionConfirm, ActionReschedule, ActionCancel}
	default:
		r.Text = fmt.Sprintf("💅 %s!\n\n⏰ Через час жду тебя в %s!\n\nДо встречи! ✨",
			name, when.Format("15:04"))
	}

	return r
}
