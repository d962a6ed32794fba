package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/region23/salonbot/internal/reminder"
	"github.com/region23/salonbot/internal/storage/models"
)

var months = [...]string{"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря"}

// weekdays по индексу time.Weekday
var weekdays = [...]string{"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота"}

// FormatWhen печатает момент в часовом поясе салона: "5 марта, 14:00"
func FormatWhen(t time.Time, loc *time.Location) string {
	l := t.In(loc)
	return fmt.Sprintf("%d %s, %s", l.Day(), months[l.Month()-1], l.Format("15:04"))
}

// FormatDuration печатает длительность в минутах: "1 ч 30 мин"
func FormatDuration(mins int) string {
	h, m := mins/60, mins%60
	switch {
	case h == 0:
		return fmt.Sprintf("%d мин", m)
	case m == 0:
		return fmt.Sprintf("%d ч", h)
	}
	return fmt.Sprintf("%d ч %d мин", h, m)
}

// FormatServices печатает прайс
func FormatServices(services []*models.Service) string {
	if len(services) == 0 {
		return "Прайс пока пуст."
	}
	var b strings.Builder
	b.WriteString("💅 Услуги и цены:\n")
	for _, svc := range services {
		fmt.Fprintf(&b, "\n• %s · %d ₽ · %s", svc.Name, svc.Price, FormatDuration(svc.DurationMins))
	}
	return b.String()
}

// FormatBooking печатает запись для клиента
func FormatBooking(d *models.BookingDetails, loc *time.Location) string {
	status := "⏳ ждем подтверждения"
	if d.Confirmed {
		status = "✅ визит подтвержден"
	}
	return fmt.Sprintf("📅 %s\n💰 %d ₽\n%s", FormatWhen(d.StartAt, loc), d.TotalPrice, status)
}

// FormatBookingForAdmin печатает запись с контактами клиента
func FormatBookingForAdmin(d *models.BookingDetails, loc *time.Location) string {
	name := d.UserName
	if name == "" {
		name = "без имени"
	}
	phone := d.UserPhone
	if phone == "" {
		phone = "нет телефона"
	}
	return fmt.Sprintf("#%d · %s\n👤 %s, %s\n💰 %d ₽", d.ID, FormatWhen(d.StartAt, loc), name, phone, d.TotalPrice)
}

// FormatStats печатает сводку с разбивкой по дням недели и лучшими клиентами
func FormatStats(s *models.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Статистика\n\n"+
		"Записей всего: %d\nПредстоящих: %d\nЗа 30 дней: %d\n"+
		"Клиентов: %d\nСвободных слотов: %d\n\n"+
		"Выручка всего: %d ₽\nВыручка за 30 дней: %d ₽",
		s.TotalBookings, s.UpcomingBookings, s.Bookings30d,
		s.Clients, s.FreeSlots, s.Revenue, s.Revenue30d)

	if s.TotalBookings == 0 {
		return b.String()
	}

	b.WriteString("\n\n📅 По дням недели:")
	// неделя с понедельника
	for i := 1; i <= 7; i++ {
		day := time.Weekday(i % 7)
		if w := s.Weekdays[day]; w.Bookings > 0 {
			fmt.Fprintf(&b, "\n%s: %d, %d ₽", weekdays[day], w.Bookings, w.Revenue)
		}
	}

	if len(s.TopClients) > 0 {
		b.WriteString("\n\n👥 Постоянные клиенты:")
		for i, c := range s.TopClients {
			name := c.Name
			if name == "" {
				name = "без имени"
			}
			fmt.Fprintf(&b, "\n%d. %s: %d визитов, %d ₽", i+1, name, c.Visits, c.Spent)
		}
	}

	return b.String()
}

// FormatSlots печатает слоты с ID для администратора
func FormatSlots(slots []*models.TimeSlot, truncated bool, loc *time.Location) string {
	if len(slots) == 0 {
		return "Слотов нет."
	}

	var b strings.Builder
	b.WriteString("🗓 Слоты:\n")
	for _, slot := range slots {
		mark := "🟢 свободен"
		if slot.Occupied {
			mark = "🔴 занят"
		}
		fmt.Fprintf(&b, "\n#%d %s · %s", slot.ID, FormatWhen(slot.StartAt, loc), mark)
	}
	if truncated {
		fmt.Fprintf(&b, "\n\nПоказаны первые %d, укажите дату: /slots YYYY-MM-DD", len(slots))
	}
	return b.String()
}

// FormatReport печатает итоги прогона напоминаний
func FormatReport(r reminder.DeliveryReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 Прогон напоминаний\nОтправлено: %d, ошибок: %d\n", r.Sent(), r.Failed())
	for _, stage := range reminder.Stages {
		sr, ok := r.Stages[stage]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s: кандидатов %d, отправлено %d, ошибок %d", stage.Name, sr.Candidates, sr.Sent, sr.Failed)
	}
	for _, err := range r.Errors {
		fmt.Fprintf(&b, "\n⚠️ %v", err)
	}
	return b.String()
}

// FormatPreview печатает, кому уйдут напоминания
func FormatPreview(p map[reminder.Stage][]*models.BookingDetails, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🔔 Ожидающие напоминания")

	stages := make([]reminder.Stage, 0, len(p))
	for stage := range p {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].Lead > stages[j].Lead })

	total := 0
	for _, stage := range stages {
		for _, d := range p[stage] {
			fmt.Fprintf(&b, "\n%s · #%d · %s", stage.Name, d.ID, FormatWhen(d.StartAt, loc))
			total++
		}
	}
	if total == 0 {
		b.WriteString("\nсейчас никого")
	}
	return b.String()
}
