package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	botservice "github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/internal/validation"
	apperrors "github.com/region23/salonbot/pkg/errors"
	"github.com/region23/salonbot/pkg/logger"
)

const defaultServiceMins = 60

// AdminHandler выполняет команды администратора
type AdminHandler struct {
	service  *botservice.Service
	commands map[string]func(ctx context.Context, chatID int64, args []string) (string, error)
}

// NewAdminHandler создает обработчик команд администратора
func NewAdminHandler(service *botservice.Service) *AdminHandler {
	h := &AdminHandler{service: service}
	h.commands = map[string]func(context.Context, int64, []string) (string, error){
		"/addslot":     h.addSlot,
		"/genslots":    h.genSlots,
		"/slots":       h.slots,
		"/delslot":     h.delSlot,
		"/addservice":  h.addService,
		"/setprice":    h.setPrice,
		"/setduration": h.setDuration,
		"/delservice":  h.delService,
		"/bookings":    h.bookings,
		"/stats":       h.stats,
		"/clearold":    h.clearOld,
		"/sweep":       h.sweep,
		"/reminders":   h.reminders,
	}
	return h
}

// Handles сообщает, является ли команда административной
func (h *AdminHandler) Handles(cmd string) bool {
	_, ok := h.commands[cmd]
	return ok
}

// Handle проверяет права и выполняет команду
func (h *AdminHandler) Handle(ctx context.Context, chatID int64, cmd, args string) {
	if !h.service.IsAdmin(chatID) {
		h.service.Logger().Warn("Admin command rejected",
			logger.Int64("chat_id", chatID),
			logger.String("command", cmd))
		h.service.SendText(ctx, chatID, "⛔️ Команда доступна только администратору.")
		return
	}

	run, ok := h.commands[cmd]
	if !ok {
		return
	}

	reply, err := run(ctx, chatID, strings.Fields(args))
	if err != nil {
		h.service.SendError(ctx, chatID, err)
		return
	}

	h.service.Logger().Info("Admin command executed",
		logger.Int64("chat_id", chatID),
		logger.String("command", cmd))
	h.service.SendText(ctx, chatID, reply)
}

// HelpText перечисляет команды администратора
func HelpText() string {
	return "🛠 Команды администратора:\n" +
		"/addslot YYYY-MM-DD HH:MM · добавить слот\n" +
		"/genslots [дней с_часа до_часа] · создать слоты начиная с завтра\n" +
		"/slots [YYYY-MM-DD] · слоты с ID\n" +
		"/delslot ID · удалить свободный слот\n" +
		"/addservice Название цена [минуты] · добавить услугу\n" +
		"/setprice Название цена\n" +
		"/setduration Название минуты\n" +
		"/delservice Название\n" +
		"/bookings · ближайшие записи\n" +
		"/stats · статистика\n" +
		"/clearold [all] · удалить прошедшие слоты\n" +
		"/sweep · разослать напоминания сейчас\n" +
		"/reminders · кому уйдут напоминания"
}

func usage(format string) error {
	return apperrors.Validation("использование: %s", format)
}

func (h *AdminHandler) addSlot(ctx context.Context, _ int64, args []string) (string, error) {
	if len(args) != 2 {
		return "", usage("/addslot YYYY-MM-DD HH:MM")
	}
	slot, err := h.service.AddSlot(ctx, args[0], args[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Слот #%d добавлен: %s", slot.ID, botservice.FormatWhen(slot.StartAt, h.service.Location())), nil
}

func (h *AdminHandler) genSlots(ctx context.Context, _ int64, args []string) (string, error) {
	var (
		created int
		err     error
	)
	switch len(args) {
	case 0:
		created, err = h.service.GenerateDefaultSlots(ctx)
	case 3:
		days, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return "", apperrors.Validation("число дней должно быть целым")
		}
		from, hourErr := validation.ParseHour(args[1])
		if hourErr != nil {
			return "", hourErr
		}
		to, hourErr := validation.ParseHour(args[2])
		if hourErr != nil {
			return "", hourErr
		}
		created, err = h.service.GenerateSlots(ctx, days, from, to)
	default:
		return "", usage("/genslots [дней с_часа до_часа]")
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Создано слотов: %d", created), nil
}

func (h *AdminHandler) slots(ctx context.Context, _ int64, args []string) (string, error) {
	if len(args) > 1 {
		return "", usage("/slots [YYYY-MM-DD]")
	}
	var date string
	if len(args) == 1 {
		date = args[0]
	}
	list, truncated, err := h.service.ListSlots(ctx, date)
	if err != nil {
		return "", err
	}
	return botservice.FormatSlots(list, truncated, h.service.Location()), nil
}

func (h *AdminHandler) delSlot(ctx context.Context, _ int64, args []string) (string, error) {
	if len(args) != 1 {
		return "", usage("/delslot ID")
	}
	id, err := validation.ParseID(args[0])
	if err != nil {
		return "", err
	}
	if err := h.service.DeleteSlot(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Слот #%d удален", id), nil
}

func (h *AdminHandler) addService(ctx context.Context, _ int64, args []string) (string, error) {
	name, price, mins, err := parseServiceArgs(args)
	if err != nil {
		return "", err
	}
	svc, err := h.service.AddService(ctx, name, price, mins)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Услуга «%s» добавлена: %d ₽, %s", svc.Name, svc.Price, botservice.FormatDuration(svc.DurationMins)), nil
}

func (h *AdminHandler) setPrice(ctx context.Context, _ int64, args []string) (string, error) {
	name, value, err := splitNameValue(args)
	if err != nil {
		return "", usage("/setprice Название цена")
	}
	price, err := validation.ParsePrice(value)
	if err != nil {
		return "", err
	}
	if err := h.service.SetPrice(ctx, name, price); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Цена «%s»: %d ₽", name, price), nil
}

func (h *AdminHandler) setDuration(ctx context.Context, _ int64, args []string) (string, error) {
	name, value, err := splitNameValue(args)
	if err != nil {
		return "", usage("/setduration Название минуты")
	}
	mins, err := validation.ParseDurationMinutes(value)
	if err != nil {
		return "", err
	}
	if err := h.service.SetDuration(ctx, name, mins); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Длительность «%s»: %s", name, botservice.FormatDuration(mins)), nil
}

func (h *AdminHandler) delService(ctx context.Context, _ int64, args []string) (string, error) {
	if len(args) == 0 {
		return "", usage("/delservice Название")
	}
	name := strings.Join(args, " ")
	if err := h.service.DeleteService(ctx, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Услуга «%s» удалена", name), nil
}

func (h *AdminHandler) bookings(ctx context.Context, _ int64, _ []string) (string, error) {
	list, err := h.service.UpcomingBookings(ctx, 20)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "Предстоящих записей нет.", nil
	}

	parts := make([]string, 0, len(list))
	for _, b := range list {
		parts = append(parts, botservice.FormatBookingForAdmin(b, h.service.Location()))
	}
	return "📋 Ближайшие записи\n\n" + strings.Join(parts, "\n\n"), nil
}

func (h *AdminHandler) stats(ctx context.Context, _ int64, _ []string) (string, error) {
	s, err := h.service.Stats(ctx)
	if err != nil {
		return "", err
	}
	return botservice.FormatStats(s), nil
}

func (h *AdminHandler) clearOld(ctx context.Context, _ int64, args []string) (string, error) {
	includeBooked := len(args) == 1 && args[0] == "all"
	if len(args) > 1 || (len(args) == 1 && !includeBooked) {
		return "", usage("/clearold [all]")
	}
	slots, bookings, err := h.service.ClearOld(ctx, includeBooked)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🧹 Удалено слотов: %d, записей: %d", slots, bookings), nil
}

func (h *AdminHandler) sweep(ctx context.Context, _ int64, _ []string) (string, error) {
	return botservice.FormatReport(h.service.Sweep(ctx)), nil
}

func (h *AdminHandler) reminders(ctx context.Context, _ int64, _ []string) (string, error) {
	preview, err := h.service.PreviewReminders(ctx)
	if err != nil {
		return "", err
	}
	return botservice.FormatPreview(preview, h.service.Location()), nil
}

// parseServiceArgs разбирает "Название из слов цена [минуты]". Если два последних
// слова числа, второе из них считается длительностью.
func parseServiceArgs(args []string) (string, int64, int, error) {
	if len(args) < 2 {
		return "", 0, 0, usage("/addservice Название цена [минуты]")
	}

	mins := defaultServiceMins
	nameEnd := len(args) - 1
	if len(args) >= 3 && isNumber(args[len(args)-1]) && isNumber(args[len(args)-2]) {
		m, err := validation.ParseDurationMinutes(args[len(args)-1])
		if err != nil {
			return "", 0, 0, err
		}
		mins = m
		nameEnd = len(args) - 2
	}

	price, err := validation.ParsePrice(args[nameEnd])
	if err != nil {
		return "", 0, 0, err
	}

	name := strings.Join(args[:nameEnd], " ")
	if err := validation.ValidateServiceName(name); err != nil {
		return "", 0, 0, err
	}
	return name, price, mins, nil
}

// splitNameValue отделяет последнее слово от названия
func splitNameValue(args []string) (string, string, error) {
	if len(args) < 2 {
		return "", "", apperrors.ErrValidation
	}
	return strings.Join(args[:len(args)-1], " "), args[len(args)-1], nil
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
