package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/region23/salonbot/pkg/errors"
)

// Регулярные выражения для валидации
var (
	phoneRegex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	dateRegex  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRegex  = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// ParseID разбирает положительный числовой идентификатор (слот, запись, услуга)
func ParseID(idStr string) (int64, error) {
	if idStr == "" {
		return 0, errors.Validation("ID не может быть пустым")
	}

	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		return 0, errors.Validation("ID должен быть числом").WithError(err).WithContext(map[string]interface{}{
			"input": idStr,
		})
	}

	if id <= 0 {
		return 0, errors.Validation("ID должен быть положительным числом").WithContext(map[string]interface{}{
			"input": idStr,
		})
	}

	return id, nil
}

// NormalizePhone приводит номер к международному формату. Telegram
// присылает номер из контакта иногда без ведущего "+".
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", errors.Validation("номер телефона не может быть пустым")
	}

	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	if !phoneRegex.MatchString(phone) {
		return "", errors.Validation("номер должен быть в международном формате (+79991234567)").WithContext(map[string]interface{}{
			"phone": phone,
		})
	}

	return phone, nil
}

// ValidateDate разбирает дату YYYY-MM-DD в часовом поясе салона и
// проверяет, что она не в прошлом
func ValidateDate(dateStr string, now time.Time, loc *time.Location) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, errors.Validation("дата не может быть пустой")
	}

	if !dateRegex.MatchString(dateStr) {
		return time.Time{}, errors.Validation("дата должна быть в формате YYYY-MM-DD").WithContext(map[string]interface{}{
			"date": dateStr,
		})
	}

	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, errors.Validation("такой даты не существует").WithError(err)
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if date.Before(today) {
		return time.Time{}, errors.Validation("нельзя выбрать дату в прошлом").WithContext(map[string]interface{}{
			"date": dateStr,
		})
	}

	return date, nil
}

// ValidateClock проверяет время в формате HH:MM
func ValidateClock(timeStr string) error {
	if !timeRegex.MatchString(timeStr) {
		return errors.Validation("время должно быть в формате HH:MM").WithContext(map[string]interface{}{
			"time": timeStr,
		})
	}

	if _, err := time.Parse("15:04", timeStr); err != nil {
		return errors.Validation("такого времени не существует").WithError(err)
	}

	return nil
}

// ParseHour разбирает час 0-24
func ParseHour(s string) (int, error) {
	h, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || h < 0 || h > 24 {
		return 0, errors.Validation("час должен быть числом от 0 до 24").WithContext(map[string]interface{}{
			"input": s,
		})
	}
	return h, nil
}

// ValidateUserName валидирует имя пользователя
func ValidateUserName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.Validation("имя пользователя не может быть пустым")
	}

	if utf8.RuneCountInString(name) > 100 {
		return errors.Validation("имя пользователя слишком длинное (максимум 100 символов)")
	}

	return nil
}

// ValidateServiceName валидирует название услуги
func ValidateServiceName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Validation("название услуги не может быть пустым")
	}

	if utf8.RuneCountInString(name) > 64 {
		return errors.Validation("название услуги слишком длинное (максимум 64 символа)")
	}

	return nil
}

// ParsePrice разбирает неотрицательную цену
func ParsePrice(s string) (int64, error) {
	price, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || price < 0 {
		return 0, errors.Validation("цена должна быть неотрицательным целым числом").WithContext(map[string]interface{}{
			"input": s,
		})
	}
	return price, nil
}

// ParseDurationMinutes разбирает длительность услуги в минутах
func ParseDurationMinutes(s string) (int, error) {
	mins, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Validation("длительность должна быть числом минут").WithError(err)
	}

	if mins < 5 {
		return 0, errors.Validation("слишком короткая услуга (минимум 5 минут)")
	}

	if mins > 480 {
		return 0, errors.Validation("слишком длинная услуга (максимум 8 часов)")
	}

	return mins, nil
}

// ValidateScheduleDays валидирует количество дней для генерации расписания
func ValidateScheduleDays(days int) error {
	if days <= 0 {
		return errors.Validation("количество дней должно быть положительным")
	}

	if days > 60 {
		return errors.Validation("слишком много дней для планирования (максимум 60)")
	}

	return nil
}
