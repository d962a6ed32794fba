package errors

import (
	stderrors "errors"
	"fmt"
)

// Коды ошибок. Код определяет вид ошибки, сообщение предназначено для человека.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeValidation = "VALIDATION"
	CodeDelivery   = "DELIVERY"
	CodeForbidden  = "FORBIDDEN"
	CodeInternal   = "INTERNAL"
)

// BotError представляет ошибку бота с кодом и контекстом
type BotError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Context interface{} `json:"context,omitempty"`
}

// Error реализует интерфейс error
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *BotError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, поэтому errors.Is(err, ErrConflict)
// срабатывает и для копий, полученных через WithError/WithContext.
func (e *BotError) Is(target error) bool {
	t, ok := target.(*BotError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext добавляет контекст к ошибке
func (e *BotError) WithContext(ctx interface{}) *BotError {
	return &BotError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Context: ctx,
	}
}

// WithError добавляет underlying ошибку
func (e *BotError) WithError(err error) *BotError {
	return &BotError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
		Context: e.Context,
	}
}

// WithMessage заменяет сообщение, сохраняя код
func (e *BotError) WithMessage(msg string) *BotError {
	return &BotError{
		Code:    e.Code,
		Message: msg,
		Err:     e.Err,
		Context: e.Context,
	}
}

// Предопределенные ошибки
var (
	ErrNotFound = &BotError{
		Code:    CodeNotFound,
		Message: "объект не найден",
	}

	ErrConflict = &BotError{
		Code:    CodeConflict,
		Message: "время уже занято, выберите другое",
	}

	ErrValidation = &BotError{
		Code:    CodeValidation,
		Message: "некорректные данные",
	}

	ErrDelivery = &BotError{
		Code:    CodeDelivery,
		Message: "не удалось доставить сообщение",
	}

	ErrForbidden = &BotError{
		Code:    CodeForbidden,
		Message: "недостаточно прав",
	}

	ErrInternal = &BotError{
		Code:    CodeInternal,
		Message: "внутренняя ошибка",
	}

	// Частные случаи, которые встречаются в нескольких местах
	ErrSlotsGone       = ErrNotFound.WithMessage("слоты больше не существуют")
	ErrBookingNotFound = ErrNotFound.WithMessage("запись не найдена")
	ErrUserNotFound    = ErrNotFound.WithMessage("пользователь не найден")
	ErrSlotOccupied    = ErrConflict.WithMessage("слот уже занят")
	ErrPhoneRequired   = ErrValidation.WithMessage("для записи нужен номер телефона")
)

// NewBotError создает новую ошибку бота
func NewBotError(code, message string) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
	}
}

// Wrap оборачивает обычную ошибку в BotError
func Wrap(err error, code, message string) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation создает ошибку валидации с сообщением
func Validation(format string, args ...interface{}) *BotError {
	return ErrValidation.WithMessage(fmt.Sprintf(format, args...))
}

// IsBotError проверяет, является ли ошибка BotError
func IsBotError(err error) bool {
	_, ok := GetBotError(err)
	return ok
}

// GetBotError извлекает BotError из цепочки ошибок
func GetBotError(err error) (*BotError, bool) {
	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr, true
	}
	return nil, false
}

// KindOf возвращает код ошибки или CodeInternal для прочих ошибок
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	if botErr, ok := GetBotError(err); ok {
		return botErr.Code
	}
	return CodeInternal
}

// Is и As реэкспортированы, чтобы пакеты не импортировали два errors
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
