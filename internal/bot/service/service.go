package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/region23/salonbot/internal/booking"
	"github.com/region23/salonbot/internal/config"
	"github.com/region23/salonbot/internal/reminder"
	"github.com/region23/salonbot/internal/session"
	"github.com/region23/salonbot/internal/storage"
	"github.com/region23/salonbot/internal/storage/models"
	"github.com/region23/salonbot/internal/validation"
	apperrors "github.com/region23/salonbot/pkg/errors"
	"github.com/region23/salonbot/pkg/logger"
	"github.com/region23/salonbot/pkg/metrics"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// slotListLimit ограничивает длину списка слотов в одном сообщении
const slotListLimit = 30

// Deps зависимости сервиса бота
type Deps struct {
	Bot      *bot.Bot
	Storage  storage.Storage
	Manager  *booking.Manager
	Finder   *booking.Finder
	Planner  *booking.Planner
	Sweeper  *reminder.Sweeper
	Sessions session.Store
	Config   *config.Config
	Auth     booking.Authorizer
	Log      *logger.Logger
}

// Service представляет основной сервис Telegram бота
type Service struct {
	bot      *bot.Bot
	storage  storage.Storage
	manager  *booking.Manager
	finder   *booking.Finder
	planner  *booking.Planner
	sweeper  *reminder.Sweeper
	sessions session.Store
	config   *config.Config
	auth     booking.Authorizer
	log      *logger.Logger
	now      func() time.Time
}

// NewService создает новый экземпляр сервиса бота
func NewService(d Deps) *Service {
	return &Service{
		bot:      d.Bot,
		storage:  d.Storage,
		manager:  d.Manager,
		finder:   d.Finder,
		planner:  d.Planner,
		sweeper:  d.Sweeper,
		sessions: d.Sessions,
		config:   d.Config,
		auth:     d.Auth,
		log:      d.Log.Named("bot"),
		now:      time.Now,
	}
}

// Sessions возвращает хранилище состояний диалога
func (s *Service) Sessions() session.Store {
	return s.sessions
}

// Logger возвращает логгер бота
func (s *Service) Logger() *logger.Logger {
	return s.log
}

// Location возвращает часовой пояс салона
func (s *Service) Location() *time.Location {
	return s.config.Location()
}

// Granularity возвращает шаг расписания
func (s *Service) Granularity() time.Duration {
	return s.manager.Granularity()
}

// IsAdmin проверяет права администратора
func (s *Service) IsAdmin(chatID int64) bool {
	return s.auth.IsAdmin(chatID)
}

// GetUser возвращает пользователя или nil, если он еще не делился контактом
func (s *Service) GetUser(ctx context.Context, chatID int64) (*models.User, error) {
	user, err := s.storage.GetUserByChatID(ctx, chatID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// RegisterContact сохраняет нормализованный телефон клиента
func (s *Service) RegisterContact(ctx context.Context, chatID int64, name, phone string) (*models.User, error) {
	normalized, err := validation.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name != "" {
		if err := validation.ValidateUserName(name); err != nil {
			name = ""
		}
	}

	user, err := s.storage.SaveUser(ctx, chatID, name, &normalized)
	if err != nil {
		return nil, err
	}

	metrics.RecordUserRegistration()
	s.log.Info("User registered", logger.Int64("chat_id", chatID))
	return user, nil
}

// ListServices возвращает прайс
func (s *Service) ListServices(ctx context.Context) ([]*models.Service, error) {
	return s.storage.ListServices(ctx)
}

// QuoteFor считает длительность и стоимость выбранных услуг
func (s *Service) QuoteFor(ctx context.Context, ids []int64) (booking.Quote, error) {
	services, err := s.storage.GetServicesByIDs(ctx, ids)
	if err != nil {
		return booking.Quote{}, err
	}
	return booking.NewQuote(services)
}

// AvailableDates возвращает дни с подходящими сериями в горизонте записи
func (s *Service) AvailableDates(ctx context.Context, durationMins int) ([]time.Time, error) {
	return s.finder.AvailableDates(ctx, s.config.Schedule.ScheduleDays, durationMins)
}

// RunsFor возвращает еще не начавшиеся серии на день YYYY-MM-DD
func (s *Service) RunsFor(ctx context.Context, date string, durationMins int) ([]models.RunCandidate, error) {
	day, err := validation.ValidateDate(date, s.now(), s.Location())
	if err != nil {
		return nil, err
	}
	return s.finder.FindUpcomingRuns(ctx, day, durationMins)
}

// FindRun ищет серию по первому слоту среди актуальных серий дня
func (s *Service) FindRun(ctx context.Context, date string, durationMins int, startSlotID int64) (models.RunCandidate, error) {
	runs, err := s.RunsFor(ctx, date, durationMins)
	if err != nil {
		return models.RunCandidate{}, err
	}
	for _, run := range runs {
		if run.StartSlotID == startSlotID {
			return run, nil
		}
	}
	return models.RunCandidate{}, apperrors.ErrConflict.WithMessage("это время уже недоступно, выберите другое")
}

// Book создает запись по подтвержденному выбору
func (s *Service) Book(ctx context.Context, chatID int64, c session.Confirming) (*models.BookingDetails, error) {
	user, err := s.GetUser(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.CanBook() {
		return nil, apperrors.ErrPhoneRequired
	}

	b, err := s.manager.Reserve(ctx, c.Run.SlotIDs, user.ID, c.TotalPrice)
	if err != nil {
		return nil, err
	}

	details, err := s.storage.GetBookingDetails(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	s.NotifyAdmins(ctx, "🆕 Новая запись\n"+FormatBookingForAdmin(details, s.Location()))
	return details, nil
}

// UserBookings возвращает предстоящие записи клиента
func (s *Service) UserBookings(ctx context.Context, chatID int64) ([]*models.BookingDetails, error) {
	return s.storage.ListUserBookings(ctx, chatID, s.now())
}

// Cancel отменяет запись от имени chatID
func (s *Service) Cancel(ctx context.Context, bookingID, chatID int64) (*models.BookingDetails, error) {
	details, err := s.storage.GetBookingDetails(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Release(ctx, bookingID, chatID); err != nil {
		return nil, err
	}

	if chatID == details.UserChatID {
		s.NotifyAdmins(ctx, "❌ Клиент отменил запись\n"+FormatBookingForAdmin(details, s.Location()))
	} else {
		s.SendText(ctx, details.UserChatID,
			fmt.Sprintf("❌ Ваша запись на %s отменена салоном.", FormatWhen(details.StartAt, s.Location())))
	}
	return details, nil
}

// StartReschedule готовит состояние переноса: запоминает длину серии записи
func (s *Service) StartReschedule(ctx context.Context, bookingID, chatID int64) (session.Rescheduling, error) {
	details, err := s.storage.GetBookingDetails(ctx, bookingID)
	if err != nil {
		return session.Rescheduling{}, err
	}
	if details.UserChatID != chatID && !s.IsAdmin(chatID) {
		return session.Rescheduling{}, apperrors.ErrForbidden.WithMessage("это чужая запись")
	}

	run, err := s.manager.RunSlots(ctx, bookingID)
	if err != nil {
		return session.Rescheduling{}, err
	}
	return session.Rescheduling{BookingID: bookingID, Slots: len(run)}, nil
}

// RescheduleDuration возвращает длительность переносимой записи в минутах
func (s *Service) RescheduleDuration(r session.Rescheduling) int {
	return r.Slots * int(s.Granularity()/time.Minute)
}

// Reschedule переносит запись на серию, начинающуюся со startSlotID
func (s *Service) Reschedule(ctx context.Context, chatID int64, r session.Rescheduling, startSlotID int64) (*models.BookingDetails, error) {
	run, err := s.FindRun(ctx, r.Date, s.RescheduleDuration(r), startSlotID)
	if err != nil {
		return nil, err
	}

	details, err := s.manager.Reschedule(ctx, r.BookingID, chatID, run.SlotIDs)
	if err != nil {
		return nil, err
	}

	s.NotifyAdmins(ctx, "🔄 Запись перенесена\n"+FormatBookingForAdmin(details, s.Location()))
	return details, nil
}

// ConfirmAttendance отмечает подтверждение визита и сообщает администраторам
func (s *Service) ConfirmAttendance(ctx context.Context, bookingID, chatID int64) (*models.BookingDetails, error) {
	details, err := s.manager.ConfirmAttendance(ctx, bookingID, chatID)
	if err != nil {
		return nil, err
	}
	s.NotifyAdmins(ctx, "👍 Клиент подтвердил визит\n"+FormatBookingForAdmin(details, s.Location()))
	return details, nil
}

// AddSlot добавляет слот; прошедшие даты не принимаются
func (s *Service) AddSlot(ctx context.Context, date, clock string) (*models.TimeSlot, error) {
	if _, err := validation.ValidateDate(date, s.now(), s.Location()); err != nil {
		return nil, err
	}
	if err := validation.ValidateClock(clock); err != nil {
		return nil, err
	}
	return s.planner.AddSlot(ctx, date, clock)
}

// GenerateSlots создает слоты на days дней начиная с завтрашнего
func (s *Service) GenerateSlots(ctx context.Context, days, fromHour, toHour int) (int, error) {
	if err := validation.ValidateScheduleDays(days); err != nil {
		return 0, err
	}
	return s.planner.Generate(ctx, s.now().In(s.Location()).AddDate(0, 0, 1), days, fromHour, toHour)
}

// GenerateDefaultSlots создает слоты по рабочим часам из конфигурации
func (s *Service) GenerateDefaultSlots(ctx context.Context) (int, error) {
	return s.planner.GenerateWorkHours(ctx, s.now().In(s.Location()).AddDate(0, 0, 1),
		s.config.Schedule.ScheduleDays, s.config.Schedule.WorkStart, s.config.Schedule.WorkEnd)
}

// ListSlots возвращает слоты на день date (YYYY-MM-DD) или, без даты, ближайшие
// слоты на горизонт расписания. Второй результат сообщает, что список обрезан.
func (s *Service) ListSlots(ctx context.Context, date string) ([]*models.TimeSlot, bool, error) {
	loc := s.Location()
	from := s.now()
	to := from.AddDate(0, 0, s.config.Schedule.ScheduleDays)
	if date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return nil, false, apperrors.Validation("дата должна быть в формате YYYY-MM-DD")
		}
		from, to = day, day.AddDate(0, 0, 1)
	}

	slots, err := s.storage.ListSlots(ctx, from, to, false)
	if err != nil {
		return nil, false, err
	}
	if len(slots) > slotListLimit {
		return slots[:slotListLimit], true, nil
	}
	return slots, false, nil
}

// DeleteSlot удаляет свободный слот
func (s *Service) DeleteSlot(ctx context.Context, id int64) error {
	return s.storage.DeleteSlot(ctx, id)
}

// AddService добавляет услугу в прайс
func (s *Service) AddService(ctx context.Context, name string, price int64, mins int) (*models.Service, error) {
	if err := validation.ValidateServiceName(name); err != nil {
		return nil, err
	}
	svc := &models.Service{Name: name, Price: price, DurationMins: mins}
	if err := s.storage.CreateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// SetPrice меняет цену услуги
func (s *Service) SetPrice(ctx context.Context, name string, price int64) error {
	return s.storage.UpdateServicePrice(ctx, name, price)
}

// SetDuration меняет длительность услуги
func (s *Service) SetDuration(ctx context.Context, name string, mins int) error {
	return s.storage.UpdateServiceDuration(ctx, name, mins)
}

// DeleteService удаляет услугу
func (s *Service) DeleteService(ctx context.Context, name string) error {
	return s.storage.DeleteService(ctx, name)
}

// UpcomingBookings возвращает ближайшие записи салона
func (s *Service) UpcomingBookings(ctx context.Context, limit int) ([]*models.BookingDetails, error) {
	return s.storage.ListBookings(ctx, s.now(), limit)
}

// Stats возвращает сводку для администратора
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	return s.storage.Stats(ctx, s.now().In(s.Location()))
}

// ClearOld удаляет прошедшие слоты; includeBooked удаляет и прошедшие записи
func (s *Service) ClearOld(ctx context.Context, includeBooked bool) (int64, int64, error) {
	return s.planner.Cleanup(ctx, s.now(), 0, includeBooked)
}

// Sweep выполняет ручной прогон напоминаний
func (s *Service) Sweep(ctx context.Context) reminder.DeliveryReport {
	return s.sweeper.RunSweep(ctx, s.now())
}

// PreviewReminders показывает, кому уйдут напоминания при прогоне сейчас
func (s *Service) PreviewReminders(ctx context.Context) (map[reminder.Stage][]*models.BookingDetails, error) {
	return s.sweeper.Preview(ctx, s.now())
}

// NotifyAdmins рассылает сообщение администраторам; ошибки только логируются
func (s *Service) NotifyAdmins(ctx context.Context, text string) {
	for _, id := range s.config.Telegram.AdminIDs {
		if err := s.SendMessage(ctx, id, text, nil); err != nil {
			s.log.Warn("Failed to notify admin", logger.Int64("chat_id", id), logger.Error(err))
		}
	}
}

// SendMessage отправляет сообщение пользователю
func (s *Service) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup tgmodels.ReplyMarkup) error {
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: replyMarkup,
	}

	_, err := s.bot.SendMessage(ctx, params)
	return err
}

// SendText отправляет простое текстовое сообщение и логирует ошибку
func (s *Service) SendText(ctx context.Context, chatID int64, text string) {
	if err := s.SendMessage(ctx, chatID, text, nil); err != nil {
		s.log.Warn("Failed to send message", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}

// EditMessage заменяет текст и клавиатуру сообщения. Без messageID отправляет новое.
func (s *Service) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup tgmodels.ReplyMarkup) error {
	if messageID == 0 {
		return s.SendMessage(ctx, chatID, text, markup)
	}

	_, err := s.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: markup,
	})
	return err
}

// SendError отправляет пользователю понятное описание ошибки
func (s *Service) SendError(ctx context.Context, chatID int64, err error) {
	s.SendText(ctx, chatID, s.Failure(chatID, err))
}

// Failure логирует внутреннюю ошибку и возвращает текст для пользователя
func (s *Service) Failure(chatID int64, err error) string {
	if apperrors.KindOf(err) == apperrors.CodeInternal {
		metrics.RecordError("bot", "internal")
		s.log.Error("Request failed", logger.Int64("chat_id", chatID), logger.Error(err))
	}
	return "⚠️ " + UserMessage(err)
}

// AnswerCallbackQuery отвечает на callback query
func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) {
	params := &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}

	if _, err := s.bot.AnswerCallbackQuery(ctx, params); err != nil {
		s.log.Debug("Failed to answer callback query", logger.Error(err))
	}
}

// UserMessage переводит ошибку в текст для пользователя. Внутренние детали не раскрываются.
func UserMessage(err error) string {
	if botErr, ok := apperrors.GetBotError(err); ok && botErr.Code != apperrors.CodeInternal {
		return botErr.Message
	}
	return "Произошла ошибка, попробуйте позже"
}
