package bot

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/salonbot/internal/bot/handlers"
	"github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/internal/middleware"
	"github.com/region23/salonbot/pkg/logger"
	"github.com/region23/salonbot/pkg/metrics"
)

// Dispatcher управляет обработкой входящих обновлений от Telegram
type Dispatcher struct {
	service         *service.Service
	limiter         *middleware.RateLimiter
	log             *logger.Logger
	startHandler    *handlers.StartHandler
	contactHandler  *handlers.ContactHandler
	callbackHandler *handlers.CallbackHandler
	adminHandler    *handlers.AdminHandler
	bookingHandler  *handlers.BookingHandler
	myBookings      *handlers.MyBookingsHandler
	defaultHandler  *handlers.DefaultHandler
}

// NewDispatcher создает новый диспетчер обновлений. limiter может быть nil.
func NewDispatcher(svc *service.Service, limiter *middleware.RateLimiter) *Dispatcher {
	booking := handlers.NewBookingHandler(svc)
	my := handlers.NewMyBookingsHandler(svc)
	start := handlers.NewStartHandler(svc)

	return &Dispatcher{
		service:         svc,
		limiter:         limiter,
		log:             svc.Logger().Named("dispatcher"),
		startHandler:    start,
		contactHandler:  handlers.NewContactHandler(svc, booking),
		callbackHandler: handlers.NewCallbackHandler(svc, booking, my),
		adminHandler:    handlers.NewAdminHandler(svc),
		bookingHandler:  booking,
		myBookings:      my,
		defaultHandler:  handlers.NewDefaultHandler(svc, start, booking, my),
	}
}

// HandleUpdate обрабатывает входящее обновление от Telegram
func (d *Dispatcher) HandleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	kind := "unknown"
	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			metrics.RecordError("dispatcher", "panic")
			d.log.Error("Panic while handling update",
				logger.Int64("update_id", update.ID),
				logger.String("panic", fmt.Sprint(r)))
		}
		metrics.RecordRequest(kind, status)
	}()

	chatID := updateChatID(update)
	if chatID == 0 {
		d.log.Debug("Skipping update without chat", logger.Int64("update_id", update.ID))
		return
	}

	if d.limiter != nil && !d.limiter.AllowChat(chatID) {
		status = "rate_limited"
		d.log.Warn("Chat rate limit exceeded", logger.Int64("chat_id", chatID))
		if update.CallbackQuery != nil {
			d.service.AnswerCallbackQuery(ctx, update.CallbackQuery.ID, "Слишком много нажатий, подождите немного")
		}
		return
	}

	if update.CallbackQuery != nil {
		kind = "callback"
		d.log.Debug("Received callback query",
			logger.Int64("chat_id", chatID),
			logger.String("data", update.CallbackQuery.Data))
		d.callbackHandler.Handle(ctx, update)
		return
	}

	msg := update.Message
	if msg.Contact != nil {
		kind = "contact"
		d.contactHandler.Handle(ctx, chatID, msg.Contact)
		return
	}

	cmd, args := splitCommand(msg.Text)
	d.log.Debug("Received message", logger.Int64("chat_id", chatID), logger.String("command", cmd))

	switch {
	case cmd == "/start":
		kind = "start"
		d.startHandler.Handle(ctx, chatID)
	case cmd == "/help":
		kind = "help"
		d.startHandler.HandleHelp(ctx, chatID)
	case cmd == "/services":
		kind = "services"
		d.startHandler.HandleServices(ctx, chatID)
	case cmd == "/book":
		kind = "book"
		d.bookingHandler.Start(ctx, chatID)
	case cmd == "/my":
		kind = "my_bookings"
		d.myBookings.List(ctx, chatID)
	case d.adminHandler.Handles(cmd):
		kind = "admin"
		d.adminHandler.Handle(ctx, chatID, cmd, args)
	default:
		kind = "message"
		d.defaultHandler.Handle(ctx, chatID, msg.Text)
	}
}

// updateChatID возвращает чат, из которого пришло обновление
func updateChatID(update *models.Update) int64 {
	if cq := update.CallbackQuery; cq != nil {
		if cq.Message.Message != nil {
			return cq.Message.Message.Chat.ID
		}
		return cq.From.ID
	}
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	return 0
}

// splitCommand отделяет команду от аргументов и убирает суффикс @имя_бота
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	cmd, args, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}
