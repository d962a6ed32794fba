package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/salonbot/internal/booking"
	"github.com/region23/salonbot/internal/bot/service"
	"github.com/region23/salonbot/internal/config"
	"github.com/region23/salonbot/internal/middleware"
	"github.com/region23/salonbot/internal/reminder"
	"github.com/region23/salonbot/internal/session"
	storagemodels "github.com/region23/salonbot/internal/storage/models"
	"github.com/region23/salonbot/internal/storage/sqlite"
	"github.com/region23/salonbot/internal/testutil"
	"github.com/region23/salonbot/pkg/logger"
)

const adminChatID = 900

type apiCall struct {
	method string
	body   string
}

// fakeTelegram записывает вызовы Bot API и отвечает успехом
type fakeTelegram struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "answerCallbackQuery":
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"}}}`)
	}
}

// take возвращает накопленные вызовы и очищает журнал
func (f *fakeTelegram) take() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	f.calls = nil
	return calls
}

type testEnv struct {
	t          *testing.T
	store      *sqlite.SQLiteStorage
	api        *fakeTelegram
	bot        *tgbot.Bot
	dispatcher *Dispatcher
	sessions   session.Store
	updateID   int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	api := &fakeTelegram{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := tgbot.New("123:TEST", tgbot.WithServerURL(srv.URL), tgbot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("Failed to create bot: %v", err)
	}

	cfg := &config.Config{
		Telegram: config.TelegramConfig{Token: "123:TEST", Mode: "polling", AdminIDs: []int64{adminChatID}},
		Schedule: config.ScheduleConfig{
			Timezone:        "UTC",
			GranularityMins: 60,
			WorkStart:       "10:00",
			WorkEnd:         "18:00",
			ScheduleDays:    7,
		},
		Reminder: config.ReminderConfig{SweepInterval: time.Minute, Window: 10 * time.Minute, SweepTimeout: time.Second},
	}

	store := testutil.SetupTestDB(t)
	log := logger.NewNop()
	loc := cfg.Location()
	gran := cfg.Granularity()
	auth := booking.AdminList(cfg.Telegram.AdminIDs)
	sessions := session.NewMemoryStore(time.Minute)
	t.Cleanup(sessions.Close)

	svc := service.NewService(service.Deps{
		Bot:      b,
		Storage:  store,
		Manager:  booking.NewManager(store, auth, nil, gran, log),
		Finder:   booking.NewFinder(store, gran, loc),
		Planner:  booking.NewPlanner(store, gran, loc, log),
		Sweeper:  reminder.NewSweeper(store, service.NewNotifier(b), cfg.Reminder.Window, loc, log),
		Sessions: sessions,
		Config:   cfg,
		Auth:     auth,
		Log:      log,
	})

	return &testEnv{
		t:          t,
		store:      store,
		api:        api,
		bot:        b,
		dispatcher: NewDispatcher(svc, nil),
		sessions:   sessions,
	}
}

func (e *testEnv) dispatch(raw string) []apiCall {
	e.t.Helper()
	e.updateID++

	var update models.Update
	if err := json.Unmarshal([]byte(raw), &update); err != nil {
		e.t.Fatalf("Failed to decode update: %v", err)
	}
	update.ID = e.updateID

	e.api.take()
	e.dispatcher.HandleUpdate(context.Background(), e.bot, &update)
	return e.api.take()
}

func (e *testEnv) text(chatID int64, text string) []apiCall {
	return e.dispatch(fmt.Sprintf(
		`{"message":{"message_id":1,"date":1,"chat":{"id":%d,"type":"private"},"from":{"id":%d,"is_bot":false,"first_name":"Анна"},"text":%q}}`,
		chatID, chatID, text))
}

func (e *testEnv) contact(chatID int64, phone string) []apiCall {
	return e.dispatch(fmt.Sprintf(
		`{"message":{"message_id":1,"date":1,"chat":{"id":%d,"type":"private"},"from":{"id":%d,"is_bot":false,"first_name":"Анна"},"contact":{"phone_number":%q,"first_name":"Анна","user_id":%d}}}`,
		chatID, chatID, phone, chatID))
}

func (e *testEnv) press(chatID int64, data string) []apiCall {
	return e.dispatch(fmt.Sprintf(
		`{"callback_query":{"id":"cb","from":{"id":%d,"is_bot":false,"first_name":"Анна"},"message":{"message_id":7,"date":1,"chat":{"id":%d,"type":"private"}},"chat_instance":"x","data":%q}}`,
		chatID, chatID, data))
}

func (e *testEnv) createService(name string, price int64, mins int) *storagemodels.Service {
	e.t.Helper()
	svc := &storagemodels.Service{Name: name, Price: price, DurationMins: mins}
	if err := e.store.CreateService(context.Background(), svc); err != nil {
		e.t.Fatalf("Failed to create service: %v", err)
	}
	return svc
}

// tomorrowAt возвращает завтрашний день в UTC в указанный час
func tomorrowAt(hour int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, hour, 0, 0, 0, time.UTC)
}

func newChatLimiter(t *testing.T, perMinute int) *middleware.RateLimiter {
	t.Helper()
	limiter := middleware.NewRateLimiter(perMinute, time.Minute, logger.NewNop())
	t.Cleanup(limiter.Close)
	return limiter
}

func findCall(calls []apiCall, method, substr string) bool {
	for _, c := range calls {
		if c.method == method && strings.Contains(c.body, substr) {
			return true
		}
	}
	return false
}

func requireCall(t *testing.T, calls []apiCall, method, substr string) {
	t.Helper()
	if !findCall(calls, method, substr) {
		t.Fatalf("Expected %s containing %q, got %+v", method, substr, calls)
	}
}

func TestStartAsksForContact(t *testing.T) {
	env := newTestEnv(t)

	calls := env.text(100, "/start")
	requireCall(t, calls, "sendMessage", "request_contact")
}

func TestStartWithBotSuffix(t *testing.T) {
	env := newTestEnv(t)
	testutil.MustCreateUser(t, env.store, 100, "+79001234567")

	calls := env.text(100, "/start@salon_bot")
	requireCall(t, calls, "sendMessage", "С возвращением")
}

func TestUnknownTextGetsHint(t *testing.T) {
	env := newTestEnv(t)

	calls := env.text(100, "привет")
	requireCall(t, calls, "sendMessage", "/start")
}

func TestBookingFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	manicure := env.createService("Маникюр", 1500, 120)
	slots := testutil.MustCreateSlots(t, env.store, tomorrowAt(10), 3, time.Hour)
	date := tomorrowAt(10).Format("2006-01-02")

	calls := env.contact(100, "79001234567")
	requireCall(t, calls, "sendMessage", "Телефон сохранен")
	requireCall(t, calls, "sendMessage", fmt.Sprintf("svc:%d", manicure.ID))

	user, err := env.store.GetUserByChatID(ctx, 100)
	testutil.AssertNoError(t, err, "user should be registered")
	testutil.AssertEqual(t, "+79001234567", *user.Phone, "phone should be normalized")

	calls = env.press(100, "svc_done")
	requireCall(t, calls, "answerCallbackQuery", "Выберите хотя бы одну услугу")

	env.press(100, fmt.Sprintf("svc:%d", manicure.ID))
	calls = env.press(100, "svc_done")
	requireCall(t, calls, "editMessageText", "date:"+date)

	calls = env.press(100, "date:"+date)
	requireCall(t, calls, "editMessageText", fmt.Sprintf("run:%d", slots[0].ID))
	requireCall(t, calls, "editMessageText", fmt.Sprintf("run:%d", slots[1].ID))
	if findCall(calls, "editMessageText", fmt.Sprintf("run:%d", slots[2].ID)) {
		t.Fatal("Last slot cannot start a two-hour run")
	}

	calls = env.press(100, fmt.Sprintf("run:%d", slots[0].ID))
	requireCall(t, calls, "editMessageText", "confirm")

	calls = env.press(100, "confirm")
	requireCall(t, calls, "editMessageText", "Вы записаны")
	requireCall(t, calls, "sendMessage", "Новая запись")

	bookings, err := env.store.ListUserBookings(ctx, 100, time.Now())
	testutil.AssertNoError(t, err, "list bookings")
	testutil.AssertEqual(t, 1, len(bookings), "one booking expected")
	testutil.AssertEqual(t, int64(1500), bookings[0].TotalPrice, "total price")

	state, err := env.sessions.Get(ctx, 100)
	testutil.AssertNoError(t, err, "get session")
	if state != nil {
		t.Fatalf("Session should be cleared after booking, got %#v", state)
	}
}

func TestBookingConflictReturnsToSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	svc := env.createService("Маникюр", 1000, 60)
	slots := testutil.MustCreateSlots(t, env.store, tomorrowAt(10), 2, time.Hour)
	date := tomorrowAt(10).Format("2006-01-02")
	testutil.MustCreateUser(t, env.store, 100, "+79001234567")
	testutil.MustCreateUser(t, env.store, 200, "+79007654321")

	for _, chatID := range []int64{100, 200} {
		env.text(chatID, "/book")
		env.press(chatID, fmt.Sprintf("svc:%d", svc.ID))
		env.press(chatID, "svc_done")
		env.press(chatID, "date:"+date)
		env.press(chatID, fmt.Sprintf("run:%d", slots[0].ID))
	}

	calls := env.press(100, "confirm")
	requireCall(t, calls, "editMessageText", "Вы записаны")

	calls = env.press(200, "confirm")
	requireCall(t, calls, "editMessageText", "только что заняли")
	requireCall(t, calls, "editMessageText", fmt.Sprintf("run:%d", slots[1].ID))
	requireCall(t, calls, "answerCallbackQuery", "Время уже занято")

	state, err := env.sessions.Get(ctx, 200)
	testutil.AssertNoError(t, err, "get session")
	if _, ok := state.(session.ChoosingSlot); !ok {
		t.Fatalf("Expected ChoosingSlot after conflict, got %#v", state)
	}
}

func TestCancelAndRescheduleFromMyBookings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	svc := env.createService("Маникюр", 1000, 60)
	slots := testutil.MustCreateSlots(t, env.store, tomorrowAt(10), 3, time.Hour)
	date := tomorrowAt(10).Format("2006-01-02")
	testutil.MustCreateUser(t, env.store, 100, "+79001234567")

	env.text(100, "/book")
	env.press(100, fmt.Sprintf("svc:%d", svc.ID))
	env.press(100, "svc_done")
	env.press(100, "date:"+date)
	env.press(100, fmt.Sprintf("run:%d", slots[0].ID))
	env.press(100, "confirm")

	bookings, err := env.store.ListUserBookings(ctx, 100, time.Now())
	testutil.AssertNoError(t, err, "list bookings")
	testutil.AssertEqual(t, 1, len(bookings), "one booking expected")
	bookingID := bookings[0].ID

	calls := env.text(100, "/my")
	requireCall(t, calls, "sendMessage", fmt.Sprintf("cancel_booking:%d", bookingID))

	calls = env.press(100, fmt.Sprintf("reschedule:%d", bookingID))
	requireCall(t, calls, "sendMessage", "date:"+date)

	env.press(100, "date:"+date)
	calls = env.press(100, fmt.Sprintf("run:%d", slots[2].ID))
	requireCall(t, calls, "editMessageText", "Запись перенесена")

	bookings, err = env.store.ListUserBookings(ctx, 100, time.Now())
	testutil.AssertNoError(t, err, "list bookings")
	testutil.AssertEqual(t, 1, len(bookings), "booking should survive reschedule")
	testutil.AssertEqual(t, tomorrowAt(12).Unix(), bookings[0].StartAt.Unix(), "booking should move to 12:00")

	// Чужой клиент не может отменить запись
	testutil.MustCreateUser(t, env.store, 300, "+79005555555")
	calls = env.press(300, fmt.Sprintf("cancel_booking:%d", bookingID))
	requireCall(t, calls, "answerCallbackQuery", "чужая запись")

	calls = env.press(100, fmt.Sprintf("cancel_booking:%d", bookingID))
	requireCall(t, calls, "editMessageText", "отменена")
	requireCall(t, calls, "sendMessage", "Клиент отменил запись")

	bookings, err = env.store.ListUserBookings(ctx, 100, time.Now())
	testutil.AssertNoError(t, err, "list bookings")
	testutil.AssertEqual(t, 0, len(bookings), "booking should be cancelled")
}

func TestStaleCallbackExpiresSession(t *testing.T) {
	env := newTestEnv(t)

	calls := env.press(100, "confirm")
	requireCall(t, calls, "editMessageText", "Сессия устарела")
	requireCall(t, calls, "answerCallbackQuery", "Сессия устарела")
}

func TestAdminCommands(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	calls := env.text(100, "/stats")
	requireCall(t, calls, "sendMessage", "только администратору")

	calls = env.text(adminChatID, "/addservice Френч дизайн 1500 90")
	requireCall(t, calls, "sendMessage", "Френч дизайн")

	services, err := env.store.ListServices(ctx)
	testutil.AssertNoError(t, err, "list services")
	testutil.AssertEqual(t, 1, len(services), "service should be created")
	testutil.AssertEqual(t, int64(1500), services[0].Price, "price")
	testutil.AssertEqual(t, 90, services[0].DurationMins, "duration")

	calls = env.text(adminChatID, "/setprice Френч дизайн 1700")
	requireCall(t, calls, "sendMessage", "1700")

	calls = env.text(adminChatID, "/addslot "+tomorrowAt(10).Format("2006-01-02")+" 10:00")
	requireCall(t, calls, "sendMessage", "добавлен")

	calls = env.text(adminChatID, "/delslot abc")
	requireCall(t, calls, "sendMessage", "⚠️")

	calls = env.text(adminChatID, "/genslots")
	requireCall(t, calls, "sendMessage", "Создано слотов")

	calls = env.text(adminChatID, "/clearold maybe")
	requireCall(t, calls, "sendMessage", "/clearold [all]")

	calls = env.text(adminChatID, "/help")
	requireCall(t, calls, "sendMessage", "/addslot")
}

func TestChatRateLimit(t *testing.T) {
	env := newTestEnv(t)
	limiter := newChatLimiter(t, 1)
	env.dispatcher.limiter = limiter

	calls := env.text(100, "привет")
	requireCall(t, calls, "sendMessage", "/start")

	calls = env.press(100, "confirm")
	requireCall(t, calls, "answerCallbackQuery", "Слишком много")
	if findCall(calls, "editMessageText", "") {
		t.Fatal("Rate limited callback should not be handled")
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		text string
		cmd  string
		args string
	}{
		{"/start", "/start", ""},
		{"/start@salon_bot", "/start", ""},
		{"/addslot 2025-03-05 10:00", "/addslot", "2025-03-05 10:00"},
		{"/Stats@salon_bot  ", "/stats", ""},
		{"📅 Записаться", "", "📅 Записаться"},
	}

	for _, tt := range tests {
		cmd, args := splitCommand(tt.text)
		testutil.AssertEqual(t, tt.cmd, cmd, "command of "+tt.text)
		testutil.AssertEqual(t, tt.args, args, "args of "+tt.text)
	}
}
