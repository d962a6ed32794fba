package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики бота записи
var (
	// Общие метрики
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salonbot_requests_total",
			Help: "Общее количество обработанных обновлений Telegram",
		},
		[]string{"handler", "status"},
	)

	UserRegistrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "salonbot_user_registrations_total",
			Help: "Общее количество регистраций пользователей",
		},
	)

	// Метрики записей
	BookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salonbot_booking_operations_total",
			Help: "Операции над записями по типу и результату",
		},
		[]string{"operation", "result"}, // reserve|release|reschedule|confirm, ok|conflict|not_found|...
	)

	BookingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "salonbot_booking_operation_duration_seconds",
			Help:    "Длительность транзакций записи/отмены",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Метрики слотов
	SlotsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "salonbot_slots_created_total",
			Help: "Общее количество созданных слотов",
		},
	)

	SlotsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "salonbot_slots_cleaned_total",
			Help: "Количество удаленных прошедших слотов",
		},
	)

	// Метрики напоминаний
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salonbot_reminders_total",
			Help: "Напоминания по этапу и результату доставки",
		},
		[]string{"stage", "status"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salonbot_reminder_sweep_duration_seconds",
			Help:    "Длительность одного прохода напоминаний",
			Buckets: prometheus.DefBuckets,
		},
	)

	LastSweepTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salonbot_reminder_last_sweep_timestamp_seconds",
			Help: "Unix-время последнего прохода напоминаний",
		},
	)

	// Метрики базы данных
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salonbot_database_operations_total",
			Help: "Общее количество операций с базой данных",
		},
		[]string{"operation", "table", "status"},
	)

	// Метрики событий
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salonbot_events_published_total",
			Help: "Опубликованные доменные события",
		},
		[]string{"type", "status"},
	)

	// Метрики производительности
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salonbot_memory_usage_bytes",
			Help: "Использование памяти в байтах",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salonbot_goroutines_count",
			Help: "Количество активных горутин",
		},
	)

	// Метрики ошибок
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salonbot_errors_total",
			Help: "Общее количество ошибок",
		},
		[]string{"component", "error_type"},
	)

	// Метрики HTTP сервера
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salonbot_http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "salonbot_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRequest записывает метрику обработки обновления
func RecordRequest(handler, status string) {
	RequestsTotal.WithLabelValues(handler, status).Inc()
}

// RecordUserRegistration записывает метрику регистрации пользователя
func RecordUserRegistration() {
	UserRegistrations.Inc()
}

// RecordBookingOperation записывает результат операции над записью
func RecordBookingOperation(operation, result string, seconds float64) {
	BookingOperations.WithLabelValues(operation, result).Inc()
	BookingDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordSlotsCreated записывает метрику создания слотов
func RecordSlotsCreated(n int) {
	SlotsCreated.Add(float64(n))
}

// RecordSlotsCleaned записывает метрику очистки слотов
func RecordSlotsCleaned(n int64) {
	SlotsCleaned.Add(float64(n))
}

// RecordReminder записывает метрику отправки напоминания
func RecordReminder(stage, status string) {
	RemindersSent.WithLabelValues(stage, status).Inc()
}

// RecordSweep записывает длительность и время прохода напоминаний
func RecordSweep(seconds float64, unix int64) {
	SweepDuration.Observe(seconds)
	LastSweepTimestamp.Set(float64(unix))
}

// RecordDatabaseOperation записывает метрику операции с БД
func RecordDatabaseOperation(operation, table, status string) {
	DatabaseOperations.WithLabelValues(operation, table, status).Inc()
}

// RecordEvent записывает метрику публикации события
func RecordEvent(eventType, status string) {
	EventsPublished.WithLabelValues(eventType, status).Inc()
}

// RecordError записывает метрику ошибки
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest записывает метрику HTTP запроса
func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}
