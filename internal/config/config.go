package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Schedule ScheduleConfig `json:"schedule"`
	Reminder ReminderConfig `json:"reminder"`
	Redis    RedisConfig    `json:"redis"`
	AMQP     AMQPConfig     `json:"amqp"`
	Log      LogConfig      `json:"log"`
}

// TelegramConfig содержит настройки Telegram бота
type TelegramConfig struct {
	Token         string  `json:"token"`
	Mode          string  `json:"mode"` // webhook | polling
	WebhookURL    string  `json:"webhook_url"`
	WebhookSecret string  `json:"-"`
	AdminIDs      []int64 `json:"admin_ids"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	RequestsPerMin  int           `json:"requests_per_min"`
	UpdatesPerMin   int           `json:"updates_per_min"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DatabaseConfig содержит настройки базы данных
type DatabaseConfig struct {
	Path        string        `json:"path"`
	BusyTimeout time.Duration `json:"busy_timeout"`
	TxTimeout   time.Duration `json:"tx_timeout"`
}

// ScheduleConfig содержит настройки расписания
type ScheduleConfig struct {
	Timezone          string `json:"timezone"`
	GranularityMins   int    `json:"granularity_mins"`
	WorkStart         string `json:"work_start"`
	WorkEnd           string `json:"work_end"`
	ScheduleDays      int    `json:"schedule_days"`
	CleanupCron       string `json:"cleanup_cron"`
	CleanupAfterHours int    `json:"cleanup_after_hours"`
	SeedServices      bool   `json:"seed_services"`
}

// ReminderConfig содержит настройки напоминаний
type ReminderConfig struct {
	SweepInterval time.Duration `json:"sweep_interval"`
	Window        time.Duration `json:"window"`
	SweepTimeout  time.Duration `json:"sweep_timeout"`
}

// RedisConfig содержит настройки хранилища сессий. Пустой Addr означает память процесса.
type RedisConfig struct {
	Addr       string        `json:"addr"`
	Password   string        `json:"-"`
	DB         int           `json:"db"`
	SessionTTL time.Duration `json:"session_ttl"`
}

// AMQPConfig содержит настройки публикации событий. Пустой URL отключает публикацию.
type AMQPConfig struct {
	URL         string `json:"-"`
	QueuePrefix string `json:"queue_prefix"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Location возвращает часовой пояс расписания. Validate гарантирует, что он загружается.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Granularity возвращает шаг слотов
func (c *Config) Granularity() time.Duration {
	return time.Duration(c.Schedule.GranularityMins) * time.Minute
}

// IsAdmin проверяет, входит ли chat id в список администраторов
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// Load загружает конфигурацию из .env и переменных окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	return FromEnv()
}

// FromEnv собирает конфигурацию только из переменных окружения
func FromEnv() (*Config, error) {
	adminIDs, err := getEnvAsInt64List("ADMIN_IDS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:         os.Getenv("TELEGRAM_TOKEN"),
			Mode:          getEnv("TELEGRAM_MODE", "webhook"),
			WebhookURL:    os.Getenv("WEBHOOK_URL"),
			WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
			AdminIDs:      adminIDs,
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			RequestsPerMin:  getEnvAsInt("HTTP_REQUESTS_PER_MIN", 300),
			UpdatesPerMin:   getEnvAsInt("TELEGRAM_UPDATES_PER_MIN", 30),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Path:        getEnv("DB_FILE", "salon.db"),
			BusyTimeout: getEnvAsDuration("DB_BUSY_TIMEOUT", 5*time.Second),
			TxTimeout:   getEnvAsDuration("DB_TX_TIMEOUT", 5*time.Second),
		},
		Schedule: ScheduleConfig{
			Timezone:          getEnv("TIMEZONE", "Europe/Moscow"),
			GranularityMins:   getEnvAsInt("SLOT_GRANULARITY_MINS", 60),
			WorkStart:         getEnv("WORK_START", "10:00"),
			WorkEnd:           getEnv("WORK_END", "20:00"),
			ScheduleDays:      getEnvAsInt("SCHEDULE_DAYS", 14),
			CleanupCron:       getEnv("CLEANUP_CRON", "0 30 3 * * *"),
			CleanupAfterHours: getEnvAsInt("CLEANUP_AFTER_HOURS", 24),
			SeedServices:      getEnvAsBool("SEED_SERVICES", true),
		},
		Reminder: ReminderConfig{
			SweepInterval: getEnvAsDuration("REMINDER_SWEEP_INTERVAL", 5*time.Minute),
			Window:        getEnvAsDuration("REMINDER_WINDOW", 10*time.Minute),
			SweepTimeout:  getEnvAsDuration("REMINDER_SWEEP_TIMEOUT", 2*time.Minute),
		},
		Redis: RedisConfig{
			Addr:       os.Getenv("REDIS_ADDR"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getEnvAsInt("REDIS_DB", 0),
			SessionTTL: getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		},
		AMQP: AMQPConfig{
			URL:         os.Getenv("AMQP_URL"),
			QueuePrefix: getEnv("AMQP_QUEUE_PREFIX", "salonbot"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	switch c.Telegram.Mode {
	case "webhook":
		if c.Telegram.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required in webhook mode")
		}
	case "polling":
	default:
		return fmt.Errorf("TELEGRAM_MODE must be webhook or polling, got %q", c.Telegram.Mode)
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	// Валидация времени работы
	start, err := time.Parse("15:04", c.Schedule.WorkStart)
	if err != nil {
		return fmt.Errorf("invalid WORK_START format (expected HH:MM): %w", err)
	}
	end, err := time.Parse("15:04", c.Schedule.WorkEnd)
	if err != nil {
		return fmt.Errorf("invalid WORK_END format (expected HH:MM): %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("WORK_START must be before WORK_END")
	}

	if c.Schedule.GranularityMins <= 0 {
		return fmt.Errorf("SLOT_GRANULARITY_MINS must be positive")
	}
	if c.Schedule.ScheduleDays <= 0 {
		return fmt.Errorf("SCHEDULE_DAYS must be positive")
	}
	if c.Schedule.CleanupAfterHours < 0 {
		return fmt.Errorf("CLEANUP_AFTER_HOURS must be non-negative")
	}

	// Проход реже ширины окна пропускает напоминания целиком
	if c.Reminder.Window <= 0 {
		return fmt.Errorf("REMINDER_WINDOW must be positive")
	}
	if c.Reminder.SweepInterval <= 0 || c.Reminder.SweepInterval >= c.Reminder.Window {
		return fmt.Errorf("REMINDER_SWEEP_INTERVAL (%s) must be positive and shorter than REMINDER_WINDOW (%s)",
			c.Reminder.SweepInterval, c.Reminder.Window)
	}

	if c.Database.TxTimeout <= 0 {
		return fmt.Errorf("DB_TX_TIMEOUT must be positive")
	}

	return nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAsInt получает переменную окружения как число
func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvAsBool получает переменную окружения как bool
func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvAsDuration получает переменную окружения как duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvAsInt64List разбирает список id через запятую
func getEnvAsInt64List(key string) ([]int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
