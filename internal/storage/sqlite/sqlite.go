package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/region23/salonbot/internal/storage"
	apperrors "github.com/region23/salonbot/pkg/errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout хранит моменты времени в UTC; строки в этом формате сравниваются лексикографически
const timeLayout = "2006-01-02 15:04:05"

var _ storage.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage реализует интерфейс Storage для SQLite
type SQLiteStorage struct {
	db          *sql.DB
	busyTimeout time.Duration
	txTimeout   time.Duration
	now         func() time.Time
}

// Option настраивает хранилище
type Option func(*SQLiteStorage)

// WithBusyTimeout задает, сколько SQLite ждет снятия блокировки
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteStorage) { s.busyTimeout = d }
}

// WithTxTimeout ограничивает длительность транзакции записи
func WithTxTimeout(d time.Duration) Option {
	return func(s *SQLiteStorage) { s.txTimeout = d }
}

// WithClock подменяет источник времени для created_at
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStorage) { s.now = now }
}

// New создает новое подключение к SQLite базе данных
func New(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	s := &SQLiteStorage{
		busyTimeout: 5 * time.Second,
		txTimeout:   5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	memory := dbPath == ":memory:"
	db, err := sql.Open("sqlite", s.dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Один writer: конкурирующие транзакции выстраиваются в очередь за соединением
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if memory {
		// in-memory база живет, пока живет соединение
		db.SetConnMaxLifetime(0)
	} else {
		db.SetConnMaxLifetime(time.Hour)
	}

	s.db = db

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

// dsn собирает строку подключения. Для файловой базы транзакции открываются
// как BEGIN IMMEDIATE, чтобы блокировка на запись бралась сразу.
func (s *SQLiteStorage) dsn(dbPath string) string {
	if dbPath == ":memory:" {
		return dbPath
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", s.busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")

	path := dbPath
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	if strings.Contains(path, "?") {
		return path + "&" + q.Encode()
	}
	return path + "?" + q.Encode()
}

// migrate выполняет миграции базы данных
func (s *SQLiteStorage) migrate() error {
	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA foreign_keys=ON`,
		fmt.Sprintf(`PRAGMA busy_timeout=%d`, s.busyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			name_key TEXT NOT NULL UNIQUE,
			price INTEGER NOT NULL CHECK (price >= 0),
			duration_minutes INTEGER NOT NULL DEFAULT 60 CHECK (duration_minutes > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS timeslots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_at TEXT NOT NULL UNIQUE,
			occupied INTEGER NOT NULL DEFAULT 0,
			owner_id INTEGER REFERENCES users(id),
			CHECK ((occupied = 0 AND owner_id IS NULL) OR (occupied = 1 AND owner_id IS NOT NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			first_slot_id INTEGER NOT NULL UNIQUE REFERENCES timeslots(id),
			total_price INTEGER NOT NULL CHECK (total_price >= 0),
			created_at TEXT NOT NULL,
			reminded_24h INTEGER NOT NULL DEFAULT 0,
			reminded_12h INTEGER NOT NULL DEFAULT 0,
			reminded_1h INTEGER NOT NULL DEFAULT 0,
			confirmed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timeslots_owner ON timeslots(owner_id, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Close закрывает подключение к базе данных
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping проверяет подключение к базе данных
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx выполняет fn в транзакции с ограничением по времени. Ошибки блокировок
// и истечение таймаута превращаются в ErrConflict после отката.
func (s *SQLiteStorage) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqliteTx{tx: tx, now: s.now})
	})
}

func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapTxError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return mapTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapTxError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	committed = true

	return nil
}

// mapTxError оставляет доменные ошибки как есть, а занятость базы считает конфликтом
func mapTxError(err error) error {
	if apperrors.IsBotError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isBusy(err) {
		return apperrors.ErrConflict.WithMessage("база данных занята, попробуйте еще раз").WithError(err)
	}
	return err
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

func isBusy(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	primary := code & 0xff
	return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
}

func isUniqueViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && (code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func isForeignKeyViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}

// placeholders возвращает "?, ?, ?" и аргументы для IN (...)
func placeholders(ids []int64) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	marks := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		marks[i] = "?"
	}
	return strings.Join(marks, ", "), args
}

// querier позволяет использовать одни и те же запросы с *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
