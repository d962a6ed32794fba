package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

const bookingDetailsQuery = `
	SELECT b.id, b.user_id, b.first_slot_id, b.total_price, b.created_at,
		b.reminded_24h, b.reminded_12h, b.reminded_1h, b.confirmed,
		u.chat_id, u.name, COALESCE(u.phone, ''), t.start_at
	FROM bookings b
	JOIN users u ON u.id = b.user_id
	JOIN timeslots t ON t.id = b.first_slot_id`

func scanBookingDetails(row rowScanner) (*models.BookingDetails, error) {
	var (
		d                       models.BookingDetails
		createdAt, startAt      string
		r24, r12, r1, confirmed int64
	)

	err := row.Scan(&d.ID, &d.UserID, &d.FirstSlotID, &d.TotalPrice, &createdAt,
		&r24, &r12, &r1, &confirmed,
		&d.UserChatID, &d.UserName, &d.UserPhone, &startAt)
	if err != nil {
		return nil, err
	}

	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if d.StartAt, err = parseTime(startAt); err != nil {
		return nil, err
	}
	d.Reminded24h = r24 != 0
	d.Reminded12h = r12 != 0
	d.Reminded1h = r1 != 0
	d.Confirmed = confirmed != 0

	return &d, nil
}

func getBookingDetails(ctx context.Context, q querier, id int64) (*models.BookingDetails, error) {
	d, err := scanBookingDetails(q.QueryRowContext(ctx, bookingDetailsQuery+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return d, nil
}

func queryBookingDetails(ctx context.Context, q querier, query string, args ...interface{}) ([]*models.BookingDetails, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.BookingDetails
	for rows.Next() {
		d, err := scanBookingDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, d)
	}

	return bookings, rows.Err()
}

// GetBookingDetails получает запись вместе с клиентом и временем начала
func (s *SQLiteStorage) GetBookingDetails(ctx context.Context, id int64) (*models.BookingDetails, error) {
	return getBookingDetails(ctx, s.db, id)
}

// ListUserBookings возвращает записи клиента, начинающиеся не раньше from
func (s *SQLiteStorage) ListUserBookings(ctx context.Context, chatID int64, from time.Time) ([]*models.BookingDetails, error) {
	query := bookingDetailsQuery + ` WHERE u.chat_id = ? AND t.start_at >= ? ORDER BY t.start_at`
	return queryBookingDetails(ctx, s.db, query, chatID, formatTime(from))
}

// ListBookings возвращает ближайшие записи всех клиентов
func (s *SQLiteStorage) ListBookings(ctx context.Context, from time.Time, limit int) ([]*models.BookingDetails, error) {
	if limit <= 0 {
		limit = 50
	}
	query := bookingDetailsQuery + ` WHERE t.start_at >= ? ORDER BY t.start_at LIMIT ?`
	return queryBookingDetails(ctx, s.db, query, formatTime(from), limit)
}

// ListPendingReminders возвращает записи с началом в [from, to), по которым флаг еще не выставлен
func (s *SQLiteStorage) ListPendingReminders(ctx context.Context, flag models.ReminderFlag, from, to time.Time) ([]*models.BookingDetails, error) {
	if !flag.Valid() {
		return nil, apperrors.Validation("неизвестный флаг напоминания %q", flag)
	}

	query := bookingDetailsQuery + ` WHERE b.` + string(flag) + ` = 0 AND t.start_at >= ? AND t.start_at < ? ORDER BY t.start_at`
	return queryBookingDetails(ctx, s.db, query, formatTime(from), formatTime(to))
}

// MarkReminded выставляет флаг напоминания. Флаг никогда не сбрасывается этим методом.
func (s *SQLiteStorage) MarkReminded(ctx context.Context, bookingID int64, flag models.ReminderFlag) error {
	if !flag.Valid() {
		return apperrors.Validation("неизвестный флаг напоминания %q", flag)
	}

	result, err := s.db.ExecContext(ctx, `UPDATE bookings SET `+string(flag)+` = 1 WHERE id = ?`, bookingID)
	if err != nil {
		return fmt.Errorf("failed to mark reminder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrBookingNotFound
	}

	return nil
}

const topClientsLimit = 5

// Stats собирает сводку для администратора. Дни недели считаются
// в часовом поясе now.
func (s *SQLiteStorage) Stats(ctx context.Context, now time.Time) (*models.Stats, error) {
	var st models.Stats
	current := formatTime(now)
	monthAgo := formatTime(now.AddDate(0, 0, -30))

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN t.start_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.start_at >= ? AND t.start_at < ? THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT b.user_id),
			COALESCE(SUM(b.total_price), 0),
			COALESCE(SUM(CASE WHEN t.start_at >= ? AND t.start_at < ? THEN b.total_price ELSE 0 END), 0)
		FROM bookings b
		JOIN timeslots t ON t.id = b.first_slot_id`

	err := s.db.QueryRowContext(ctx, query, current, monthAgo, current, monthAgo, current).Scan(
		&st.TotalBookings, &st.UpcomingBookings, &st.Bookings30d, &st.Clients, &st.Revenue, &st.Revenue30d)
	if err != nil {
		return nil, fmt.Errorf("failed to collect booking stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM timeslots WHERE occupied = 0 AND start_at >= ?`, current).Scan(&st.FreeSlots)
	if err != nil {
		return nil, fmt.Errorf("failed to count free slots: %w", err)
	}

	if err := s.weekdayStats(ctx, now.Location(), &st); err != nil {
		return nil, err
	}
	if err := s.topClients(ctx, &st); err != nil {
		return nil, err
	}

	return &st, nil
}

func (s *SQLiteStorage) weekdayStats(ctx context.Context, loc *time.Location, st *models.Stats) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.start_at, b.total_price
		FROM bookings b
		JOIN timeslots t ON t.id = b.first_slot_id`)
	if err != nil {
		return fmt.Errorf("failed to query weekday stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			startAt string
			price   int64
		)
		if err := rows.Scan(&startAt, &price); err != nil {
			return fmt.Errorf("failed to scan weekday stats: %w", err)
		}
		at, err := parseTime(startAt)
		if err != nil {
			return err
		}
		day := &st.Weekdays[at.In(loc).Weekday()]
		day.Bookings++
		day.Revenue += price
	}

	return rows.Err()
}

func (s *SQLiteStorage) topClients(ctx context.Context, st *models.Stats) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.name, COUNT(*) AS visits, SUM(b.total_price) AS spent
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		GROUP BY u.id
		ORDER BY visits DESC, spent DESC, u.id
		LIMIT ?`, topClientsLimit)
	if err != nil {
		return fmt.Errorf("failed to query top clients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.ClientStat
		if err := rows.Scan(&c.Name, &c.Visits, &c.Spent); err != nil {
			return fmt.Errorf("failed to scan top client: %w", err)
		}
		st.TopClients = append(st.TopClients, c)
	}

	return rows.Err()
}
