package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/region23/salonbot/internal/storage"
	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

var _ storage.Tx = (*sqliteTx)(nil)

// sqliteTx выполняет операции записи внутри одной транзакции
type sqliteTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *sqliteTx) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return getUserByID(ctx, t.tx, id)
}

// GetSlotsByIDs возвращает найденные слоты по возрастанию времени.
// Отсутствующие ID просто не попадают в результат.
func (t *sqliteTx) GetSlotsByIDs(ctx context.Context, ids []int64) ([]*models.TimeSlot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := placeholders(ids)
	query := `SELECT ` + slotColumns + ` FROM timeslots WHERE id IN (` + marks + `) ORDER BY start_at`
	return querySlots(ctx, t.tx, query, args...)
}

func (t *sqliteTx) OccupySlots(ctx context.Context, ids []int64, ownerID int64) error {
	if len(ids) == 0 {
		return nil
	}
	marks, args := placeholders(ids)
	query := `UPDATE timeslots SET occupied = 1, owner_id = ? WHERE occupied = 0 AND id IN (` + marks + `)`

	result, err := t.tx.ExecContext(ctx, query, append([]interface{}{ownerID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to occupy slots: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows != int64(len(uniqueIDs(ids))) {
		return apperrors.ErrSlotOccupied
	}
	return nil
}

func (t *sqliteTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = t.now().UTC().Truncate(time.Second)
	}

	query := `INSERT INTO bookings (user_id, first_slot_id, total_price, created_at) VALUES (?, ?, ?, ?)`
	result, err := t.tx.ExecContext(ctx, query, b.UserID, b.FirstSlotID, b.TotalPrice, formatTime(b.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrSlotOccupied.WithError(err)
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get booking ID: %w", err)
	}
	b.ID = id

	return nil
}

func (t *sqliteTx) GetBookingForUpdate(ctx context.Context, id int64) (*models.BookingDetails, error) {
	return getBookingDetails(ctx, t.tx, id)
}

// ListOwnedSlotsFrom возвращает слоты владельца начиная с from по возрастанию времени
func (t *sqliteTx) ListOwnedSlotsFrom(ctx context.Context, ownerID int64, from time.Time) ([]*models.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM timeslots WHERE owner_id = ? AND start_at >= ? ORDER BY start_at`
	return querySlots(ctx, t.tx, query, ownerID, formatTime(from))
}

// BookingFirstSlots сопоставляет слоты, являющиеся первыми слотами записей, с ID этих записей
func (t *sqliteTx) BookingFirstSlots(ctx context.Context, slotIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64)
	if len(slotIDs) == 0 {
		return result, nil
	}

	marks, args := placeholders(slotIDs)
	rows, err := t.tx.QueryContext(ctx, `SELECT first_slot_id, id FROM bookings WHERE first_slot_id IN (`+marks+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query booking heads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slotID, bookingID int64
		if err := rows.Scan(&slotID, &bookingID); err != nil {
			return nil, fmt.Errorf("failed to scan booking head: %w", err)
		}
		result[slotID] = bookingID
	}

	return result, rows.Err()
}

func (t *sqliteTx) ReleaseSlots(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	marks, args := placeholders(ids)
	if _, err := t.tx.ExecContext(ctx, `UPDATE timeslots SET occupied = 0, owner_id = NULL WHERE id IN (`+marks+`)`, args...); err != nil {
		return fmt.Errorf("failed to release slots: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteBooking(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
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

func (t *sqliteTx) SetConfirmed(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx, `UPDATE bookings SET confirmed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
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

// MoveBooking переносит запись на новый первый слот и сбрасывает флаги напоминаний и подтверждения
func (t *sqliteTx) MoveBooking(ctx context.Context, id, firstSlotID int64) error {
	query := `UPDATE bookings SET first_slot_id = ?,
		reminded_24h = 0, reminded_12h = 0, reminded_1h = 0, confirmed = 0
		WHERE id = ?`
	result, err := t.tx.ExecContext(ctx, query, firstSlotID, id)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrSlotOccupied.WithError(err)
		}
		return fmt.Errorf("failed to move booking: %w", err)
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
