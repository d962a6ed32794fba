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

const slotColumns = `id, start_at, occupied, owner_id`

var errSlotNotFound = apperrors.ErrNotFound.WithMessage("слот не найден")

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(row rowScanner) (*models.TimeSlot, error) {
	var (
		slot     models.TimeSlot
		startAt  string
		occupied int64
		owner    sql.NullInt64
	)

	if err := row.Scan(&slot.ID, &startAt, &occupied, &owner); err != nil {
		return nil, err
	}

	var err error
	if slot.StartAt, err = parseTime(startAt); err != nil {
		return nil, err
	}
	slot.Occupied = occupied != 0
	if owner.Valid {
		id := owner.Int64
		slot.OwnerID = &id
	}

	return &slot, nil
}

func querySlots(ctx context.Context, q querier, query string, args ...interface{}) ([]*models.TimeSlot, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []*models.TimeSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// CreateSlot создает слот. Повтор по времени начала дает ErrConflict.
func (s *SQLiteStorage) CreateSlot(ctx context.Context, startAt time.Time) (*models.TimeSlot, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO timeslots (start_at, occupied) VALUES (?, 0)`, formatTime(startAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrConflict.WithMessage("слот на это время уже существует").WithError(err)
		}
		return nil, fmt.Errorf("failed to create slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get slot ID: %w", err)
	}

	return &models.TimeSlot{ID: id, StartAt: startAt.UTC().Truncate(time.Second)}, nil
}

// CreateSlots создает слоты пачкой и пропускает уже существующие.
// Возвращает число созданных слотов.
func (s *SQLiteStorage) CreateSlots(ctx context.Context, starts []time.Time) (int, error) {
	if len(starts) == 0 {
		return 0, nil
	}

	created := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, start := range starts {
			result, err := tx.ExecContext(ctx,
				`INSERT INTO timeslots (start_at, occupied) VALUES (?, 0) ON CONFLICT(start_at) DO NOTHING`,
				formatTime(start))
			if err != nil {
				return fmt.Errorf("failed to create slot: %w", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get affected rows: %w", err)
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return created, nil
}

// ListSlots возвращает слоты в полуинтервале [from, to) по возрастанию времени
func (s *SQLiteStorage) ListSlots(ctx context.Context, from, to time.Time, onlyFree bool) ([]*models.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM timeslots WHERE start_at >= ? AND start_at < ?`
	if onlyFree {
		query += ` AND occupied = 0`
	}
	query += ` ORDER BY start_at`

	return querySlots(ctx, s.db, query, formatTime(from), formatTime(to))
}

// GetSlotByID получает слот по ID
func (s *SQLiteStorage) GetSlotByID(ctx context.Context, id int64) (*models.TimeSlot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM timeslots WHERE id = ?`, id)
	slot, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// DeleteSlot удаляет свободный слот. Занятый слот удалить нельзя.
func (s *SQLiteStorage) DeleteSlot(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var occupied int64
		err := tx.QueryRowContext(ctx, `SELECT occupied FROM timeslots WHERE id = ?`, id).Scan(&occupied)
		if errors.Is(err, sql.ErrNoRows) {
			return errSlotNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get slot: %w", err)
		}
		if occupied != 0 {
			return apperrors.ErrSlotOccupied.WithMessage("слот занят записью, сначала отмените ее")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM timeslots WHERE id = ?`, id); err != nil {
			if isForeignKeyViolation(err) {
				return apperrors.ErrSlotOccupied.WithError(err)
			}
			return fmt.Errorf("failed to delete slot: %w", err)
		}
		return nil
	})
}

// DeleteSlotsBefore удаляет свободные слоты, начавшиеся раньше cutoff.
// С includeBooked сначала отменяет записи, начавшиеся раньше cutoff: вся серия
// каждой записи (шаг step) освобождается, сама запись удаляется. Хвост серии
// после cutoff остается в расписании свободным.
func (s *SQLiteStorage) DeleteSlotsBefore(ctx context.Context, cutoff time.Time, step time.Duration, includeBooked bool) (int64, int64, error) {
	var slots, bookings int64
	border := formatTime(cutoff)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if includeBooked {
			n, err := releaseBookingsBefore(ctx, &sqliteTx{tx: tx, now: s.now}, border, step)
			if err != nil {
				return err
			}
			bookings = n
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM timeslots WHERE start_at < ? AND occupied = 0`, border)
		if err != nil {
			return fmt.Errorf("failed to delete old slots: %w", err)
		}
		slots, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, 0, err
	}

	return slots, bookings, nil
}

// releaseBookingsBefore освобождает серии и удаляет записи, начавшиеся раньше border
func releaseBookingsBefore(ctx context.Context, t *sqliteTx, border string, step time.Duration) (int64, error) {
	old, err := queryBookingDetails(ctx, t.tx, bookingDetailsQuery+` WHERE t.start_at < ? ORDER BY t.start_at`, border)
	if err != nil {
		return 0, err
	}

	for _, b := range old {
		owned, err := t.ListOwnedSlotsFrom(ctx, b.UserID, b.StartAt)
		if err != nil {
			return 0, err
		}
		ids := make([]int64, len(owned))
		for i, slot := range owned {
			ids[i] = slot.ID
		}
		heads, err := t.BookingFirstSlots(ctx, ids)
		if err != nil {
			return 0, err
		}

		if err := t.ReleaseSlots(ctx, models.BookingRun(owned, heads, b.ID, b.StartAt, step)); err != nil {
			return 0, err
		}
		if err := t.DeleteBooking(ctx, b.ID); err != nil {
			return 0, err
		}
	}

	return int64(len(old)), nil
}
