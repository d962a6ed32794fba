package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

const userColumns = `id, chat_id, name, phone, created_at`

// SaveUser создает пользователя или обновляет имя. Телефон перезаписывается,
// только если передан.
func (s *SQLiteStorage) SaveUser(ctx context.Context, chatID int64, name string, phone *string) (*models.User, error) {
	query := `
		INSERT INTO users (chat_id, name, phone, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END,
			phone = COALESCE(excluded.phone, users.phone)
	`

	var phoneArg interface{}
	if phone != nil {
		phoneArg = *phone
	}

	if _, err := s.db.ExecContext(ctx, query, chatID, name, phoneArg, formatTime(s.now())); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	return s.GetUserByChatID(ctx, chatID)
}

// GetUserByChatID получает пользователя по chat id
func (s *SQLiteStorage) GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE chat_id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, chatID))
}

func getUserByID(ctx context.Context, q querier, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(q.QueryRowContext(ctx, query, id))
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		user      models.User
		phone     sql.NullString
		createdAt string
	)

	err := row.Scan(&user.ID, &user.ChatID, &user.Name, &phone, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if phone.Valid {
		p := phone.String
		user.Phone = &p
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &user, nil
}
