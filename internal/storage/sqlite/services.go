package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

var errServiceNotFound = apperrors.ErrNotFound.WithMessage("услуга не найдена")

// CreateService добавляет услугу в прайс
func (s *SQLiteStorage) CreateService(ctx context.Context, svc *models.Service) error {
	query := `INSERT INTO services (name, name_key, price, duration_minutes) VALUES (?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query, svc.Name, nameKey(svc.Name), svc.Price, svc.DurationMins)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict.WithMessage("услуга с таким названием уже есть").WithError(err)
		}
		return fmt.Errorf("failed to create service: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get service ID: %w", err)
	}
	svc.ID = id

	return nil
}

// ListServices возвращает прайс в порядке добавления
func (s *SQLiteStorage) ListServices(ctx context.Context) ([]*models.Service, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price, duration_minutes FROM services ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Price, &svc.DurationMins); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, &svc)
	}

	return services, rows.Err()
}

// GetServicesByIDs возвращает выбранные услуги. Отсутствующая услуга дает NotFound.
func (s *SQLiteStorage) GetServicesByIDs(ctx context.Context, ids []int64) ([]*models.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	marks, args := placeholders(ids)
	query := `SELECT id, name, price, duration_minutes FROM services WHERE id IN (` + marks + `) ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Price, &svc.DurationMins); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, &svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(services) != len(uniqueIDs(ids)) {
		return nil, errServiceNotFound
	}

	return services, nil
}

// UpdateServicePrice меняет цену услуги по названию
func (s *SQLiteStorage) UpdateServicePrice(ctx context.Context, name string, price int64) error {
	return s.updateService(ctx, `UPDATE services SET price = ? WHERE name_key = ?`, price, nameKey(name))
}

// UpdateServiceDuration меняет длительность услуги по названию
func (s *SQLiteStorage) UpdateServiceDuration(ctx context.Context, name string, mins int) error {
	return s.updateService(ctx, `UPDATE services SET duration_minutes = ? WHERE name_key = ?`, mins, nameKey(name))
}

// DeleteService удаляет услугу по названию
func (s *SQLiteStorage) DeleteService(ctx context.Context, name string) error {
	return s.updateService(ctx, `DELETE FROM services WHERE name_key = ?`, nameKey(name))
}

func (s *SQLiteStorage) updateService(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return errServiceNotFound
	}

	return nil
}

// SeedServices заполняет прайс значениями по умолчанию, если он пуст
func (s *SQLiteStorage) SeedServices(ctx context.Context, defaults []models.Service) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count services: %w", err)
	}
	if count > 0 {
		return nil
	}

	for i := range defaults {
		svc := defaults[i]
		if err := s.CreateService(ctx, &svc); err != nil {
			return err
		}
	}

	return nil
}

func uniqueIDs(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// nameKey нормализует название услуги: NOCASE в SQLite не знает кириллицу
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
