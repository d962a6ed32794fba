package booking

import (
	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

// Quote суммирует выбранные услуги
type Quote struct {
	Services     []*models.Service
	DurationMins int
	TotalPrice   int64
}

// NewQuote считает общую длительность и стоимость
func NewQuote(services []*models.Service) (Quote, error) {
	if len(services) == 0 {
		return Quote{}, apperrors.Validation("выберите хотя бы одну услугу")
	}

	q := Quote{Services: services}
	for _, svc := range services {
		if svc.DurationMins <= 0 {
			return Quote{}, apperrors.Validation("у услуги %q некорректная длительность", svc.Name)
		}
		if svc.Price < 0 {
			return Quote{}, apperrors.Validation("у услуги %q некорректная цена", svc.Name)
		}
		q.DurationMins += svc.DurationMins
		q.TotalPrice += svc.Price
	}

	return q, nil
}
