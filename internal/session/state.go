// Package session хранит состояние диалога записи для каждого пользователя.
package session

import (
	"sort"

	"github.com/region23/salonbot/internal/storage/models"
	apperrors "github.com/region23/salonbot/pkg/errors"
)

// Kind тег варианта состояния
type Kind string

const (
	KindChoosingServices Kind = "choosing_services"
	KindChoosingDate     Kind = "choosing_date"
	KindChoosingSlot     Kind = "choosing_slot"
	KindConfirming       Kind = "confirming"
	KindRescheduling     Kind = "rescheduling"
)

// State одно из состояний диалога
type State interface {
	Kind() Kind
}

// ChoosingServices клиент отмечает услуги
type ChoosingServices struct {
	Selected []int64 `json:"selected"`
}

// Order итог выбора услуг
type Order struct {
	Services     []int64 `json:"services"`
	DurationMins int     `json:"duration_mins"`
	TotalPrice   int64   `json:"total_price"`
}

// ChoosingDate клиент выбирает день
type ChoosingDate struct {
	Order
}

// ChoosingSlot клиент выбирает время в выбранный день (YYYY-MM-DD)
type ChoosingSlot struct {
	Order
	Date string `json:"date"`
}

// Confirming клиент подтверждает выбранную серию слотов
type Confirming struct {
	Order
	Date string              `json:"date"`
	Run  models.RunCandidate `json:"run"`
}

// Rescheduling клиент выбирает новое время для существующей записи
type Rescheduling struct {
	BookingID int64  `json:"booking_id"`
	Slots     int    `json:"slots"`
	Date      string `json:"date,omitempty"`
}

func (ChoosingServices) Kind() Kind { return KindChoosingServices }
func (ChoosingDate) Kind() Kind     { return KindChoosingDate }
func (ChoosingSlot) Kind() Kind     { return KindChoosingSlot }
func (Confirming) Kind() Kind       { return KindConfirming }
func (Rescheduling) Kind() Kind     { return KindRescheduling }

// Start начинает новый выбор услуг
func Start() ChoosingServices {
	return ChoosingServices{}
}

// Toggle добавляет или убирает услугу
func (s ChoosingServices) Toggle(serviceID int64) ChoosingServices {
	selected := make([]int64, 0, len(s.Selected)+1)
	found := false
	for _, id := range s.Selected {
		if id == serviceID {
			found = true
			continue
		}
		selected = append(selected, id)
	}
	if !found {
		selected = append(selected, serviceID)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i] < selected[j] })
	return ChoosingServices{Selected: selected}
}

// Has проверяет, отмечена ли услуга
func (s ChoosingServices) Has(serviceID int64) bool {
	for _, id := range s.Selected {
		if id == serviceID {
			return true
		}
	}
	return false
}

// Proceed переходит к выбору дня с посчитанными длительностью и ценой
func (s ChoosingServices) Proceed(durationMins int, totalPrice int64) (ChoosingDate, error) {
	if len(s.Selected) == 0 {
		return ChoosingDate{}, apperrors.Validation("выберите хотя бы одну услугу")
	}
	if durationMins <= 0 {
		return ChoosingDate{}, apperrors.Validation("длительность должна быть больше нуля")
	}
	return ChoosingDate{Order: Order{
		Services:     append([]int64(nil), s.Selected...),
		DurationMins: durationMins,
		TotalPrice:   totalPrice,
	}}, nil
}

// PickDate переходит к выбору времени
func (s ChoosingDate) PickDate(date string) ChoosingSlot {
	return ChoosingSlot{Order: s.Order, Date: date}
}

// Back возвращает к выбору дня
func (s ChoosingSlot) Back() ChoosingDate {
	return ChoosingDate{Order: s.Order}
}

// PickRun переходит к подтверждению
func (s ChoosingSlot) PickRun(run models.RunCandidate) (Confirming, error) {
	if len(run.SlotIDs) == 0 {
		return Confirming{}, apperrors.Validation("не выбрано время")
	}
	return Confirming{Order: s.Order, Date: s.Date, Run: run}, nil
}

// Back возвращает к выбору времени того же дня
func (s Confirming) Back() ChoosingSlot {
	return ChoosingSlot{Order: s.Order, Date: s.Date}
}

// PickDate запоминает день для переноса
func (s Rescheduling) PickDate(date string) Rescheduling {
	s.Date = date
	return s
}
