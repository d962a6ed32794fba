package booking

import apperrors "github.com/region23/salonbot/pkg/errors"

// Authorizer решает, кто имеет права администратора
type Authorizer interface {
	IsAdmin(chatID int64) bool
}

// AdminList разрешает административные действия перечисленным chat id
type AdminList []int64

// IsAdmin проверяет вхождение в список
func (a AdminList) IsAdmin(chatID int64) bool {
	for _, id := range a {
		if id == chatID {
			return true
		}
	}
	return false
}

// authorizeManage пропускает владельца записи и администратора
func authorizeManage(a Authorizer, requesterChatID, ownerChatID int64) error {
	if requesterChatID == ownerChatID {
		return nil
	}
	if a != nil && a.IsAdmin(requesterChatID) {
		return nil
	}
	return apperrors.ErrForbidden.WithMessage("это чужая запись")
}

// authorizeOwner пропускает только владельца записи
func authorizeOwner(requesterChatID, ownerChatID int64) error {
	if requesterChatID != ownerChatID {
		return apperrors.ErrForbidden.WithMessage("подтвердить визит может только клиент")
	}
	return nil
}
