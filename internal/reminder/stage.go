// Package reminder рассылает напоминания о записях за 24, 12 и 1 час.
//
// Каждый прогон рассматривает окно [now+L, now+L+window) для каждой стадии L.
// Флаг стадии выставляется только после успешной отправки и никогда не
// сбрасывается. Запись, чье окно пришлось на пропущенный прогон, эту стадию
// больше не получит.
package reminder

import (
	"time"

	"github.com/region23/salonbot/internal/storage/models"
)

// Stage описывает одну стадию напоминаний
type Stage struct {
	Name string
	Lead time.Duration
	Flag models.ReminderFlag
}

var (
	Stage24h = Stage{Name: "24h", Lead: 24 * time.Hour, Flag: models.Reminded24h}
	Stage12h = Stage{Name: "12h", Lead: 12 * time.Hour, Flag: models.Reminded12h}
	Stage1h  = Stage{Name: "1h", Lead: time.Hour, Flag: models.Reminded1h}
)

// Stages перечисляет стадии в порядке обработки
var Stages = []Stage{Stage24h, Stage12h, Stage1h}

// Window возвращает полуинтервал, в который должен попасть старт записи
func (s Stage) Window(now time.Time, width time.Duration) (time.Time, time.Time) {
	from := now.Add(s.Lead)
	return from, from.Add(width)
}
