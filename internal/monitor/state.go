package monitor

import (
	"time"

	"pulse/internal/models"
)

// DefaultFailureThreshold — "три страйка": столько подряд неудачных
// проверок переводят устройство в offline. Политика, а не вычисляемая
// величина; переопределяется конфигом.
const DefaultFailureThreshold = 3

// Outcome — результат одной завершённой проверки.
type Outcome struct {
	Success bool
	Latency time.Duration
	At      time.Time
}

// State — снимок полей мониторинга устройства без привязки к БД.
// Evaluate работает только с ним, логика переходов не знает про gorm.
type State struct {
	Status               models.DeviceStatus
	ConsecutiveFailures  int
	LastStatusChangeAt   time.Time // нулевое значение — статус ещё не менялся
	TotalUptimeSeconds   int64
	TotalDowntimeSeconds int64
}

// Transition — наблюдаемая смена статуса. Обновления без смены статуса
// (например warning→warning) переходом не считаются.
type Transition struct {
	From    models.DeviceStatus
	To      models.DeviceStatus
	At      time.Time
	Elapsed time.Duration // время, проведённое в предыдущем статусе
}

// Evaluate применяет результат проверки к состоянию устройства.
// Чистая функция: (state, outcome) → (state', transition|nil).
//
// Учёт времени: на переходе прошедшее время относится к uptime, если
// старый статус online, и к downtime, если offline. Периоды warning и
// unknown намеренно не учитываются ни там, ни там — устройство в этот
// момент ни подтверждённо живо, ни подтверждённо мертво.
func Evaluate(st State, out Outcome, threshold int) (State, *Transition) {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}

	next := st
	var to models.DeviceStatus
	if out.Success {
		// успех немедленно возвращает online, сколько бы отказов ни было
		next.ConsecutiveFailures = 0
		to = models.DeviceStatusOnline
	} else {
		next.ConsecutiveFailures = st.ConsecutiveFailures + 1
		if next.ConsecutiveFailures >= threshold {
			to = models.DeviceStatusOffline
		} else {
			to = models.DeviceStatusWarning
		}
	}

	if to == st.Status {
		return next, nil
	}

	var elapsed time.Duration
	if !st.LastStatusChangeAt.IsZero() {
		elapsed = out.At.Sub(st.LastStatusChangeAt)
	}
	if elapsed > 0 {
		switch st.Status {
		case models.DeviceStatusOnline:
			next.TotalUptimeSeconds += int64(elapsed / time.Second)
		case models.DeviceStatusOffline:
			next.TotalDowntimeSeconds += int64(elapsed / time.Second)
		}
	}

	next.Status = to
	next.LastStatusChangeAt = out.At
	return next, &Transition{From: st.Status, To: to, At: out.At, Elapsed: elapsed}
}

// StateOf извлекает снимок состояния из записи устройства.
func StateOf(d *models.Device) State {
	st := State{
		Status:               d.Status,
		ConsecutiveFailures:  d.ConsecutiveFailures,
		TotalUptimeSeconds:   d.TotalUptimeSeconds,
		TotalDowntimeSeconds: d.TotalDowntimeSeconds,
	}
	if st.Status == "" {
		st.Status = models.DeviceStatusUnknown
	}
	if d.LastStatusChangeAt != nil {
		st.LastStatusChangeAt = *d.LastStatusChangeAt
	}
	return st
}
