package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/models"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func TestEvaluate_SuccessAlwaysOnline(t *testing.T) {
	for _, from := range []models.DeviceStatus{
		models.DeviceStatusUnknown,
		models.DeviceStatusOnline,
		models.DeviceStatusWarning,
		models.DeviceStatusOffline,
	} {
		st := State{Status: from, ConsecutiveFailures: 7, LastStatusChangeAt: t0}
		next, tr := Evaluate(st, Outcome{Success: true, At: at(time.Minute)}, 3)

		assert.Equal(t, models.DeviceStatusOnline, next.Status, "from %s", from)
		assert.Zero(t, next.ConsecutiveFailures, "успех сбрасывает счётчик")
		if from == models.DeviceStatusOnline {
			assert.Nil(t, tr, "online→online не переход")
		} else {
			require.NotNil(t, tr)
			assert.Equal(t, from, tr.From)
			assert.Equal(t, models.DeviceStatusOnline, tr.To)
		}
	}
}

func TestEvaluate_FailuresBelowThresholdAreWarning(t *testing.T) {
	st := State{Status: models.DeviceStatusOnline, LastStatusChangeAt: t0}

	next, tr := Evaluate(st, Outcome{At: at(time.Second)}, 3)
	require.NotNil(t, tr)
	assert.Equal(t, models.DeviceStatusWarning, next.Status)
	assert.Equal(t, 1, next.ConsecutiveFailures)

	// вторая неудача: статус тот же, перехода нет
	next2, tr2 := Evaluate(next, Outcome{At: at(2 * time.Second)}, 3)
	assert.Nil(t, tr2)
	assert.Equal(t, models.DeviceStatusWarning, next2.Status)
	assert.Equal(t, 2, next2.ConsecutiveFailures)
	assert.Equal(t, next.LastStatusChangeAt, next2.LastStatusChangeAt,
		"время смены статуса без перехода не трогаем")
}

func TestEvaluate_ThresholdGoesOffline(t *testing.T) {
	st := State{Status: models.DeviceStatusWarning, ConsecutiveFailures: 2, LastStatusChangeAt: t0}
	next, tr := Evaluate(st, Outcome{At: at(time.Second)}, 3)

	require.NotNil(t, tr)
	assert.Equal(t, models.DeviceStatusOffline, next.Status)
	assert.Equal(t, 3, next.ConsecutiveFailures)
	assert.Equal(t, models.DeviceStatusWarning, tr.From)
}

func TestEvaluate_OfflineStaysOfflineOnFailure(t *testing.T) {
	st := State{Status: models.DeviceStatusOffline, ConsecutiveFailures: 3, LastStatusChangeAt: t0}
	next, tr := Evaluate(st, Outcome{At: at(time.Hour)}, 3)

	assert.Nil(t, tr)
	assert.Equal(t, models.DeviceStatusOffline, next.Status)
	assert.Equal(t, 4, next.ConsecutiveFailures)
	assert.Zero(t, next.TotalDowntimeSeconds,
		"без перехода аккумуляторы не трогаем")
}

func TestEvaluate_CustomThreshold(t *testing.T) {
	st := State{Status: models.DeviceStatusUnknown}
	next, _ := Evaluate(st, Outcome{At: t0}, 1)
	assert.Equal(t, models.DeviceStatusOffline, next.Status, "порог 1 — offline с первой неудачи")

	next2, _ := Evaluate(State{Status: models.DeviceStatusUnknown}, Outcome{At: t0}, 0)
	assert.Equal(t, models.DeviceStatusWarning, next2.Status, "некорректный порог — дефолтные три страйка")
}

// Сценарий: unknown, три неудачи подряд → unknown→warning→warning→offline.
func TestEvaluate_ScenarioThreeStrikes(t *testing.T) {
	st := State{Status: models.DeviceStatusUnknown}
	var transitions []models.DeviceStatus

	for i := 0; i < 3; i++ {
		var tr *Transition
		st, tr = Evaluate(st, Outcome{At: at(time.Duration(i) * time.Minute)}, 3)
		if tr != nil {
			transitions = append(transitions, tr.To)
		}
	}
	assert.Equal(t, []models.DeviceStatus{models.DeviceStatusWarning, models.DeviceStatusOffline}, transitions)
	assert.Equal(t, models.DeviceStatusOffline, st.Status)
}

// Сценарий: 120 секунд offline, затем успех → downtime += 120.
func TestEvaluate_ScenarioDowntimeAccounted(t *testing.T) {
	st := State{Status: models.DeviceStatusOffline, ConsecutiveFailures: 5, LastStatusChangeAt: t0}
	next, tr := Evaluate(st, Outcome{Success: true, At: at(120 * time.Second)}, 3)

	require.NotNil(t, tr)
	assert.Equal(t, int64(120), next.TotalDowntimeSeconds)
	assert.Zero(t, next.TotalUptimeSeconds)
	assert.Zero(t, next.ConsecutiveFailures)
	assert.Equal(t, at(120*time.Second), next.LastStatusChangeAt)
	assert.Equal(t, 120*time.Second, tr.Elapsed)
}

// Сценарий: 300 секунд online, неудача, 10 секунд warning, успех.
// Uptime растёт на 300 при уходе из online; warning-период не учитывается нигде.
func TestEvaluate_ScenarioWarningTimeUnattributed(t *testing.T) {
	st := State{Status: models.DeviceStatusOnline, LastStatusChangeAt: t0}

	st, tr := Evaluate(st, Outcome{At: at(300 * time.Second)}, 3)
	require.NotNil(t, tr)
	assert.Equal(t, int64(300), st.TotalUptimeSeconds)

	st, tr = Evaluate(st, Outcome{Success: true, At: at(310 * time.Second)}, 3)
	require.NotNil(t, tr)
	assert.Equal(t, int64(300), st.TotalUptimeSeconds, "warning-время не попадает в uptime")
	assert.Zero(t, st.TotalDowntimeSeconds, "и в downtime тоже")
}

func TestEvaluate_UnknownPeriodUnattributed(t *testing.T) {
	st := State{Status: models.DeviceStatusUnknown, LastStatusChangeAt: t0}
	next, tr := Evaluate(st, Outcome{Success: true, At: at(time.Hour)}, 3)

	require.NotNil(t, tr)
	assert.Zero(t, next.TotalUptimeSeconds)
	assert.Zero(t, next.TotalDowntimeSeconds)
}

func TestEvaluate_ClockSkewDoesNotGoNegative(t *testing.T) {
	st := State{Status: models.DeviceStatusOnline, LastStatusChangeAt: at(time.Hour)}
	next, _ := Evaluate(st, Outcome{At: t0}, 3) // время «в прошлом»

	assert.Zero(t, next.TotalUptimeSeconds)
	assert.Zero(t, next.TotalDowntimeSeconds)
}

func TestStateOf_EmptyStatusIsUnknown(t *testing.T) {
	st := StateOf(&models.Device{})
	assert.Equal(t, models.DeviceStatusUnknown, st.Status)
}

func TestUptimePercent(t *testing.T) {
	d := models.Device{}
	assert.Equal(t, float64(100), d.UptimePercent(), "нет данных — 100%% (известное упрощение)")

	d.TotalUptimeSeconds = 900
	d.TotalDowntimeSeconds = 100
	assert.InDelta(t, 90.0, d.UptimePercent(), 0.0001)
}
