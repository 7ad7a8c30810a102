package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/alert"
	"pulse/internal/models"
)

func alertedDevice() *models.Device {
	return &models.Device{
		UUID:             "d1",
		Name:             "library-printer",
		Address:          "10.1.2.3",
		AlertOnOffline:   true,
		AlertDestination: "noc@school.test",
	}
}

func TestDispatcher_OfflineEntryAlerts(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n)

	d.HandleTransition(context.Background(), alertedDevice(), &Transition{
		From: models.DeviceStatusWarning,
		To:   models.DeviceStatusOffline,
		At:   time.Now(),
	})

	require.Equal(t, 1, n.count())
	assert.Contains(t, n.sent[0].Subject, "offline")
	assert.Equal(t, "noc@school.test", n.sent[0].Destination)
	assert.Equal(t, "10.1.2.3", n.sent[0].Address)
}

func TestDispatcher_RecoveryNotice(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n)

	d.HandleTransition(context.Background(), alertedDevice(), &Transition{
		From:    models.DeviceStatusOffline,
		To:      models.DeviceStatusOnline,
		At:      time.Now(),
		Elapsed: 2 * time.Minute,
	})

	require.Equal(t, 1, n.count())
	assert.Contains(t, n.sent[0].Subject, "recovered")
}

func TestDispatcher_SilentCases(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n)
	ctx := context.Background()

	// алерты выключены на устройстве
	quiet := alertedDevice()
	quiet.AlertOnOffline = false
	d.HandleTransition(ctx, quiet, &Transition{From: models.DeviceStatusWarning, To: models.DeviceStatusOffline})

	// переходы, не связанные с offline
	d.HandleTransition(ctx, alertedDevice(), &Transition{From: models.DeviceStatusUnknown, To: models.DeviceStatusWarning})
	d.HandleTransition(ctx, alertedDevice(), &Transition{From: models.DeviceStatusWarning, To: models.DeviceStatusOnline})

	// нет перехода
	d.HandleTransition(ctx, alertedDevice(), nil)

	assert.Zero(t, n.count())
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Send(context.Context, alert.Notification) error {
	f.calls++
	return errors.New("smtp relay unreachable")
}

// Ошибка доставки — best effort: одна попытка, без паники и без повтора.
func TestDispatcher_DeliveryFailureIsBestEffort(t *testing.T) {
	f := &failingNotifier{}
	d := NewDispatcher(f)

	d.HandleTransition(context.Background(), alertedDevice(), &Transition{
		From: models.DeviceStatusWarning,
		To:   models.DeviceStatusOffline,
		At:   time.Now(),
	})
	assert.Equal(t, 1, f.calls)
}

// Одна непрерывная серия offline — один алерт; после восстановления
// следующий уход в offline снова алертит.
func TestDispatcher_AlertOncePerOfflinePeriod(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n)
	reg := newFakeRegistry(testDevice("d1", "10.0.9.9", 60, true))
	ctx := context.Background()

	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	feed := func(success bool) {
		now = now.Add(time.Minute)
		dev, tr, err := reg.ApplyProbeResult(ctx, "d1", Outcome{Success: success, At: now})
		require.NoError(t, err)
		if tr != nil {
			d.HandleTransition(ctx, dev, tr)
		}
	}

	for i := 0; i < 6; i++ { // уходит в offline на третьей, дальше сидит там
		feed(false)
	}
	assert.Equal(t, 1, n.count())

	feed(true) // восстановление
	assert.Equal(t, 2, n.count(), "recovery-уведомление")

	for i := 0; i < 4; i++ {
		feed(false)
	}
	assert.Equal(t, 3, n.count(), "новый offline-период — новый алерт")
}
