package monitor

import (
	"context"
	"fmt"
	"time"

	"pulse/internal/alert"
	"pulse/internal/logs"
	"pulse/internal/models"
)

// Dispatcher превращает переходы статуса в уведомления.
// Срабатывает ровно раз на переход: пока устройство остаётся offline,
// повторные неудачные проверки переходов не порождают — значит и
// повторных алертов не будет.
type Dispatcher struct {
	notifier alert.Notifier
}

func NewDispatcher(n alert.Notifier) *Dispatcher {
	return &Dispatcher{notifier: n}
}

// HandleTransition — одна попытка доставки, best effort. Ошибка канала
// логируется и на статус устройства не влияет.
func (d *Dispatcher) HandleTransition(ctx context.Context, dev *models.Device, tr *Transition) {
	if dev == nil || tr == nil || !dev.AlertOnOffline {
		return
	}

	var n alert.Notification
	switch {
	case tr.To == models.DeviceStatusOffline:
		n = alert.Notification{
			Subject: fmt.Sprintf("device offline: %s", deviceLabel(dev)),
			Body: fmt.Sprintf("%s (%s) не отвечает после %d неудачных проверок подряд, offline с %s",
				deviceLabel(dev), dev.Address, dev.ConsecutiveFailures, tr.At.Format(time.RFC3339)),
		}
	case tr.To == models.DeviceStatusOnline && tr.From == models.DeviceStatusOffline:
		n = alert.Notification{
			Subject: fmt.Sprintf("device recovered: %s", deviceLabel(dev)),
			Body: fmt.Sprintf("%s (%s) снова отвечает, простой составил %s",
				deviceLabel(dev), dev.Address, tr.Elapsed.Round(time.Second)),
		}
	default:
		return
	}

	n.DeviceUUID = dev.UUID
	n.DeviceName = dev.Name
	n.Address = dev.Address
	n.Destination = dev.AlertDestination

	if err := d.notifier.Send(ctx, n); err != nil {
		logs.L().Errorf("alert: deliver for %s: %v", dev.Address, err)
	}
}

func deviceLabel(d *models.Device) string {
	if d.Name != "" {
		return d.Name
	}
	return d.Address
}
