package alert

import (
	"context"

	"github.com/sirupsen/logrus"

	"pulse/internal/logs"
)

// Notification — одно уведомление оператору.
type Notification struct {
	DeviceUUID  string `json:"device_uuid"`
	DeviceName  string `json:"device_name"`
	Address     string `json:"address"`
	Destination string `json:"destination,omitempty"` // адрес получателя из карточки устройства
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// Notifier — абстрактный канал доставки. Ядро мониторинга знает только
// про Send; транспорт (лог, вебхук, почта) — деталь реализации.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier пишет уведомления в операционный лог.
// Дефолтный канал, пока не настроен внешний.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, n Notification) error {
	logs.L().WithFields(logrus.Fields{
		"device":      n.DeviceUUID,
		"name":        n.DeviceName,
		"address":     n.Address,
		"destination": n.Destination,
	}).Warnf("ALERT: %s — %s", n.Subject, n.Body)
	return nil
}
