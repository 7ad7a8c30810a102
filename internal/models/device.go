package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeviceStatus — статус устройства с точки зрения мониторинга.
type DeviceStatus string

const (
	DeviceStatusUnknown DeviceStatus = "unknown"
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusWarning DeviceStatus = "warning"
	DeviceStatusOffline DeviceStatus = "offline"
)

// Категории оборудования кампусной сети.
const (
	CategoryPrinter     = "printer"
	CategoryAccessPoint = "access_point"
	CategorySwitch      = "switch"
	CategoryCamera      = "camera"
	CategoryOther       = "other"
)

// KnownCategory проверяет, что категория из допустимого набора.
func KnownCategory(c string) bool {
	switch c {
	case CategoryPrinter, CategoryAccessPoint, CategorySwitch, CategoryCamera, CategoryOther:
		return true
	}
	return false
}

// Device — единица мониторинга: сетевое оборудование с известным адресом.
// Запись в реестре — единственный источник правды о статусе устройства.
type Device struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UUID     string         `gorm:"uniqueIndex;size:64;not null" json:"uuid"`
	Address  string         `gorm:"uniqueIndex;size:255;not null" json:"address"`
	Name     string         `gorm:"size:255" json:"name"`
	Category string         `gorm:"size:64" json:"category"` // printer|access_point|switch|camera|other
	Location string         `gorm:"size:255" json:"location"`
	Metadata datatypes.JSON `json:"metadata,omitempty"` // произвольные атрибуты (корпус, кабинет и т.п.)

	// Конфигурация мониторинга (меняется только оператором)
	PollIntervalSeconds int    `gorm:"not null" json:"poll_interval_seconds"` // > 0
	ProbeTimeoutMillis  int    `gorm:"not null" json:"probe_timeout_millis"`  // > 0
	MonitoringEnabled   bool   `json:"monitoring_enabled"`
	AlertOnOffline      bool   `json:"alert_on_offline"`
	AlertDestination    string `gorm:"size:255" json:"alert_destination"`

	// Состояние мониторинга (меняется только по результатам проверок)
	Status               DeviceStatus `gorm:"size:32;not null;default:unknown" json:"status"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	LastProbeAt          *time.Time   `json:"last_probe_at,omitempty"`
	LastLatencyMillis    *int64       `json:"last_latency_millis,omitempty"` // только при успехе последней проверки
	LastStatusChangeAt   *time.Time   `json:"last_status_change_at,omitempty"`
	TotalUptimeSeconds   int64        `json:"total_uptime_seconds"`
	TotalDowntimeSeconds int64        `json:"total_downtime_seconds"`
}

// UptimePercent — доля подтверждённого uptime.
// При отсутствии данных возвращает 100: известное упрощение, для свежих
// устройств показатель завышен (осознанно не меняем поведение).
func (d *Device) UptimePercent() float64 {
	total := d.TotalUptimeSeconds + d.TotalDowntimeSeconds
	if total == 0 {
		return 100
	}
	return float64(d.TotalUptimeSeconds) / float64(total) * 100
}
