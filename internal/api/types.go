package api

import (
	"encoding/json"
	"strings"
	"time"

	"pulse/internal/models"
)

// DeviceRequest — тело запроса регистрации/изменения устройства.
// Поля состояния мониторинга сюда не входят: их меняют только проверки.
type DeviceRequest struct {
	Address             string          `json:"address"`
	Name                string          `json:"name"`
	Category            string          `json:"category"`
	Location            string          `json:"location"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	PollIntervalSeconds int             `json:"poll_interval_seconds"`
	ProbeTimeoutMillis  int             `json:"probe_timeout_millis"`
	MonitoringEnabled   *bool           `json:"monitoring_enabled,omitempty"` // nil → true
	AlertOnOffline      bool            `json:"alert_on_offline"`
	AlertDestination    string          `json:"alert_destination"`
}

// дефолты там, где поле опущено
const (
	defaultPollIntervalSeconds = 60
	defaultProbeTimeoutMillis  = 2000
)

// normalize подставляет дефолты и приводит поля к каноничному виду.
func (r *DeviceRequest) normalize() {
	r.Address = strings.TrimSpace(r.Address)
	if r.Category == "" {
		r.Category = models.CategoryOther
	}
	if r.PollIntervalSeconds == 0 {
		r.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if r.ProbeTimeoutMillis == 0 {
		r.ProbeTimeoutMillis = defaultProbeTimeoutMillis
	}
}

// validate возвращает список проблем; пустой — запрос корректен.
// При изменении устройства адрес не обязателен (ключ остаётся прежним).
func (r *DeviceRequest) validate(requireAddress bool) []string {
	var problems []string
	if requireAddress && r.Address == "" {
		problems = append(problems, "address must not be empty")
	}
	if !models.KnownCategory(r.Category) {
		problems = append(problems, "category must be one of printer|access_point|switch|camera|other")
	}
	if r.PollIntervalSeconds <= 0 {
		problems = append(problems, "poll_interval_seconds must be positive")
	}
	if r.ProbeTimeoutMillis <= 0 {
		problems = append(problems, "probe_timeout_millis must be positive")
	}
	return problems
}

func (r *DeviceRequest) monitoringEnabled() bool {
	if r.MonitoringEnabled == nil {
		return true
	}
	return *r.MonitoringEnabled
}

// DeviceResponse — проекция устройства наружу (read-only).
type DeviceResponse struct {
	UUID                 string          `json:"uuid"`
	Address              string          `json:"address"`
	Name                 string          `json:"name"`
	Category             string          `json:"category"`
	Location             string          `json:"location"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
	PollIntervalSeconds  int             `json:"poll_interval_seconds"`
	ProbeTimeoutMillis   int             `json:"probe_timeout_millis"`
	MonitoringEnabled    bool            `json:"monitoring_enabled"`
	AlertOnOffline       bool            `json:"alert_on_offline"`
	AlertDestination     string          `json:"alert_destination,omitempty"`
	Status               string          `json:"status"`
	ConsecutiveFailures  int             `json:"consecutive_failures"`
	LastProbeAt          *time.Time      `json:"last_probe_at,omitempty"`
	LastLatencyMillis    *int64          `json:"last_latency_millis,omitempty"`
	LastStatusChangeAt   *time.Time      `json:"last_status_change_at,omitempty"`
	TotalUptimeSeconds   int64           `json:"total_uptime_seconds"`
	TotalDowntimeSeconds int64           `json:"total_downtime_seconds"`
	UptimePercent        float64         `json:"uptime_percent"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func toResponse(d *models.Device) DeviceResponse {
	return DeviceResponse{
		UUID:                 d.UUID,
		Address:              d.Address,
		Name:                 d.Name,
		Category:             d.Category,
		Location:             d.Location,
		Metadata:             json.RawMessage(d.Metadata),
		PollIntervalSeconds:  d.PollIntervalSeconds,
		ProbeTimeoutMillis:   d.ProbeTimeoutMillis,
		MonitoringEnabled:    d.MonitoringEnabled,
		AlertOnOffline:       d.AlertOnOffline,
		AlertDestination:     d.AlertDestination,
		Status:               string(d.Status),
		ConsecutiveFailures:  d.ConsecutiveFailures,
		LastProbeAt:          d.LastProbeAt,
		LastLatencyMillis:    d.LastLatencyMillis,
		LastStatusChangeAt:   d.LastStatusChangeAt,
		TotalUptimeSeconds:   d.TotalUptimeSeconds,
		TotalDowntimeSeconds: d.TotalDowntimeSeconds,
		UptimePercent:        d.UptimePercent(),
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

// ProbeResponse — результат ручной проверки.
type ProbeResponse struct {
	Success       bool           `json:"success"`
	LatencyMillis int64          `json:"latency_millis,omitempty"`
	Device        DeviceResponse `json:"device"`
}
